package chunker

import (
	"strings"
	"testing"

	"github.com/akolanti/DigestAPI/internal/engine/token"
)

func newTestSplitter(overlap float64) *Splitter {
	return NewSplitter(token.NewManager(4, 1000), overlap)
}

func TestSplit_DegenerateInput(t *testing.T) {
	s := newTestSplitter(0)

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := s.SplitText("doc-1", tt.text, 100)
			if len(chunks) != 0 {
				t.Errorf("expected no chunks, got %d", len(chunks))
			}
		})
	}
}

func TestSplit_SmallTextSingleChunk(t *testing.T) {
	s := newTestSplitter(0)
	chunks := s.SplitText("doc-1", "a short note", 100)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "a short note" {
		t.Errorf("chunk text mangled: %q", chunks[0].Text)
	}
	if chunks[0].Index != 0 || chunks[0].DocumentId != "doc-1" {
		t.Errorf("chunk identity wrong: %+v", chunks[0])
	}
}

func TestSplit_RespectsTokenCap(t *testing.T) {
	s := newTestSplitter(0)

	// 40 paragraphs of ~25 tokens each
	para := strings.Repeat("word ", 20)
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 40))

	const maxTokens = 100
	chunks := s.SplitText("doc-1", text, maxTokens)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.TokenCount > maxTokens {
			t.Errorf("chunk %d has %d tokens, cap is %d", c.Index, c.TokenCount, maxTokens)
		}
		if c.ForcedSplit {
			t.Errorf("chunk %d flagged forced despite paragraph boundaries", c.Index)
		}
	}
}

func TestSplit_IndicesContiguous(t *testing.T) {
	s := newTestSplitter(0)
	text := strings.TrimSpace(strings.Repeat(strings.Repeat("word ", 30)+"\n\n", 10))

	chunks := s.SplitText("doc-1", text, 50)
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk order broken: position %d has index %d", i, c.Index)
		}
	}
}

func TestSplit_ForcedSplitOnUnbrokenRun(t *testing.T) {
	s := newTestSplitter(0)

	// no separator anywhere: one giant token run
	text := strings.Repeat("x", 4000)
	const maxTokens = 100

	chunks := s.SplitText("doc-1", text, maxTokens)
	if len(chunks) < 2 {
		t.Fatalf("expected forced split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !c.ForcedSplit {
			t.Errorf("chunk %d should carry the forced_split flag", c.Index)
		}
		if c.TokenCount > maxTokens {
			t.Errorf("forced chunk %d exceeds cap: %d", c.Index, c.TokenCount)
		}
	}
}

func TestSplit_OverlapCarriesContext(t *testing.T) {
	s := newTestSplitter(0.15)
	text := strings.TrimSpace(strings.Repeat(strings.Repeat("word ", 20)+"\n\n", 20))

	const maxTokens = 100
	chunks := s.SplitText("doc-1", text, maxTokens)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	if chunks[0].OverlapWithPrevious {
		t.Error("first chunk cannot overlap a predecessor")
	}
	for _, c := range chunks[1:] {
		if !c.OverlapWithPrevious {
			t.Errorf("chunk %d missing overlap flag", c.Index)
		}
		if c.TokenCount > maxTokens {
			t.Errorf("overlap pushed chunk %d over cap: %d", c.Index, c.TokenCount)
		}
	}
}

func TestSplit_OverlapJoinerStaysWithinCap(t *testing.T) {
	// pieces sized exactly to the post-overlap allowance: the carried tail
	// plus the joiner must not push the chunk past the cap
	s := newTestSplitter(0.2)
	para := strings.Repeat("abcd", 8) // 32 runes, exactly 8 tokens
	text := para + "\n\n" + para

	const maxTokens = 10
	chunks := s.SplitText("doc-1", text, maxTokens)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[1].OverlapWithPrevious {
		t.Error("second chunk should carry overlap")
	}
	for _, c := range chunks {
		if c.TokenCount > maxTokens {
			t.Errorf("chunk %d has TokenCount %d > cap %d", c.Index, c.TokenCount, maxTokens)
		}
	}
}

func TestSplit_SentenceFallback(t *testing.T) {
	s := newTestSplitter(0)

	// no paragraph breaks, only sentences
	text := strings.TrimSpace(strings.Repeat("this is one complete sentence about nothing in particular. ", 60))
	chunks := s.SplitText("doc-1", text, 50)

	if len(chunks) < 2 {
		t.Fatalf("expected sentence-level split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if c.ForcedSplit {
			t.Errorf("chunk %d forced despite sentence boundaries", c.Index)
		}
	}
}

func TestChunkId_StableAcrossRuns(t *testing.T) {
	s := newTestSplitter(0)
	text := strings.TrimSpace(strings.Repeat(strings.Repeat("word ", 20)+"\n\n", 6))

	first := s.SplitText("doc-9", text, 60)
	second := s.SplitText("doc-9", text, 60)

	if len(first) != len(second) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ChunkId() != second[i].ChunkId() {
			t.Errorf("chunk id changed between runs: %s vs %s", first[i].ChunkId(), second[i].ChunkId())
		}
	}
}
