package mapreduce

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/chunker"
	"github.com/akolanti/DigestAPI/internal/engine/prompts"
	"github.com/akolanti/DigestAPI/internal/engine/token"
)

// MockGateway implements provider.Gateway
type MockGateway struct {
	OnComplete func(ctx context.Context, prompt string) (string, error)
	OnEmbed    func(ctx context.Context, texts []string) ([][]float32, error)
	calls      int32
	inFlight   int32
	maxSeen    int32
	mu         sync.Mutex
}

func (m *MockGateway) Name() string { return "mock/test" }

func (m *MockGateway) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	m.mu.Lock()
	if cur > m.maxSeen {
		m.maxSeen = cur
	}
	m.mu.Unlock()
	if m.OnComplete != nil {
		return m.OnComplete(ctx, prompt)
	}
	return "mock completion", nil
}

func (m *MockGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, texts)
	}
	return make([][]float32, len(texts)), nil
}

func (m *MockGateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 3), nil
}

func testTokens() *token.Manager {
	return token.NewManager(4, 3000)
}

func makeChunks(n int) []docModel.Chunk {
	tokens := testTokens()
	chunks := make([]docModel.Chunk, n)
	for i := range chunks {
		text := strings.Repeat("content ", 20)
		chunks[i] = docModel.Chunk{
			DocumentId: "doc-1",
			Index:      i,
			Text:       text,
			TokenCount: tokens.Estimate(text),
		}
	}
	return chunks
}

func TestMapper_OnePartialPerChunk(t *testing.T) {
	gw := &MockGateway{
		OnComplete: func(_ context.Context, prompt string) (string, error) {
			return "summary of: " + prompt[:10], nil
		},
	}
	m := NewMapper(gw, testTokens(), 4, false)

	chunks := makeChunks(6)
	partials, degraded, err := m.Map(context.Background(), chunks, prompts.MapSummary, nil)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if degraded {
		t.Error("no failures, should not be degraded")
	}
	if len(partials) != len(chunks) {
		t.Fatalf("got %d partials for %d chunks", len(partials), len(chunks))
	}
	for i, p := range partials {
		if len(p.SourceChunkIds) != 1 || p.SourceChunkIds[0] != chunks[i].ChunkId() {
			t.Errorf("partial %d has sources %v, want [%s]", i, p.SourceChunkIds, chunks[i].ChunkId())
		}
	}
}

func TestMapper_BoundedConcurrency(t *testing.T) {
	block := make(chan struct{})
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			<-block
			return "done", nil
		},
	}
	const limit = 3
	m := NewMapper(gw, testTokens(), limit, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = m.Map(context.Background(), makeChunks(10), prompts.MapSummary, nil)
	}()

	// all permitted workers should be blocked inside Complete by now
	for i := 0; i < 100; i++ {
		if atomic.LoadInt32(&gw.inFlight) == limit {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	close(block)
	<-done

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.maxSeen > limit {
		t.Errorf("observed %d concurrent calls, limit is %d", gw.maxSeen, limit)
	}
}

func TestMapper_PartialFailureDegrades(t *testing.T) {
	var n int32
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			if atomic.AddInt32(&n, 1) == 2 {
				return "", errors.New("provider exploded")
			}
			return "fine", nil
		},
	}
	m := NewMapper(gw, testTokens(), 1, false)

	partials, degraded, err := m.Map(context.Background(), makeChunks(4), prompts.MapSummary, nil)
	if err != nil {
		t.Fatalf("non-strict mode must not abort: %v", err)
	}
	if !degraded {
		t.Error("a failed chunk must surface the degraded flag")
	}
	failedCount := 0
	for _, p := range partials {
		if p.Failed {
			failedCount++
		}
	}
	if failedCount != 1 {
		t.Errorf("expected exactly 1 placeholder, got %d", failedCount)
	}
}

func TestMapper_StrictModeAborts(t *testing.T) {
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			return "", errors.New("provider exploded")
		},
	}
	m := NewMapper(gw, testTokens(), 2, true)

	_, _, err := m.Map(context.Background(), makeChunks(4), prompts.MapSummary, nil)
	if err == nil {
		t.Fatal("strict mode must abort on failure")
	}
}

func TestMapper_EmptyInput(t *testing.T) {
	m := NewMapper(&MockGateway{}, testTokens(), 2, false)
	_, _, err := m.Map(context.Background(), nil, prompts.MapSummary, nil)
	if !errors.Is(err, ErrNothingToMap) {
		t.Errorf("expected ErrNothingToMap, got %v", err)
	}
}

func newTestReducer(gw *MockGateway, maxRounds int) *Reducer {
	tokens := testTokens()
	return NewReducer(gw, tokens, chunker.NewSplitter(tokens, 0), maxRounds)
}

func makePartials(n int, tokensEach int) []docModel.PartialResult {
	tokens := testTokens()
	partials := make([]docModel.PartialResult, n)
	for i := range partials {
		text := strings.Repeat("x", tokens.RunesForTokens(tokensEach))
		partials[i] = docModel.PartialResult{
			SourceChunkIds: []string{docModel.Chunk{DocumentId: "doc", Index: i}.ChunkId()},
			Text:           text,
			TokenCount:     tokensEach,
		}
	}
	return partials
}

func TestReduce_SingleRoundWhenFits(t *testing.T) {
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			return "combined", nil
		},
	}
	r := newTestReducer(gw, 12)

	out, err := r.Reduce(context.Background(), makePartials(3, 500), 3000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&gw.calls) != 1 {
		t.Errorf("expected 1 reduction call, got %d", gw.calls)
	}
	if out.Text != "combined" || out.Truncated {
		t.Errorf("unexpected result: %+v", out)
	}
	if len(out.SourceChunkIds) != 3 {
		t.Errorf("source ids lost: %v", out.SourceChunkIds)
	}
}

func TestReduce_RecursiveCollapse(t *testing.T) {
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			return "short group summary", nil
		},
	}
	r := newTestReducer(gw, 12)

	// six partials of 1000 tokens against a 3000 budget: two packs of three,
	// then one final combine
	out, err := r.Reduce(context.Background(), makePartials(6, 1000), 3000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&gw.calls); got != 3 {
		t.Errorf("expected 2 group reductions + 1 final, got %d calls", got)
	}
	if out.TokenCount > 3000 {
		t.Errorf("result exceeds budget: %d", out.TokenCount)
	}
	if len(out.SourceChunkIds) != 6 {
		t.Errorf("expected all 6 sources carried through, got %v", out.SourceChunkIds)
	}
}

func TestReduce_Deterministic(t *testing.T) {
	newGw := func() *MockGateway {
		return &MockGateway{
			OnComplete: func(_ context.Context, prompt string) (string, error) {
				// derive output from input so the tree shape shows up in the result
				return "sum(" + prompt[len(prompt)-8:] + ")", nil
			},
		}
	}

	first, err := newTestReducer(newGw(), 12).Reduce(context.Background(), makePartials(7, 900), 2000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTestReducer(newGw(), 12).Reduce(context.Background(), makePartials(7, 900), 2000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Text != second.Text {
		t.Errorf("same inputs produced different reductions: %q vs %q", first.Text, second.Text)
	}
}

func TestReduce_OversizedPartialRechunks(t *testing.T) {
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			return "small", nil
		},
	}
	r := newTestReducer(gw, 12)

	// one partial at 4x budget; packing alone can never help
	partials := makePartials(1, 4000)
	out, err := r.Reduce(context.Background(), partials, 1000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.TokenCount > 1000 {
		t.Errorf("result exceeds budget: %d", out.TokenCount)
	}
	if out.Truncated {
		t.Error("rechunk path should converge without truncation")
	}
}

func TestReduce_OversizedCombineOutputReenters(t *testing.T) {
	// first combine overshoots the budget; its output must go back into the
	// round loop rather than be returned as-is
	tokens := testTokens()
	big := strings.Repeat("z", tokens.RunesForTokens(5000))
	var n int32
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			if atomic.AddInt32(&n, 1) == 1 {
				return big, nil
			}
			return "tight summary", nil
		},
	}
	r := newTestReducer(gw, 12)

	out, err := r.Reduce(context.Background(), makePartials(2, 100), 3000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.TokenCount > 3000 {
		t.Errorf("oversized combine output was returned: %d tokens against a 3000 budget", out.TokenCount)
	}
	if out.Truncated {
		t.Error("later rounds shrank the text, truncation should not trigger")
	}
}

func TestReduce_RoundCeilingTruncates(t *testing.T) {
	// gateway that never shrinks anything: output as big as the budget
	tokens := testTokens()
	big := strings.Repeat("y", tokens.RunesForTokens(2000))
	gw := &MockGateway{
		OnComplete: func(_ context.Context, _ string) (string, error) {
			return big, nil
		},
	}
	r := newTestReducer(gw, 3)

	out, err := r.Reduce(context.Background(), makePartials(8, 1500), 2000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Truncated {
		t.Error("hitting the round ceiling must flag truncation")
	}
	if out.TokenCount > 2000 {
		t.Errorf("even truncated output must fit the budget, got %d", out.TokenCount)
	}
}

func TestReduce_SkipsFailedPlaceholders(t *testing.T) {
	var seenPrompts []string
	var mu sync.Mutex
	gw := &MockGateway{
		OnComplete: func(_ context.Context, prompt string) (string, error) {
			mu.Lock()
			seenPrompts = append(seenPrompts, prompt)
			mu.Unlock()
			return "ok", nil
		},
	}
	r := newTestReducer(gw, 12)

	partials := makePartials(2, 100)
	partials = append(partials, docModel.PartialResult{
		SourceChunkIds: []string{"doc#99"},
		Failed:         true,
	})

	out, err := r.Reduce(context.Background(), partials, 3000, prompts.ReduceSummary, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range out.SourceChunkIds {
		if id == "doc#99" {
			t.Error("failed placeholder leaked into the reduction sources")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seenPrompts) != 1 {
		t.Errorf("expected a single combine call over the surviving partials, got %d", len(seenPrompts))
	}
}

func TestReduce_AllFailed(t *testing.T) {
	r := newTestReducer(&MockGateway{}, 12)
	_, err := r.Reduce(context.Background(), []docModel.PartialResult{{Failed: true}}, 1000, prompts.ReduceSummary, nil)
	if !errors.Is(err, ErrNothingToReduce) {
		t.Errorf("expected ErrNothingToReduce, got %v", err)
	}
}

func TestPackGroups_GreedyContiguous(t *testing.T) {
	partials := makePartials(6, 1000)
	groups := packGroups(partials, 3000)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups of 3, got %d groups", len(groups))
	}
	// contiguity: group 0 is partials 0-2 in order
	for g, group := range groups {
		for i, p := range group {
			want := partials[g*3+i].SourceChunkIds[0]
			if p.SourceChunkIds[0] != want {
				t.Errorf("group %d position %d holds %s, want %s", g, i, p.SourceChunkIds[0], want)
			}
		}
	}
}
