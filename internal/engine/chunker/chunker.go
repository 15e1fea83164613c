package chunker

import (
	"strings"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/token"
)

// Separators ordered from "best" to "worst" for semantic meaning. A piece
// that fits no separator gets a hard rune-level cut as a last resort.
var separators = []string{"\n\n", "\n", ". ", " "}

type Splitter struct {
	tokens       *token.Manager
	overlapRatio float64
}

func NewSplitter(tokens *token.Manager, overlapRatio float64) *Splitter {
	if overlapRatio < 0 || overlapRatio >= 0.5 {
		overlapRatio = 0
	}
	return &Splitter{tokens: tokens, overlapRatio: overlapRatio}
}

type piece struct {
	text   string
	forced bool
}

// Split turns a document into ordered, budget-respecting chunks. Whitespace
// only input yields an empty sequence, not an error. No chunk's TokenCount
// ever exceeds maxTokensPerChunk, overlap included.
func (s *Splitter) Split(doc docModel.Document, maxTokensPerChunk int) []docModel.Chunk {
	return s.SplitText(doc.Id, doc.Text, maxTokensPerChunk)
}

func (s *Splitter) SplitText(documentId string, text string, maxTokensPerChunk int) []docModel.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	overlapTokens := int(float64(maxTokensPerChunk) * s.overlapRatio)
	effectiveMax := maxTokensPerChunk - overlapTokens
	if effectiveMax < 1 {
		effectiveMax = 1
		overlapTokens = 0
	}

	pieces := s.split(text, effectiveMax, 0)

	chunks := make([]docModel.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunkText := p.text
		overlapped := false
		if i > 0 && overlapTokens > 0 && !p.forced {
			// one rune of the overlap allowance pays for the joiner, so the
			// combined text still estimates within maxTokensPerChunk
			tail := tailRunes(pieces[i-1].text, s.tokens.RunesForTokens(overlapTokens)-1)
			if tail != "" {
				chunkText = tail + " " + p.text
				overlapped = true
			}
		}
		chunks = append(chunks, docModel.Chunk{
			DocumentId:          documentId,
			Index:               i,
			Text:                chunkText,
			TokenCount:          s.tokens.Estimate(chunkText),
			OverlapWithPrevious: overlapped,
			ForcedSplit:         p.forced,
		})
	}
	return chunks
}

func (s *Splitter) split(text string, max int, sepIdx int) []piece {
	if s.tokens.Estimate(text) <= max {
		return []piece{{text: text}}
	}
	if sepIdx >= len(separators) {
		return s.forceSplit(text, max)
	}
	sep := separators[sepIdx]
	if !strings.Contains(text, sep) {
		return s.split(text, max, sepIdx+1)
	}

	parts := strings.Split(text, sep)
	var out []piece
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			out = append(out, piece{text: current.String()})
			current.Reset()
		}
	}

	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		// A part that alone exceeds the limit drops to the next separator
		if s.tokens.Estimate(part) > max {
			flush()
			out = append(out, s.split(part, max, sepIdx+1)...)
			continue
		}
		if current.Len() > 0 && s.tokens.Estimate(current.String()+sep+part) > max {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	flush()
	return out
}

// forceSplit cuts at the rune level. Flagged so observability can pick up
// documents with pathological unbroken runs.
func (s *Splitter) forceSplit(text string, max int) []piece {
	width := s.tokens.RunesForTokens(max)
	runes := []rune(text)
	var out []piece
	for start := 0; start < len(runes); start += width {
		end := start + width
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, piece{text: string(runes[start:end]), forced: true})
	}
	return out
}

func tailRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
