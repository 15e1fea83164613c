package mapreduce

import (
	"context"
	"errors"
	"strings"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/chunker"
	"github.com/akolanti/DigestAPI/internal/engine/prompts"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/internal/engine/token"
	"github.com/akolanti/DigestAPI/internal/metrics"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

var ErrNothingToReduce = errors.New("no partials to reduce")

// Reducer collapses partial results until one fits the budget. The loop is
// iterative round-based rather than recursive: each round greedily packs the
// partials into contiguous groups that fit, collapses the groups in parallel,
// then joins before the next round starts. Grouping is deterministic, so the
// same partials and budget always produce the same reduction tree.
type Reducer struct {
	gateway   provider.Gateway
	tokens    *token.Manager
	splitter  *chunker.Splitter
	maxRounds int
	logger    *logger_i.Logger
}

func NewReducer(gateway provider.Gateway, tokens *token.Manager, splitter *chunker.Splitter, maxRounds int) *Reducer {
	if maxRounds < 1 {
		maxRounds = 1
	}
	return &Reducer{
		gateway:   gateway,
		tokens:    tokens,
		splitter:  splitter,
		maxRounds: maxRounds,
		logger:    logger_i.NewLogger("Reducer"),
	}
}

// Reduce collapses partials (in original document order) into a single
// result whose token count fits the budget. Placeholders marked Failed are
// dropped before packing. If the round ceiling is hit before the result
// fits, the best-effort text is returned with Truncated set instead of
// looping forever.
func (r *Reducer) Reduce(ctx context.Context, partials []docModel.PartialResult, budget int, tmpl prompts.Template, vars map[string]string) (docModel.PartialResult, error) {
	current := make([]docModel.PartialResult, 0, len(partials))
	for _, p := range partials {
		if p.Failed {
			continue
		}
		current = append(current, p)
	}
	if len(current) == 0 {
		return docModel.PartialResult{}, ErrNothingToReduce
	}

	for round := 1; round <= r.maxRounds; round++ {
		if totalTokens(current) <= budget {
			out, err := r.combine(ctx, current, tmpl, vars)
			if err != nil {
				return docModel.PartialResult{}, err
			}
			if out.TokenCount > budget {
				// the model overshot; feed the output back into the loop
				// instead of returning an oversized result
				current = []docModel.PartialResult{out}
				continue
			}
			metrics.CaptureReduceRounds(round)
			return out, nil
		}

		groups := packGroups(current, budget)
		results := make([][]docModel.PartialResult, len(groups))

		g, groupCtx := errgroup.WithContext(ctx)
		for i, group := range groups {
			if len(group) == 1 && group[0].TokenCount > budget {
				// a single partial no packing can help: re-chunk its text
				// locally instead of recursing on it forever
				results[i] = r.rechunk(group[0], budget)
				continue
			}
			g.Go(func() error {
				out, err := r.combine(groupCtx, group, tmpl, vars)
				if err != nil {
					return err
				}
				results[i] = []docModel.PartialResult{out}
				return nil
			})
		}
		// join barrier: the next round needs every group's output
		if err := g.Wait(); err != nil {
			return docModel.PartialResult{}, err
		}

		next := make([]docModel.PartialResult, 0, len(groups))
		for _, rs := range results {
			next = append(next, rs...)
		}
		current = next
	}

	r.logger.Warn("reduce hit the round ceiling, returning truncated best effort", "rounds", r.maxRounds)
	return r.truncate(current, budget), nil
}

func (r *Reducer) combine(ctx context.Context, group []docModel.PartialResult, tmpl prompts.Template, vars map[string]string) (docModel.PartialResult, error) {
	texts := make([]string, 0, len(group))
	var sourceIds []string
	for _, p := range group {
		texts = append(texts, p.Text)
		sourceIds = append(sourceIds, p.SourceChunkIds...)
	}
	joined := strings.Join(texts, "\n\n")

	merged := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		merged[k] = v
	}
	merged["text"] = joined
	merged["excerpts"] = joined

	out, err := r.gateway.Complete(ctx, tmpl.Render(merged))
	if err != nil {
		return docModel.PartialResult{}, err
	}
	return docModel.PartialResult{
		SourceChunkIds: sourceIds,
		Text:           out,
		TokenCount:     r.tokens.Estimate(out),
	}, nil
}

// rechunk slices an oversized partial back into budget-sized pieces that
// carry the original source ids.
func (r *Reducer) rechunk(p docModel.PartialResult, budget int) []docModel.PartialResult {
	chunks := r.splitter.SplitText("collapse", p.Text, budget)
	out := make([]docModel.PartialResult, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, docModel.PartialResult{
			SourceChunkIds: p.SourceChunkIds,
			Text:           c.Text,
			TokenCount:     c.TokenCount,
		})
	}
	return out
}

// truncate concatenates in order and cuts at the budget so the caller gets
// best-effort text flagged as such, never a silent drop.
func (r *Reducer) truncate(partials []docModel.PartialResult, budget int) docModel.PartialResult {
	var sourceIds []string
	var b strings.Builder
	for _, p := range partials {
		sourceIds = append(sourceIds, p.SourceChunkIds...)
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Text)
	}
	text := b.String()
	limit := r.tokens.RunesForTokens(budget)
	runes := []rune(text)
	if len(runes) > limit {
		text = string(runes[:limit])
	}
	return docModel.PartialResult{
		SourceChunkIds: sourceIds,
		Text:           text,
		TokenCount:     r.tokens.Estimate(text),
		Truncated:      true,
	}
}

func totalTokens(partials []docModel.PartialResult) int {
	total := 0
	for _, p := range partials {
		total += p.TokenCount
	}
	return total
}

// packGroups greedily packs partials left to right into contiguous groups
// whose summed token counts fit the budget. An oversized partial gets a
// group of its own.
func packGroups(partials []docModel.PartialResult, budget int) [][]docModel.PartialResult {
	var groups [][]docModel.PartialResult
	var cur []docModel.PartialResult
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
			curTokens = 0
		}
	}

	for _, p := range partials {
		if p.TokenCount > budget {
			flush()
			groups = append(groups, []docModel.PartialResult{p})
			continue
		}
		if len(cur) > 0 && curTokens+p.TokenCount > budget {
			flush()
		}
		cur = append(cur, p)
		curTokens += p.TokenCount
	}
	flush()
	return groups
}
