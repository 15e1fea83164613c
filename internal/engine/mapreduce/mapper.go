package mapreduce

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/prompts"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/internal/engine/token"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

var ErrNothingToMap = errors.New("no chunks to map")

// Mapper runs one extraction per chunk through the gateway, concurrently up
// to the configured bound. Output order follows chunk order regardless of
// completion order.
type Mapper struct {
	gateway     provider.Gateway
	tokens      *token.Manager
	maxParallel int
	strict      bool
	logger      *logger_i.Logger
}

func NewMapper(gateway provider.Gateway, tokens *token.Manager, maxParallel int, strict bool) *Mapper {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Mapper{
		gateway:     gateway,
		tokens:      tokens,
		maxParallel: maxParallel,
		strict:      strict,
		logger:      logger_i.NewLogger("Mapper"),
	}
}

// Map returns one PartialResult per chunk plus a degraded flag. In the
// default mode a chunk whose call fails (after the gateway's own retries)
// becomes a placeholder marked Failed so reduction can continue on partial
// information; in strict mode the first failure aborts the whole fan-out.
func (m *Mapper) Map(ctx context.Context, chunks []docModel.Chunk, tmpl prompts.Template, vars map[string]string) ([]docModel.PartialResult, bool, error) {
	if len(chunks) == 0 {
		return nil, false, ErrNothingToMap
	}

	partials := make([]docModel.PartialResult, len(chunks))
	degraded := make([]bool, len(chunks))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxParallel)

	for i, chunk := range chunks {
		g.Go(func() error {
			rendered := render(tmpl, vars, chunk)
			out, err := m.gateway.Complete(groupCtx, rendered)
			if err != nil {
				if m.strict {
					return fmt.Errorf("map failed for chunk %s: %w", chunk.ChunkId(), err)
				}
				m.logger.Warn("map call failed, substituting placeholder", "chunk", chunk.ChunkId(), "error", err)
				partials[i] = docModel.PartialResult{
					SourceChunkIds: []string{chunk.ChunkId()},
					Failed:         true,
				}
				degraded[i] = true
				return nil
			}
			partials[i] = docModel.PartialResult{
				SourceChunkIds: []string{chunk.ChunkId()},
				Text:           out,
				TokenCount:     m.tokens.Estimate(out),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	anyDegraded := false
	for _, d := range degraded {
		if d {
			anyDegraded = true
			break
		}
	}
	return partials, anyDegraded, nil
}

func render(tmpl prompts.Template, vars map[string]string, chunk docModel.Chunk) string {
	merged := make(map[string]string, len(vars)+3)
	for k, v := range vars {
		merged[k] = v
	}
	merged["text"] = chunk.Text
	merged["context"] = chunk.Text
	merged["chunk_id"] = chunk.ChunkId()
	return tmpl.Render(merged)
}
