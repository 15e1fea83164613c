package provider

import (
	"context"
	"errors"
)

// Gateway is the uniform surface over any completion/embedding backend.
// Mapper, Reducer and the indexer depend on this, never on a provider SDK.
// Embed is the document-side batch call; EmbedQuery embeds a single search
// query, so backends that distinguish embedding task types can route it.
type Gateway interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Upstream failure classes. Backends wrap SDK errors into one of these so
// the retry policy can react without inspecting provider response shapes.
var (
	// ErrRateLimited must be reported distinguishably from other errors
	ErrRateLimited = errors.New("provider rate limited")
	ErrTimeout     = errors.New("provider call timed out")
	ErrTransient   = errors.New("transient provider error")
	// ErrBadInput is permanent and never retried
	ErrBadInput = errors.New("bad provider input")
)

// Retryable reports whether the backoff loop should try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrTransient)
}
