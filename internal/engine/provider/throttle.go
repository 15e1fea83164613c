package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/metrics"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
	"golang.org/x/sync/semaphore"
)

// Throttle wraps a backend with the concerns every caller needs and none
// should implement: a concurrency bound sized to the provider's rate limit,
// a hard per-call timeout, and exponential backoff with jitter on transient
// failures up to a fixed attempt ceiling.
type Throttle struct {
	backend     Gateway
	sem         *semaphore.Weighted
	callTimeout time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *logger_i.Logger
}

type ThrottleConfig struct {
	MaxParallelCalls int
	CallTimeout      time.Duration
	MaxAttempts      int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxParallelCalls: config.ProviderMaxParallelCalls,
		CallTimeout:      config.ProviderCallTimeout,
		MaxAttempts:      config.ProviderMaxAttempts,
		BackoffBase:      config.ProviderBackoffBase,
		BackoffCap:       config.ProviderBackoffCap,
	}
}

func NewThrottle(backend Gateway, cfg ThrottleConfig) *Throttle {
	if cfg.MaxParallelCalls < 1 {
		cfg.MaxParallelCalls = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Throttle{
		backend:     backend,
		sem:         semaphore.NewWeighted(int64(cfg.MaxParallelCalls)),
		callTimeout: cfg.CallTimeout,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		logger:      logger_i.NewLogger("ProviderThrottle"),
	}
}

func (t *Throttle) Name() string {
	return t.backend.Name()
}

func (t *Throttle) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := t.do(ctx, "complete", func(callCtx context.Context) error {
		var callErr error
		out, callErr = t.backend.Complete(callCtx, prompt)
		return callErr
	})
	return out, err
}

func (t *Throttle) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := t.do(ctx, "embed", func(callCtx context.Context) error {
		var callErr error
		out, callErr = t.backend.Embed(callCtx, texts)
		return callErr
	})
	return out, err
}

func (t *Throttle) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := t.do(ctx, "embed_query", func(callCtx context.Context) error {
		var callErr error
		out, callErr = t.backend.EmbedQuery(callCtx, text)
		return callErr
	})
	return out, err
}

func (t *Throttle) do(ctx context.Context, op string, call func(context.Context) error) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer t.sem.Release(1)

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
		start := time.Now()
		err := call(callCtx)
		cancel()
		metrics.CaptureExecutionMetrics("provider_"+op, time.Since(start))

		if err == nil {
			return nil
		}
		// distinguish our deadline from the caller's cancellation
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%s on %s: %w", op, t.backend.Name(), ErrTimeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !Retryable(err) {
			return err
		}
		lastErr = err

		if attempt == t.maxAttempts {
			break
		}
		wait := t.backoff(attempt)
		t.logger.Warn("retrying provider call", "op", op, "attempt", attempt, "wait", wait, "error", err)
		metrics.CaptureProviderRetry(op)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s on %s gave up after %d attempts: %w", op, t.backend.Name(), t.maxAttempts, lastErr)
}

// backoff doubles per attempt, capped, with half-window jitter so callers
// racing on the same rate limit don't retry in lockstep.
func (t *Throttle) backoff(attempt int) time.Duration {
	d := t.backoffBase << (attempt - 1)
	if d > t.backoffCap {
		d = t.backoffCap
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
