package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubGateway struct {
	OnComplete func(ctx context.Context, prompt string) (string, error)

	calls    int32
	inFlight int32
	maxSeen  int32
}

func (s *stubGateway) Name() string { return "stub/model" }

func (s *stubGateway) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	cur := atomic.AddInt32(&s.inFlight, 1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, cur) {
			break
		}
	}
	defer atomic.AddInt32(&s.inFlight, -1)
	if s.OnComplete != nil {
		return s.OnComplete(ctx, prompt)
	}
	return "ok", nil
}

func (s *stubGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (s *stubGateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 3), nil
}

func fastConfig(maxParallel int, maxAttempts int) ThrottleConfig {
	return ThrottleConfig{
		MaxParallelCalls: maxParallel,
		CallTimeout:      time.Second,
		MaxAttempts:      maxAttempts,
		BackoffBase:      time.Millisecond,
		BackoffCap:       5 * time.Millisecond,
	}
}

func TestThrottle_RetriesRateLimited(t *testing.T) {
	var attempts int32
	stub := &stubGateway{
		OnComplete: func(ctx context.Context, prompt string) (string, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return "", ErrRateLimited
			}
			return "third time lucky", nil
		},
	}
	throttle := NewThrottle(stub, fastConfig(2, 4))

	out, err := throttle.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("expected recovery after retries: %v", err)
	}
	if out != "third time lucky" {
		t.Errorf("got %q", out)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("made %d attempts, want 3", n)
	}
}

func TestThrottle_GivesUpAfterMaxAttempts(t *testing.T) {
	stub := &stubGateway{
		OnComplete: func(ctx context.Context, prompt string) (string, error) {
			return "", ErrTransient
		},
	}
	throttle := NewThrottle(stub, fastConfig(2, 3))

	_, err := throttle.Complete(context.Background(), "p")
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if !errors.Is(err, ErrTransient) {
		t.Errorf("error lost its class: %v", err)
	}
	if n := atomic.LoadInt32(&stub.calls); n != 3 {
		t.Errorf("made %d calls, want exactly maxAttempts", n)
	}
}

func TestThrottle_BadInputNotRetried(t *testing.T) {
	stub := &stubGateway{
		OnComplete: func(ctx context.Context, prompt string) (string, error) {
			return "", ErrBadInput
		},
	}
	throttle := NewThrottle(stub, fastConfig(2, 4))

	_, err := throttle.Complete(context.Background(), "p")
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if n := atomic.LoadInt32(&stub.calls); n != 1 {
		t.Errorf("permanent failure was retried %d times", n-1)
	}
}

func TestThrottle_BoundsConcurrency(t *testing.T) {
	const bound = 3
	release := make(chan struct{})
	stub := &stubGateway{
		OnComplete: func(ctx context.Context, prompt string) (string, error) {
			<-release
			return "done", nil
		},
	}
	throttle := NewThrottle(stub, fastConfig(bound, 1))

	const callers = 12
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = throttle.Complete(context.Background(), "p")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if peak := atomic.LoadInt32(&stub.maxSeen); peak > bound {
		t.Errorf("%d calls ran concurrently, bound is %d", peak, bound)
	}
	if n := atomic.LoadInt32(&stub.calls); n != callers {
		t.Errorf("%d of %d calls reached the backend", n, callers)
	}
}

func TestThrottle_CallerCancellationWins(t *testing.T) {
	stub := &stubGateway{
		OnComplete: func(ctx context.Context, prompt string) (string, error) {
			return "", ErrRateLimited
		},
	}
	throttle := NewThrottle(stub, ThrottleConfig{
		MaxParallelCalls: 1,
		CallTimeout:      time.Second,
		MaxAttempts:      10,
		BackoffBase:      200 * time.Millisecond,
		BackoffCap:       time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := throttle.Complete(ctx, "p")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled during backoff, got %v", err)
	}
}
