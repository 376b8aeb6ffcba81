package ratelimit

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-brokerage/core"
)

const (
	defaultMaxAttempts    = 5
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = 60 * time.Second
)

// Retrier re-executes a call while it fails with a rate-limit outcome.
// Every other error propagates on the first attempt. The wait honors the
// server's Retry-After hint when present; otherwise it follows an
// exponential schedule. There is no overall wall-clock ceiling: a server
// that keeps sending large hints keeps the caller waiting, bounded only by
// the attempt count and by context cancellation.
type Retrier struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         core.Logger

	// Sleep is injectable for tests; the default waits on a timer and on
	// ctx.Done so cancellation interrupts the wait immediately.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier() *Retrier {
	return &Retrier{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		Logger:         glog.Nop(),
		Sleep:          sleepContext,
	}
}

// Do runs call up to MaxAttempts times. The final rate-limit error is
// returned unchanged once attempts are exhausted so callers can apply a
// longer-horizon policy on top.
func (r *Retrier) Do(
	ctx context.Context,
	operation string,
	call func(ctx context.Context) (map[string]any, error),
) (map[string]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	maxAttempts := r.maxAttempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		if !core.IsRateLimited(err) {
			return nil, err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		wait := r.waitFor(err, attempt)
		r.logRetry(ctx, operation, attempt, wait)
		if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, lastErr
}

// waitFor prefers the server hint; absent one, the schedule doubles from
// InitialBackoff per attempt, capped at MaxBackoff.
func (r *Retrier) waitFor(err error, attempt int) time.Duration {
	if hint, ok := core.RetryAfterHint(err); ok {
		return hint
	}
	initial := r.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maximum := r.MaxBackoff
	if maximum <= 0 {
		maximum = defaultMaxBackoff
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func (r *Retrier) maxAttempts() int {
	if r == nil || r.MaxAttempts < 1 {
		return defaultMaxAttempts
	}
	return r.MaxAttempts
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r != nil && r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (r *Retrier) logRetry(ctx context.Context, operation string, attempt int, wait time.Duration) {
	if r == nil || r.Logger == nil {
		return
	}
	logger := r.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Info("rate limited, retrying",
		"operation", operation,
		"attempt", attempt,
		"wait_ms", wait.Milliseconds(),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
