package base

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/errors"
)

// RetryPolicy defines retry behavior for fallible source operations.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns the standard exponential backoff policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay returns the backoff before the given attempt (1-indexed, attempt >= 2):
// min(baseDelay * multiplier^(attempt-2), maxDelay) plus a uniform jitter of
// up to 10% of that value. The jitter keeps concurrent connectors from
// retrying in lockstep.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-2))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	jitter := rand.Float64() * 0.1 * delay
	return time.Duration(delay + jitter)
}

// Executor wraps fallible operations with a per-attempt hard timeout and
// classification-driven retries. Every attempt, success or failure, updates
// the connector metrics.
type Executor struct {
	policy  RetryPolicy
	metrics *Metrics
	logger  *zap.Logger
}

// NewExecutor creates a retry executor.
func NewExecutor(policy RetryPolicy, metrics *Metrics, logger *zap.Logger) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Executor{
		policy:  policy,
		metrics: metrics,
		logger:  logger,
	}
}

// Execute runs op with the executor's retry policy. Each attempt races
// against the timeout; an expired attempt is abandoned and classified as
// TIMEOUT. An error is retried only when its classification is explicitly
// marked retryable; everything else propagates immediately without consuming
// the remaining attempts. Exhausting all attempts yields a terminal
// MAX_RETRIES_EXCEEDED wrapping the last cause.
func (e *Executor) Execute(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		start := time.Now()
		err := e.Once(ctx, timeout, op)
		e.metrics.RecordQuery(time.Since(start), err == nil)

		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Retryable(err) {
			return err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.policy.Delay(attempt + 1)
		e.logger.Warn("operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.CodeUnknown, "retry cancelled").WithRetryable(false)
		case <-timer.C:
		}
	}

	return errors.Wrap(lastErr, errors.CodeMaxRetries,
		fmt.Sprintf("all %d attempts failed", e.policy.MaxAttempts))
}

// Once runs op exactly once under the timeout race, without retries and
// without touching metrics. Used for connectivity probes and health checks.
func (e *Executor) Once(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), errors.CodeUnknown, "attempt cancelled").WithRetryable(false)
		}
		// The attempt is abandoned; op is expected to honor attemptCtx
		// and unwind shortly after.
		return errors.Newf(errors.CodeTimeout, "operation exceeded %s deadline", timeout)
	}
}
