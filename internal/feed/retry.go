package feed

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const (
	maxRetryAttempts    = 3
	initialRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 2 * time.Second
)

var (
	authErrorSubstrings = []string{
		"authentication failed",
		"authentication error",
		"invalid credentials",
		"invalid password",
		"password is incorrect",
		"wrong password",
		"unknown user",
		"unauthorized",
		"access denied",
		"sqlstate[28000]",
		"sqlstate 28000",
		"code: 193",
		"code: 194",
		"code: 497",
		"code: 516",
	}
	retryableErrorSubstrings = []string{
		"timeout",
		"eof",
		"broken pipe",
		"connection reset",
		"connection refused",
		"connection aborted",
		"connection closed",
		"use of closed network connection",
		"network is unreachable",
		"no route to host",
		"no such host",
		"too many simultaneous queries",
	}
)

// clickhouse error codes that mean the credentials will never work
var authErrorCodes = map[int32]bool{193: true, 194: true, 497: true, 516: true}

type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          func(context.Context, time.Duration) error
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:    maxRetryAttempts,
		initialBackoff: initialRetryBackoff,
		maxBackoff:     maxRetryBackoff,
		sleep:          sleepWithContext,
	}
}

func (p retryPolicy) normalized() retryPolicy {
	if p.maxAttempts <= 0 {
		p.maxAttempts = maxRetryAttempts
	}
	if p.initialBackoff <= 0 {
		p.initialBackoff = initialRetryBackoff
	}
	if p.maxBackoff < p.initialBackoff {
		p.maxBackoff = max(maxRetryBackoff, p.initialBackoff)
	}
	if p.sleep == nil {
		p.sleep = sleepWithContext
	}
	return p
}

// withRetry runs fn until it succeeds, fails permanently or runs out of
// attempts. Backoff doubles up to maxBackoff.
func withRetry(ctx context.Context, policy retryPolicy, op string, fn func() error) error {
	policy = policy.normalized()
	backoff := policy.initialBackoff

	var lastErr error
	for attempt := 1; attempt <= policy.maxAttempts; attempt++ {
		if err := contextError(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}

		if isAuthError(err) || !isRetryableError(err) || attempt == policy.maxAttempts {
			return err
		}

		slog.Debug("retrying feed operation",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)
		if err := policy.sleep(ctx, backoff); err != nil {
			if ctxErr := contextError(ctx); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		backoff = min(backoff*2, policy.maxBackoff)
	}

	return lastErr
}

// withTotalTimeout bounds every attempt of an operation together. The
// context cause is DeadlineExceeded when the budget runs out.
func withTotalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}

	ctx, cancelCause := context.WithCancelCause(parent)
	timer := time.AfterFunc(timeout, func() {
		cancelCause(context.DeadlineExceeded)
	})

	return ctx, func() {
		timer.Stop()
		cancelCause(context.Canceled)
	}
}

func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return err
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return contextError(ctx)
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

func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	var chErr *clickhouse.Exception
	if errors.As(err, &chErr) && authErrorCodes[chErr.Code] {
		return true
	}

	return containsAny(strings.ToLower(err.Error()), authErrorSubstrings)
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return containsAny(strings.ToLower(err.Error()), retryableErrorSubstrings)
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
