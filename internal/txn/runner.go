package txn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"commission-app/internal/apperr"
)

const DefaultBaseDelay = 100 * time.Millisecond

// Runner executes a unit of work under the policy of its class. The zero
// value is ready to use.
type Runner struct {
	BaseDelay time.Duration
	// Policies overrides the built-in table per class.
	Policies map[Class]Policy
	// Sleep waits between retries; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (r Runner) Policy(c Class) Policy {
	if p, ok := r.Policies[c]; ok {
		return p
	}
	return PolicyFor(c)
}

// Backoff returns the wait before the given retry (0-based): BaseDelay × 2^retry.
func (r Runner) Backoff(retry int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base << uint(retry)
}

// Do runs attempt until it succeeds, fails with a non-transient error, or the
// class retry budget is spent. Every attempt gets its own timeout.
func (r Runner) Do(ctx context.Context, class Class, attempt func(ctx context.Context, p Policy) error) error {
	p := r.Policy(class)

	var err error
	for retry := 0; ; retry++ {
		err = runOnce(ctx, p, attempt)
		if err == nil {
			return nil
		}
		if !IsTransient(err) || ctx.Err() != nil {
			return err
		}
		if retry >= p.MaxRetries {
			break
		}

		delay := r.Backoff(retry)
		slog.Warn("retrying transaction", "class", class.String(), "retry", retry+1, "delay", delay, "err", err)
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	return apperr.Internal(fmt.Sprintf("%s transaction failed after %d attempts", class, p.MaxRetries+1), err)
}

func runOnce(ctx context.Context, p Policy, attempt func(ctx context.Context, p Policy) error) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	return attempt(ctx, p)
}

func (r Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
