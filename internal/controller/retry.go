package controller

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/query"
)

// Retry configures caller-side retries of list fetches. The fetcher itself
// makes exactly one request per call; a List with MaxAttempts > 1 calls it
// again for retryable errors (network, timeout, 429, 5xx).
type Retry struct {
	MaxAttempts int
	Initial     time.Duration // first delay, default 250ms
	Max         time.Duration // delay cap, default 2s
}

func (r Retry) enabled() bool { return r.MaxAttempts > 1 }

func (r Retry) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	if r.Initial > 0 {
		b.InitialInterval = r.Initial
	}
	b.MaxInterval = 2 * time.Second
	if r.Max > 0 {
		b.MaxInterval = r.Max
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.MaxAttempts-1)), ctx)
}

// fetchWithRetry calls f.List, retrying per r.
func fetchWithRetry[T any](ctx context.Context, f Fetcher[T], q query.Query, r Retry) (fetch.Page[T], error) {
	if !r.enabled() {
		return f.List(ctx, q)
	}

	var page fetch.Page[T]
	attempt := 0
	op := func() error {
		attempt++
		p, err := f.List(ctx, q)
		if err == nil {
			page = p
			return nil
		}
		if fe := fetch.AsError(err); fe == nil || !fe.Retryable() {
			return backoff.Permanent(err)
		}
		logging.Debug("list fetch retry", "attempt", attempt, "max", r.MaxAttempts, "error", err)
		return err
	}
	if err := backoff.Retry(op, r.backOff(ctx)); err != nil {
		return fetch.Page[T]{}, err
	}
	return page, nil
}
