package fetch

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// DefaultRetries is how many times a Retrier retries a transient failure.
const DefaultRetries = 2

const maxBackoff = 30 * time.Second

// Retryable reports whether err is a transient fetch failure: a transport
// error other than cancellation, a 5xx or a 429.
func Retryable(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch {
	case fe.StatusCode == 0:
		return fe.Err != nil && !errors.Is(fe.Err, context.Canceled) && !errors.Is(fe.Err, context.DeadlineExceeded)
	case fe.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return fe.StatusCode >= 500
	}
}

// Backoff returns an exponential delay with jitter for the given attempt.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return d + rand.N(base)
}

// Retrier wraps a Fetcher and retries transient failures with backoff. It is
// meant for background loads; viewer fetches surface their first failure.
type Retrier struct {
	Fetcher Fetcher
	Retries int
	Base    time.Duration
	Log     *slog.Logger
}

func (r *Retrier) Fetch(ctx context.Context, ref string) (string, error) {
	var body string
	var err error
	for attempt := range max(r.Retries, 0) + 1 {
		body, err = r.Fetcher.Fetch(ctx, ref)
		if err == nil || !Retryable(err) || attempt == r.Retries {
			break
		}
		if r.Log != nil {
			r.Log.Warn("retryable fetch error", "ref", ref, "attempt", attempt, "error", err)
		}
		select {
		case <-time.After(Backoff(attempt, r.Base)):
		case <-ctx.Done():
			return "", &FetchError{Ref: ref, Err: ctx.Err()}
		}
	}
	return body, err
}
