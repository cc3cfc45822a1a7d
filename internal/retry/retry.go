// Package retry repeats single-item generation calls with a fixed delay.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/gemini"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/workflow"
)

const (
	DefaultRetries = 2
	DefaultDelay   = time.Second
)

type Policy struct {
	Retries int
	Delay   time.Duration
	Logger  *slog.Logger
}

func DefaultPolicy() Policy {
	return Policy{Retries: DefaultRetries, Delay: DefaultDelay}
}

// Do runs fn once plus up to p.Retries more times. Errors that cannot improve on a second try
// return immediately, and so does every error once ctx is done. A timeout of a single attempt
// (an http.Client deadline, say) is retried while ctx is still live.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retries := max(p.Retries, 0)
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(retries)), ctx)

	attempt := 0
	op := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err != nil && (ctx.Err() != nil || Permanent(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("generation call failed, retrying", "attempt", attempt, "wait_ms", wait.Milliseconds(), "err", err)
		}
	}
	return backoff.RetryNotifyWithData(op, b, notify)
}

// Permanent reports errors a retry cannot fix: missing input, schema violations, missing or
// rejected credentials and stale session writes. Context errors are not decided here; Value looks
// at the caller's context instead.
func Permanent(err error) bool {
	if errors.Is(err, prompt.ErrMissingPrecondition) ||
		errors.Is(err, credential.ErrNotSet) ||
		errors.Is(err, workflow.ErrStale) {
		return true
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}
