package backoff

import (
	"context"
	"errors"

	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

// IsPermanent reports whether err should never be retried: an
// UpstreamPermanentError, an AuthError, or a ValidationError. Everything
// else (including UpstreamTransientError and plain network errors) is
// considered retryable.
func IsPermanent(err error) bool {
	var permanent *toolproto.UpstreamPermanentError
	if errors.As(err, &permanent) {
		return true
	}
	var auth *toolproto.AuthError
	if errors.As(err, &auth) {
		return true
	}
	var validation *toolproto.ValidationError
	if errors.As(err, &validation) {
		return true
	}
	return false
}

// RetryClassified runs fn up to maxAttempts times with the given backoff
// policy, stopping immediately (without consuming remaining attempts) if
// IsPermanent reports the error should not be retried.
func RetryClassified[T any](
	ctx context.Context,
	policy BackoffPolicy,
	maxAttempts int,
	fn func(attempt int) (T, error),
) (RetryResult[T], error) {
	var result RetryResult[T]
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = lastErr
			return result, err
		}

		value, err := fn(attempt)
		if err == nil {
			result.Value = value
			return result, nil
		}

		lastErr = err
		result.LastError = err

		if IsPermanent(err) {
			return result, err
		}

		if attempt < maxAttempts {
			if err := SleepWithBackoff(ctx, policy, attempt); err != nil {
				return result, err
			}
		}
	}

	return result, lastErr
}
