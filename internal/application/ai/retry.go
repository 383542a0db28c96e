package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries transient completion failures.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Exponential switches the fixed delay for an exponential backoff
	// starting at Delay.
	Exponential bool
}

// DefaultRetryPolicy is three attempts with a fixed two second delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// permanentError marks failures that must not be retried.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff
	if p.Exponential {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.Delay
		exp.MaxElapsedTime = 0
		b = exp
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a permanent error, attempts run
// out, or ctx is done. It returns the last error and the attempt count.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error) (int, error) {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := op(attempt)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))
	return attempt, err
}
