package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
)

// Do runs fn up to attempts times, sleeping a jittered backoff between tries,
// retrying only on ErrConflict. Any other error, including context
// cancellation, returns immediately. When attempts are exhausted the last
// ErrConflict is returned so the caller can surface a transient failure.
func Do(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(base << uint(i))):
		}
	}
	return err
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	if low < 0 {
		low = 0
	}
	high := base.Seconds() + delta
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}
