package utils

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs op with an exponential backoff until it succeeds or ctx is
// cancelled; there is no elapsed-time limit.
func Retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
