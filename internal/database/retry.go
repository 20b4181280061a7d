package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redmonkez12/farm-fresh-api/internal/logging"
)

// Connect calls fn up to attempts times, sleeping delay between failures.
// The last error is returned once every attempt has failed.
func Connect[T any](ctx context.Context, logger *logging.Logger, name string, attempts int, delay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Info("connecting to store", "store", name, "attempt", attempt, "max_attempts", attempts)

		conn, err := fn(ctx)
		if err == nil {
			logger.Info("connected to store", "store", name)
			return conn, nil
		}
		lastErr = err
		logger.Warn("store connection attempt failed", "store", name, "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("connect to %s after %d attempts: %w", name, attempts, lastErr)
}
