package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls the exponential backoff retry loop.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	// MaxRetries of 2 means the operation runs at most 3 times.
	MaxRetries int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay
	MaxDelay time.Duration

	// ExponentialBase is the backoff multiplier per attempt
	ExponentialBase float64

	// Jitter randomizes each delay by a uniform factor in [0.5, 1.0)
	Jitter bool
}

// DefaultRetryConfig returns a retry policy suitable for transient
// network failures against external Swedish data sources.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Validate checks the retry configuration
func (c *RetryConfig) Validate() error {
	if c == nil {
		return errors.New("retry configuration cannot be nil")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %v", c.BaseDelay)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("max delay %v cannot be less than base delay %v", c.MaxDelay, c.BaseDelay)
	}
	if c.ExponentialBase <= 1.0 {
		return fmt.Errorf("exponential base must be greater than 1.0, got %f", c.ExponentialBase)
	}
	return nil
}

// Delay returns the backoff delay after the given zero-based failed
// attempt, with jitter applied when enabled.
func (c *RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter {
		delay *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}

// Retry runs the operation until it succeeds, the configured attempts are
// exhausted, or the context is cancelled. The error from the final failed
// attempt is returned to the caller unchanged so errors.Is/As checks on
// the underlying failure keep working. Context cancellation during a
// backoff sleep returns the context error.
func Retry(ctx context.Context, config *RetryConfig, operation func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if err := config.Validate(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-time.After(config.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
