package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/c360/mspikes/errors"
)

// Config controls the backoff between attempts.
type Config struct {
	MaxAttempts  int           // Total attempts including the first (at least 1)
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound on any delay
	Multiplier   float64       // Growth factor per attempt
	AddJitter    bool          // Add up to 25% random delay
}

// DefaultConfig returns 3 attempts with 100ms to 5s delays.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Startup returns the config used when connecting to external services at
// the start of a run: 5 attempts with 250ms to 4s delays.
func Startup() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Validate checks the config for impossible values.
func (c Config) Validate() error {
	switch {
	case c.InitialDelay < 0, c.MaxDelay < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Retry", "Validate", "delays cannot be negative")
	case c.Multiplier < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Retry", "Validate", "multiplier cannot be negative")
	case c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Retry", "Validate", "max delay below initial delay")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	c.Multiplier = min(c.Multiplier, 1000)
	return c
}

// Do calls fn until it succeeds, returns an error that is not transient (see
// errors.IsTransient), the attempts run out or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.IsTransient(err) {
			return err
		}
		if ctx.Err() != nil {
			return errors.WrapTransient(err, "Retry", "Do",
				fmt.Sprintf("cancelled after attempt %d", attempt))
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := delay
		if cfg.AddJitter && delay >= 4 {
			sleep += rand.N(delay / 4)
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WrapTransient(err, "Retry", "Do",
				fmt.Sprintf("cancelled waiting for attempt %d", attempt+1))
		case <-timer.C:
		}

		next := float64(delay) * cfg.Multiplier
		if next > float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(next)
		}
	}
	return errors.Wrap(lastErr, "Retry", "Do", fmt.Sprintf("gave up after %d attempts", cfg.MaxAttempts))
}

// DoWithResult is Do for functions that also produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
