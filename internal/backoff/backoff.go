// Package backoff retries transient I/O against external services with
// bounded exponential delays. Queries to the segment database and frame
// archive are side-effect-free reads, so retrying at this boundary is
// always safe.
package backoff

import (
	"context"
	"time"
)

// Config bounds a retry loop.
type Config struct {
	MaxAttempts  int           `yaml:"max-attempts"`
	InitialDelay time.Duration `yaml:"initial-delay"`
	MaxDelay     time.Duration `yaml:"max-delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// Default matches the operational tuning used for archive and
// database queries: three attempts, 1s initial delay, doubling.
func Default() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	return c
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx
// is cancelled. The last error is returned on exhaustion; cancellation
// returns ctx.Err().
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.normalized()

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return lastErr
}
