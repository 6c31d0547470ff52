package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls Retry. Only errors accepted by ShouldRetry (default
// IsTransient) are retried.
type RetryConfig struct {
	Attempts    int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, err error)
}

// Retry runs fn up to cfg.Attempts times with jittered exponential backoff.
// It returns the last error when every attempt fails.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var err error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !shouldRetry(err) || attempt == cfg.Attempts-1 {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		t := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.Backoff) * math.Pow(2, float64(attempt))
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	// +/-25% jitter
	d += (rand.Float64()*2 - 1) * d * 0.25
	return time.Duration(d)
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(operation, target string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("operation", operation),
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
