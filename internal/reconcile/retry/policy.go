package retry

import (
	"math"
	"time"

	"github.com/smallbiznis/guardbook/internal/config"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultMaxElapsed  = 10 * time.Second

	// jitterFraction bounds the uniform perturbation applied to each delay.
	jitterFraction = 0.15
)

// Policy bounds one retried operation by attempt count and by total elapsed time.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxElapsed  time.Duration
	Jitter      bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxElapsed:  DefaultMaxElapsed,
		Jitter:      true,
	}
}

// PolicyFrom converts the hot-reloadable retry settings into a Policy.
func PolicyFrom(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxElapsed:  cfg.MaxElapsed,
		Jitter:      cfg.Jitter,
	}.normalize()
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = DefaultMaxElapsed
	}
	return p
}

// backoff is the delay after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), scaled by a factor in [1-jitterFraction, 1+jitterFraction]
// when jitter is on. unit must return a value in [0, 1).
func (p Policy) backoff(attempt int, unit func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.Jitter && unit != nil {
		delay *= 1 + (unit()*2-1)*jitterFraction
	}
	if delay > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
