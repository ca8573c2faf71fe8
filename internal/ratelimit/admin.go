package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyAdminSubject = "guardbook:admin:subject:"

	endpointFailedEvents = "admin.stripe_failed_events"
)

// Bucket decides whether one more request fits under a rate.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// AdminLimiter throttles admin reads per authenticated subject. A nil
// limiter allows everything.
type AdminLimiter struct {
	bucket  Bucket
	rate    float64
	burst   int
	log     *zap.Logger
	metrics *metrics.Metrics
}

type AdminLimiterParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

func NewAdminLimiter(p AdminLimiterParams) (*AdminLimiter, error) {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.AdminRate <= 0 || cfg.AdminBurst <= 0 {
		return nil, errors.New("admin rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return NewAdminLimiterWithBucket(NewTokenBucket(client), cfg.AdminRate, cfg.AdminBurst, p.Log, p.Metrics), nil
}

func NewAdminLimiterWithBucket(bucket Bucket, rate float64, burst int, log *zap.Logger, m *metrics.Metrics) *AdminLimiter {
	return &AdminLimiter{
		bucket:  bucket,
		rate:    rate,
		burst:   burst,
		log:     log.Named("ratelimit.admin"),
		metrics: m,
	}
}

// Allow fails open: when Redis is unreachable the request proceeds and the
// error is logged.
func (l *AdminLimiter) Allow(ctx context.Context, subject string) Decision {
	if l == nil || l.bucket == nil {
		return Decision{Allowed: true}
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}

	res, err := l.bucket.Allow(ctx, keyAdminSubject+subject, l.rate, l.burst)
	if err != nil {
		logger.WithContext(ctx, l.log).Warn("admin rate limit check failed", zap.Error(err))
		return Decision{Allowed: true}
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, endpointFailedEvents, "subject-rate")
		return Decision{Allowed: false, RetryAfter: res.RetryAfter}
	}
	return Decision{Allowed: true}
}
