package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/guardbook/internal/auth"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/observability"
	obslogger "github.com/smallbiznis/guardbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/guardbook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/guardbook/internal/observability/tracing"
	"github.com/smallbiznis/guardbook/internal/ratelimit"
	"github.com/smallbiznis/guardbook/internal/reconcile/deadletter"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/internal/reconcile/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(
		func(s *webhook.Service) WebhookIngester { return s },
		func(r *deadletter.Recorder) FailedEventLister { return r },
		func(a *auth.Authorizer) Authorizer { return a },
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// WebhookIngester verifies and dispatches one provider callback.
type WebhookIngester interface {
	Ingest(ctx context.Context, payload []byte, signatureHeader string) (domain.DispatchResult, error)
}

// FailedEventLister reads dead-letter rows newest first.
type FailedEventLister interface {
	Recent(ctx context.Context, beforeID int64, limit int) ([]domain.FailedEventRecord, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, principal auth.Principal, object, action string) error
}

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Log:             log,
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.NoMethod(func(c *gin.Context) {
		AbortWithError(c, ErrMethodNotAllowed)
	})
	r.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	webhooks     WebhookIngester
	failedEvents FailedEventLister
	tokens       auth.TokenVerifier
	authz        Authorizer
	adminLimiter *ratelimit.AdminLimiter
	tuning       *config.ReconcileConfigHolder
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Webhooks     WebhookIngester
	FailedEvents FailedEventLister
	Tokens       auth.TokenVerifier
	Authz        Authorizer
	AdminLimiter *ratelimit.AdminLimiter       `optional:"true"`
	Tuning       *config.ReconcileConfigHolder `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		webhooks:     p.Webhooks,
		failedEvents: p.FailedEvents,
		tokens:       p.Tokens,
		authz:        p.Authz,
		adminLimiter: p.AdminLimiter,
		tuning:       p.Tuning,
	}
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()
	return svc
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/stripe/webhook", s.HandleStripeWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminAuthRequired(auth.ObjectFailedEvents, auth.ActionRead))
	admin.GET("/stripe-failed-events", s.ListFailedEvents)
}
