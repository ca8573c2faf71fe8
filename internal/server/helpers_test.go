package server

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/guardbook/internal/auth"
	"github.com/smallbiznis/guardbook/internal/clock"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/observability"
	"github.com/smallbiznis/guardbook/internal/ratelimit"
	"github.com/smallbiznis/guardbook/internal/reconcile/adapters"
	"github.com/smallbiznis/guardbook/internal/reconcile/deadletter"
	"github.com/smallbiznis/guardbook/internal/reconcile/dispatcher"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/internal/reconcile/retry"
	"github.com/smallbiznis/guardbook/internal/reconcile/webhook"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const (
	testWebhookSecret = "whsec_server_test"
	testJWTSecret     = "jwt-server-test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		Stripe: config.StripeConfig{
			SecretKey:        "sk_test_123",
			WebhookSecret:    testWebhookSecret,
			WebhookTolerance: 5 * time.Minute,
		},
		AuthJWTSecret: testJWTSecret,
		AdminRoles:    []string{"admin", "ops"},
	}
}

type serverDeps struct {
	webhooks     WebhookIngester
	failedEvents FailedEventLister
	limiter      *ratelimit.AdminLimiter
	tuning       *config.ReconcileConfigHolder
}

func newTestServer(t *testing.T, deps serverDeps) *gin.Engine {
	t.Helper()
	cfg := testConfig()
	log := zaptest.NewLogger(t)

	enforcer, err := auth.NewEnforcer(cfg)
	require.NoError(t, err)

	engine := NewEngine(observability.Config{}, log, nil)
	NewServer(ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		Log:          log,
		Webhooks:     deps.webhooks,
		FailedEvents: deps.failedEvents,
		Tokens:       auth.NewJWTVerifier(cfg),
		Authz:        auth.NewAuthorizer(auth.AuthorizerParams{Log: log, Enforcer: enforcer}),
		AdminLimiter: deps.limiter,
		Tuning:       deps.tuning,
	})
	return engine
}

// newIngestStack wires the real verification, dispatch, retry and dead-letter
// path over repo.
func newIngestStack(t *testing.T, db *gorm.DB, repo domain.Repository) (*webhook.Service, *deadletter.Recorder) {
	t.Helper()
	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	recorder := deadletter.NewRecorder(deadletter.Params{DB: db, Log: log, Repo: repo, GenID: node, Clock: clk})
	executor := retry.NewExecutor(retry.Params{Log: log, Clock: clk, DeadLetter: recorder})
	svc := adapters.NewService(adapters.Params{DB: db, Log: log, Repo: repo, Retry: executor, Clock: clk})
	d := dispatcher.New(dispatcher.Params{Log: log, Adapters: svc})
	return webhook.NewService(webhook.Params{Config: testConfig(), Log: log, Dispatcher: d}), recorder
}

func signAdminToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := auth.Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

type stubLister struct {
	rows     []domain.FailedEventRecord
	err      error
	beforeID int64
	limit    int
	calls    int
}

func (s *stubLister) Recent(_ context.Context, beforeID int64, limit int) ([]domain.FailedEventRecord, error) {
	s.calls++
	s.beforeID = beforeID
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.FailedEventRecord
	for _, row := range s.rows {
		if beforeID > 0 && row.ID >= beforeID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, row)
	}
	return out, nil
}

type stubIngester struct {
	calls int
}

func (s *stubIngester) Ingest(context.Context, []byte, string) (domain.DispatchResult, error) {
	s.calls++
	return domain.DispatchResult{}, nil
}
