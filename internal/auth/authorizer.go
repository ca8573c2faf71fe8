package auth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	ObjectFailedEvents = "stripe_failed_events"
	ActionRead         = "read"
)

// NewEnforcer builds an in-memory enforcer granting every configured admin
// role read access to the dead-letter table.
func NewEnforcer(cfg config.Config) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, role := range cfg.AdminRoles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, err := enforcer.AddPolicy(roleSubject(role), ObjectFailedEvents, ActionRead); err != nil {
			return nil, fmt.Errorf("seed policy for role %s: %w", role, err)
		}
	}
	return enforcer, nil
}

type AuthorizerParams struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type Authorizer struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewAuthorizer(p AuthorizerParams) *Authorizer {
	return &Authorizer{
		log:      p.Log.Named("auth.authorizer"),
		enforcer: p.Enforcer,
	}
}

// Authorize succeeds when any of the principal's roles may perform action on object.
func (a *Authorizer) Authorize(ctx context.Context, principal Principal, object, action string) error {
	for _, role := range principal.Roles {
		allowed, err := a.enforcer.Enforce(roleSubject(role), object, action)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
	}
	logger.WithContext(ctx, a.log).Warn("admin access denied",
		zap.String("subject", principal.Subject),
		zap.Strings("roles", principal.Roles),
		zap.String("object", object),
		zap.String("action", action),
	)
	return ErrForbidden
}

func roleSubject(role string) string {
	return "role:" + role
}
