package reconcile

import (
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/reconcile/adapters"
	"github.com/smallbiznis/guardbook/internal/reconcile/deadletter"
	"github.com/smallbiznis/guardbook/internal/reconcile/dispatcher"
	"github.com/smallbiznis/guardbook/internal/reconcile/repository"
	"github.com/smallbiznis/guardbook/internal/reconcile/retry"
	"github.com/smallbiznis/guardbook/internal/reconcile/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Invoke(func(cfg config.Config) error {
		return cfg.RequireStripeSecretKey()
	}),
	fx.Provide(repository.Provide),
	fx.Provide(deadletter.NewRecorder),
	fx.Provide(func(r *deadletter.Recorder) retry.DeadLetter { return r }),
	fx.Provide(retry.NewExecutor),
	fx.Provide(
		adapters.NewService,
		func(s *adapters.Service) dispatcher.Adapters { return s },
	),
	fx.Provide(
		dispatcher.New,
		func(d *dispatcher.Dispatcher) webhook.Dispatcher { return d },
	),
	fx.Provide(webhook.NewService),
)
