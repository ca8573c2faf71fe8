package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/guardbook/internal/auth"
	"github.com/smallbiznis/guardbook/internal/clock"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/migration"
	"github.com/smallbiznis/guardbook/internal/observability"
	"github.com/smallbiznis/guardbook/internal/ratelimit"
	"github.com/smallbiznis/guardbook/internal/reconcile"
	"github.com/smallbiznis/guardbook/internal/server"
	"github.com/smallbiznis/guardbook/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		reconcile.Module,
		auth.Module,
		ratelimit.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the id generator for dead-letter rows. Replicas
// should each set a distinct SNOWFLAKE_NODE_ID.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
