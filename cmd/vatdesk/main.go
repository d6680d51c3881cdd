package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/lock"
	"github.com/smallbiznis/vatdesk/internal/migration"
	"github.com/smallbiznis/vatdesk/internal/observability"
	"github.com/smallbiznis/vatdesk/internal/server"
	"github.com/smallbiznis/vatdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// schema first, then seed data, then the HTTP surface
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
