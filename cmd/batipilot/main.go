package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/migration"
	"github.com/batipilot/batipilot/internal/scheduler"
	"github.com/batipilot/batipilot/internal/server"
	"github.com/batipilot/batipilot/pkg/db"
)

func main() {
	app := fx.New(
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
