package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/config"
	"github.com/smallbiznis/ledgerline/internal/migration"
	"github.com/smallbiznis/ledgerline/internal/server"
	"github.com/smallbiznis/ledgerline/pkg/db"
	"github.com/smallbiznis/ledgerline/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
