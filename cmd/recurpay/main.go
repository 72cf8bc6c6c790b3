package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/finvoice/recurpay/internal/bankgateway"
	"github.com/finvoice/recurpay/internal/clock"
	"github.com/finvoice/recurpay/internal/config"
	"github.com/finvoice/recurpay/internal/envelope"
	"github.com/finvoice/recurpay/internal/logger"
	"github.com/finvoice/recurpay/internal/mandate"
	"github.com/finvoice/recurpay/internal/migration"
	"github.com/finvoice/recurpay/internal/organization"
	"github.com/finvoice/recurpay/internal/scheduler"
	"github.com/finvoice/recurpay/internal/server"
	"github.com/finvoice/recurpay/pkg/db"
	"go.uber.org/fx"
)

// The monolith: API surface plus the in-process scheduler.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		envelope.Module,
		bankgateway.Module,
		organization.Module,
		mandate.Module,

		scheduler.Module,
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
