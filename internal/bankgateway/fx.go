package bankgateway

import (
	"time"

	"github.com/finvoice/recurpay/internal/config"
	"github.com/finvoice/recurpay/internal/envelope"
	"github.com/finvoice/recurpay/internal/httpclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Provide(cfg config.Config, env *envelope.Envelope, log *zap.Logger) Gateway {
	httpClient := httpclient.New(time.Duration(cfg.Bank.RequestTimeout) * time.Second)
	return NewClient(cfg.Bank, httpClient, env, log)
}

var Module = fx.Module("bankgateway",
	fx.Provide(Provide),
)
