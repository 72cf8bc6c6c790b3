package envelope

import (
	"github.com/finvoice/recurpay/internal/config"
	"go.uber.org/fx"
)

func Provide(cfg config.Config) (*Envelope, error) {
	pub, err := LoadBankPublicKey(cfg.Bank.PublicCertPath)
	if err != nil {
		return nil, err
	}
	priv, err := LoadPrivateKey(cfg.Bank.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	return New(pub, priv), nil
}

var Module = fx.Module("envelope",
	fx.Provide(Provide),
)
