package mandate

import (
	mandatedomain "github.com/finvoice/recurpay/internal/mandate/domain"
	"github.com/finvoice/recurpay/internal/mandate/repository"
	"github.com/finvoice/recurpay/internal/mandate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mandate",
	fx.Provide(
		repository.Provide,
		service.New,
		func(s *service.Service) mandatedomain.Service { return s },
	),
)
