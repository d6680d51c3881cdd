package vatreturn

import (
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	"github.com/smallbiznis/vatdesk/internal/vatreturn/repository"
	"github.com/smallbiznis/vatdesk/internal/vatreturn/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vatreturn.service",
	fx.Provide(repository.Provide),
	fx.Provide(fx.Annotate(
		service.NewService,
		fx.As(new(domain.Service)),
		fx.As(new(txdomain.ReturnActivity)),
	)),
)
