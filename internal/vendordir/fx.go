package vendordir

import (
	"github.com/smallbiznis/vatdesk/internal/vendordir/repository"
	"github.com/smallbiznis/vatdesk/internal/vendordir/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vendor.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
