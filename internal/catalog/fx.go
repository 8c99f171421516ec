package catalog

import (
	"go.uber.org/fx"

	"github.com/batipilot/batipilot/internal/catalog/service"
)

var Module = fx.Module("catalog.service",
	fx.Provide(service.New),
)
