package opportunity

import (
	"go.uber.org/fx"

	"github.com/batipilot/batipilot/internal/opportunity/service"
)

var Module = fx.Module("opportunity.service",
	fx.Provide(service.New),
)
