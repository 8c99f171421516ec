package equipment

import (
	"go.uber.org/fx"

	"github.com/batipilot/batipilot/internal/equipment/service"
)

var Module = fx.Module("equipment.service",
	fx.Provide(service.New),
)
