package tiers

import (
	"go.uber.org/fx"

	"github.com/batipilot/batipilot/internal/tiers/service"
)

var Module = fx.Module("tiers.service",
	fx.Provide(service.New),
)
