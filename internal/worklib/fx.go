package worklib

import (
	"go.uber.org/fx"

	"github.com/batipilot/batipilot/internal/worklib/service"
)

var Module = fx.Module("worklib.service",
	fx.Provide(service.New),
)
