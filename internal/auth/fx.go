package auth

import (
	"go.uber.org/fx"

	"github.com/batipilot/batipilot/internal/auth/service"
	"github.com/batipilot/batipilot/internal/auth/token"
)

var Module = fx.Module("auth.service",
	fx.Provide(token.NewManager),
	fx.Provide(service.New),
)
