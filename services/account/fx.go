package account

import (
	"incentive-engine/pkg/middleware"

	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(
		NewService,
		func(s *Service) middleware.AccountResolver { return s },
	),
	fx.Invoke(registerRoutes),
)
