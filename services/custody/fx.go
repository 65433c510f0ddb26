package custody

import (
	"incentive-engine/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("custody",
	fx.Provide(NewAdapter),
)

func NewAdapter(cfg *config.Config) Adapter {
	switch cfg.Custody.Provider {
	case "http":
		return NewProviderClient(cfg)
	case "", "stub":
		return NewStub()
	default:
		zap.L().Warn("unknown custody provider, falling back to stub",
			zap.String("provider", cfg.Custody.Provider),
		)
		return NewStub()
	}
}
