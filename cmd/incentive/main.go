package main

import (
	"strings"

	"incentive-engine/pkg/config"
	"incentive-engine/pkg/db"
	"incentive-engine/pkg/health"
	"incentive-engine/pkg/logger"
	"incentive-engine/pkg/otelcol"
	"incentive-engine/pkg/otelcol/exporters"
	"incentive-engine/pkg/redis"
	"incentive-engine/pkg/sequence"
	"incentive-engine/pkg/server"
	"incentive-engine/pkg/task"
	"incentive-engine/services/account"
	"incentive-engine/services/custody"
	"incentive-engine/services/ledger"
	"incentive-engine/services/withdrawal"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	fx.New(
		config.Module,
		logger.Module,
		fx.Invoke(func(*zap.Logger) {}),

		db.Module,
		redis.Module,
		sequence.Module,
		task.Client,

		fx.Provide(provideSnowflakeNode),

		server.Module,
		health.Module,

		custody.Module,
		account.Module,
		ledger.Module,
		withdrawal.Module,

		fx.Invoke(
			autoMigrate,
			registerTelemetry,
		),
	).Run()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func autoMigrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&account.Account{},
		&ledger.Event{},
		&ledger.Reward{},
		&ledger.UserBalance{},
		&withdrawal.Withdrawal{},
	)
}

// registerTelemetry wires query metrics unconditionally and tracing when a
// collector address is configured.
func registerTelemetry(cfg *config.Config, gormDB *gorm.DB) {
	if err := db.Metric(gormDB, cfg.Database.DBName); err != nil {
		zap.L().Warn("db metrics disabled", zap.Error(err))
	}

	if cfg.Otel.Addr == "" {
		return
	}

	var (
		exporter *otlptrace.Exporter
		err      error
	)
	if strings.HasPrefix(cfg.Otel.Addr, "http") {
		exporter, err = exporters.ProvideHttp(cfg)
	} else {
		exporter, err = exporters.ProvideGrpc(cfg)
	}
	if err != nil {
		zap.L().Warn("tracing disabled, exporter unavailable", zap.Error(err))
		return
	}

	otel.SetTracerProvider(otelcol.ProvideTrace(exporter))

	if err := db.Otel(gormDB); err != nil {
		zap.L().Warn("db tracing disabled", zap.Error(err))
	}
}
