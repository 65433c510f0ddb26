package main

import (
	"incentive-engine/pkg/config"
	"incentive-engine/pkg/db"
	"incentive-engine/pkg/logger"
	"incentive-engine/pkg/redis"
	"incentive-engine/pkg/sequence"
	"incentive-engine/pkg/task"
	"incentive-engine/services/account"
	"incentive-engine/services/custody"
	"incentive-engine/services/settlement"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// The settlement worker shares the API's database and custody adapter but
// serves no HTTP routes; account.NewService is provided directly instead
// of through the account module.
func main() {
	fx.New(
		config.Module,
		logger.Module,
		fx.Invoke(func(*zap.Logger) {}),

		db.Module,
		redis.Module,
		sequence.Module,

		fx.Provide(
			provideSnowflakeNode,
			account.NewService,
		),

		custody.Module,
		task.Server,
		settlement.Module,
	).Run()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}
