package settlement

import (
	settlementtask "incentive-engine/services/settlement/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.worker",
	fx.Provide(NewHandler),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, h *Handler) {
	mux.HandleFunc(settlementtask.TypeRewardSettle, h.HandleRewardSettle)
}
