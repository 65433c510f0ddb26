package task

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeRewardSettle moves a pending reward through settlement.
	TypeRewardSettle = "reward:settle"

	// QueueSettlement is weighted above the default queue so reward
	// funding is not starved by housekeeping tasks.
	QueueSettlement = "settlement"
)

type RewardSettlePayload struct {
	RewardID  string `json:"reward_id"`
	AccountID string `json:"account_id"`
}

func NewRewardSettleTask(rewardID, accountID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RewardSettlePayload{
		RewardID:  rewardID,
		AccountID: accountID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeRewardSettle, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(60*time.Second),
		asynq.Queue(QueueSettlement),
	), nil
}
