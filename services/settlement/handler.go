package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"incentive-engine/pkg/config"
	"incentive-engine/pkg/repository"
	"incentive-engine/services/account"
	"incentive-engine/services/custody"
	"incentive-engine/services/ledger"
	settlementtask "incentive-engine/services/settlement/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler funds pending rewards. When a treasury wallet is configured the
// reward amount moves on-chain from the treasury into the account's
// sub-wallet; otherwise the reward settles as a pure ledger credit.
type Handler struct {
	db       *gorm.DB
	cfg      *config.Config
	custody  custody.Adapter
	accounts *account.Service
	rewards  repository.Repository[ledger.Reward]
}

type HandlerParams struct {
	fx.In

	DB       *gorm.DB
	Config   *config.Config
	Custody  custody.Adapter
	Accounts *account.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		db:       p.DB,
		cfg:      p.Config,
		custody:  p.Custody,
		accounts: p.Accounts,
		rewards:  repository.ProvideStore[ledger.Reward](p.DB),
	}
}

func (h *Handler) HandleRewardSettle(ctx context.Context, t *asynq.Task) error {
	var payload settlementtask.RewardSettlePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed payload: %v: %w", err, asynq.SkipRetry)
	}

	reward, err := h.rewards.FindOne(ctx, &ledger.Reward{ID: payload.RewardID})
	if err != nil {
		return err
	}
	if reward == nil {
		return fmt.Errorf("reward %s not found: %w", payload.RewardID, asynq.SkipRetry)
	}
	if reward.Status != ledger.RewardPending {
		// Already settled by an earlier delivery.
		return nil
	}

	acct, err := h.accounts.Get(ctx, reward.AccountID)
	if err != nil {
		zap.L().Error("reward references unknown account",
			zap.String("reward_id", reward.ID),
			zap.String("account_id", reward.AccountID),
			zap.Error(err))
		return h.conclude(ctx, reward.ID, ledger.RewardFailed, "")
	}

	var txHash string
	if h.cfg.Custody.TreasuryWalletID != "" {
		txHash, err = h.custody.SendFunds(ctx,
			h.cfg.Custody.TreasuryWalletID, acct.DepositAddress, reward.Amount)
		switch {
		case errors.Is(err, custody.ErrAmbiguous) || errors.Is(err, context.DeadlineExceeded):
			// Status stays pending; the retry re-checks before resending.
			return err
		case err != nil:
			zap.L().Error("reward funding transfer rejected",
				zap.String("reward_id", reward.ID), zap.Error(err))
			return h.conclude(ctx, reward.ID, ledger.RewardFailed, "")
		}
	}

	return h.conclude(ctx, reward.ID, ledger.RewardPaid, txHash)
}

// conclude flips the reward out of pending exactly once. The status guard
// makes redelivery a no-op even across concurrent workers.
func (h *Handler) conclude(ctx context.Context, rewardID string, status ledger.RewardStatus, txHash string) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now(),
	}
	if txHash != "" {
		updates["tx_hash"] = txHash
	}

	res := h.db.WithContext(ctx).
		Model(&ledger.Reward{}).
		Where("id = ? AND status = ?", rewardID, ledger.RewardPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		zap.L().Warn("reward settled concurrently, skipping",
			zap.String("reward_id", rewardID))
		return nil
	}

	zap.L().Info("reward settled",
		zap.String("reward_id", rewardID),
		zap.String("status", string(status)),
	)
	return nil
}
