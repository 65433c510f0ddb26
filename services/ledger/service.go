package ledger

import (
	"context"
	"encoding/json"
	"time"

	"incentive-engine/pkg/db"
	"incentive-engine/pkg/db/option"
	"incentive-engine/pkg/db/pagination"
	"incentive-engine/pkg/errutil"
	"incentive-engine/pkg/repository"
	"incentive-engine/pkg/task"
	settlementtask "incentive-engine/services/settlement/task"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	enqueuer task.Enqueuer

	events   repository.Repository[Event]
	rewards  repository.Repository[Reward]
	balances repository.Repository[UserBalance]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node

	// Enqueuer is absent in deployments without a settlement worker;
	// rewards then stay pending until one comes online.
	Enqueuer task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		enqueuer: p.Enqueuer,
		events:   repository.ProvideStore[Event](p.DB),
		rewards:  repository.ProvideStore[Reward](p.DB),
		balances: repository.ProvideStore[UserBalance](p.DB),
	}
}

type RecordRewardParams struct {
	AccountID string
	EventName string
	UserID    string
	Amount    int64
	Metadata  map[string]any
}

// RecordReward appends an event, its reward and the balance credit in one
// transaction. The balance row is locked before the increment so
// concurrent rewards for the same (account, user) serialize instead of
// losing updates. Returns the reward and the post-credit balance.
func (s *Service) RecordReward(ctx context.Context, p RecordRewardParams) (*Reward, int64, error) {
	if p.EventName == "" {
		return nil, 0, errutil.ValidationFailed("event_name is required")
	}
	if p.UserID == "" {
		return nil, 0, errutil.ValidationFailed("user_id is required")
	}
	if p.Amount <= 0 {
		return nil, 0, errutil.ValidationFailed("amount must be greater than zero")
	}

	var metadata []byte
	if p.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(p.Metadata); err != nil {
			return nil, 0, errutil.ValidationFailed("metadata is not serializable", errutil.WithErr(err))
		}
	}

	var (
		reward     *Reward
		newBalance int64
		err        error
	)

	// Two writers can both miss the balance row and race to insert it;
	// the unique index rejects one, and the retry lands on the update path.
	for attempt := 0; attempt < 2; attempt++ {
		reward, newBalance, err = s.recordReward(ctx, p, metadata)
		if err == nil || !db.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, 0, errutil.Internal("failed to record reward", errutil.WithErr(err))
	}

	s.enqueueSettlement(ctx, reward)

	return reward, newBalance, nil
}

func (s *Service) recordReward(ctx context.Context, p RecordRewardParams, metadata []byte) (*Reward, int64, error) {
	var (
		reward     *Reward
		newBalance int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		events := s.events.WithTrx(tx)
		rewards := s.rewards.WithTrx(tx)
		balances := s.balances.WithTrx(tx)

		event := &Event{
			ID:        s.node.Generate().String(),
			AccountID: p.AccountID,
			EventName: p.EventName,
			UserID:    p.UserID,
			Metadata:  metadata,
		}
		if err := events.Create(ctx, event); err != nil {
			return err
		}

		reward = &Reward{
			ID:        s.node.Generate().String(),
			EventID:   event.ID,
			AccountID: p.AccountID,
			UserID:    p.UserID,
			Amount:    p.Amount,
			Status:    RewardPending,
		}
		if err := rewards.Create(ctx, reward); err != nil {
			return err
		}

		balance, err := balances.FindOne(ctx,
			&UserBalance{AccountID: p.AccountID, UserID: p.UserID},
			option.WithLockingUpdate(),
		)
		if err != nil {
			return err
		}

		if balance == nil {
			balance = &UserBalance{
				ID:        s.node.Generate().String(),
				AccountID: p.AccountID,
				UserID:    p.UserID,
				Balance:   p.Amount,
			}
			if err := balances.Create(ctx, balance); err != nil {
				return err
			}
			newBalance = balance.Balance
			return nil
		}

		if err := balances.Update(ctx, balance.ID, map[string]any{
			"balance":    gorm.Expr("balance + ?", p.Amount),
			"updated_at": time.Now(),
		}); err != nil {
			return err
		}
		newBalance = balance.Balance + p.Amount
		return nil
	})

	return reward, newBalance, err
}

// enqueueSettlement is best effort: the reward row is already durable and
// a worker sweep can pick up stragglers.
func (s *Service) enqueueSettlement(ctx context.Context, reward *Reward) {
	if s.enqueuer == nil {
		return
	}

	t, err := settlementtask.NewRewardSettleTask(reward.ID, reward.AccountID)
	if err != nil {
		zap.L().Warn("failed to build settlement task",
			zap.String("reward_id", reward.ID), zap.Error(err))
		return
	}
	if _, err := s.enqueuer.Enqueue(ctx, t); err != nil {
		zap.L().Warn("failed to enqueue settlement task",
			zap.String("reward_id", reward.ID), zap.Error(err))
	}
}

// AccountBalance sums every user balance in the account. Withdrawals draw
// from this pooled figure.
func (s *Service) AccountBalance(ctx context.Context, accountID string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&UserBalance{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, errutil.Internal("failed to sum account balance", errutil.WithErr(err))
	}
	return total, nil
}

// GetUserBalance returns 0 for users who never earned a reward.
func (s *Service) GetUserBalance(ctx context.Context, accountID, userID string) (int64, error) {
	balance, err := s.balances.FindOne(ctx, &UserBalance{AccountID: accountID, UserID: userID})
	if err != nil {
		return 0, errutil.Internal("failed to load user balance", errutil.WithErr(err))
	}
	if balance == nil {
		return 0, nil
	}
	return balance.Balance, nil
}

// ListRewards returns the account's rewards newest first, paginated by an
// opaque cursor. Snowflake IDs are time-ordered, so the cursor rides on
// the last row's id.
func (s *Service) ListRewards(ctx context.Context, accountID string, p pagination.Pagination) ([]*Reward, *pagination.PageInfo, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
		option.ApplyPagination(pagination.Pagination{Limit: limit + 1}),
	}

	if p.Cursor != "" {
		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, nil, errutil.ValidationFailed("invalid cursor", errutil.WithErr(err))
		}
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "id", Operator: option.LT, Value: cursor.ID,
		}))
	}

	rewards, err := s.rewards.Find(ctx, &Reward{AccountID: accountID}, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list rewards", errutil.WithErr(err))
	}

	pageInfo := &pagination.PageInfo{}
	if len(rewards) > limit {
		rewards = rewards[:limit]
		last := rewards[len(rewards)-1]

		next, err := pagination.EncodeCursor(pagination.Cursor{ID: last.ID})
		if err != nil {
			return nil, nil, errutil.Internal("failed to encode cursor", errutil.WithErr(err))
		}
		pageInfo.HasMore = true
		pageInfo.NextCursor = next
	}

	return rewards, pageInfo, nil
}
