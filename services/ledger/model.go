package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// Event is the immutable record of something a user did. Rewards always
// reference the event that earned them.
type Event struct {
	ID        string         `gorm:"column:id;primaryKey"`
	AccountID string         `gorm:"column:account_id;not null;index"`
	EventName string         `gorm:"column:event_name;not null"`
	UserID    string         `gorm:"column:user_id;not null"`
	Metadata  datatypes.JSON `gorm:"column:metadata"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (Event) TableName() string {
	return "events"
}

type RewardStatus string

const (
	RewardPending RewardStatus = "pending"
	RewardPaid    RewardStatus = "paid"
	RewardFailed  RewardStatus = "failed"
)

// Reward is one USDC credit earned by a user. Amount is micro-USDC.
// The ledger write path only ever creates pending rows; the settlement
// worker owns the pending -> paid|failed transition.
type Reward struct {
	ID        string       `gorm:"column:id;primaryKey"`
	EventID   string       `gorm:"column:event_id;not null;index"`
	AccountID string       `gorm:"column:account_id;not null;index"`
	UserID    string       `gorm:"column:user_id;not null"`
	Amount    int64        `gorm:"column:amount;not null"`
	Status    RewardStatus `gorm:"column:status;not null;default:'pending'"`
	TxHash    string       `gorm:"column:tx_hash"`
	CreatedAt time.Time    `gorm:"column:created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at"`
}

func (Reward) TableName() string {
	return "rewards"
}

// UserBalance is the running micro-USDC balance for one user inside one
// account. Reward and withdrawal both mutate it, always under FOR UPDATE.
type UserBalance struct {
	ID        string    `gorm:"column:id;primaryKey"`
	AccountID string    `gorm:"column:account_id;not null;uniqueIndex:idx_user_balances_account_user"`
	UserID    string    `gorm:"column:user_id;not null;uniqueIndex:idx_user_balances_account_user"`
	Balance   int64     `gorm:"column:balance;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (UserBalance) TableName() string {
	return "user_balances"
}
