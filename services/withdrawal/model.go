package withdrawal

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	// StatusPending: debit committed, custody transfer not yet attempted.
	StatusPending Status = "pending"
	// StatusSubmitted: custody accepted the transfer; tx_hash recorded.
	StatusSubmitted Status = "submitted"
	// StatusFailed: custody rejected the transfer; the debit was re-credited.
	StatusFailed Status = "failed"
	// StatusUnknown: custody timed out after submission. The debit stands
	// until an operator reconciles against the provider.
	StatusUnknown Status = "unknown"
)

// Withdrawal is the durable intent row for one on-chain payout. It is
// written before custody is called so a crash between debit and transfer
// leaves an auditable trail instead of silently vanished funds.
type Withdrawal struct {
	ID        string `gorm:"column:id;primaryKey"`
	Code      string `gorm:"column:code;uniqueIndex"`
	AccountID string `gorm:"column:account_id;not null;index"`

	Destination string `gorm:"column:destination;not null"`
	Amount      int64  `gorm:"column:amount;not null"`

	Status Status `gorm:"column:status;not null;default:'pending'"`
	TxHash string `gorm:"column:tx_hash"`

	// Allocations records the per-balance-row debit split so a failed
	// transfer can be compensated exactly.
	Allocations datatypes.JSON `gorm:"column:allocations"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

// Allocation is one slice of the FIFO debit.
type Allocation struct {
	BalanceID string `json:"balance_id"`
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
}
