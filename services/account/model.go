package account

import (
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Account is a developer tenant of the reward service. Each account owns
// one custodial sub-wallet; every balance and reward row hangs off its ID.
type Account struct {
	ID   string `gorm:"column:id;primaryKey"`
	Code string `gorm:"column:code;uniqueIndex"`

	// KeyID is the public half of the API credential (ink_live_<id>). The
	// secret half is stored only as an argon2id hash.
	KeyID      string         `gorm:"column:key_id;uniqueIndex;not null"`
	SecretHash string         `gorm:"column:secret_hash;not null"`
	Scopes     pq.StringArray `gorm:"column:scopes;type:text[]"`

	WalletID       string `gorm:"column:wallet_id;uniqueIndex;not null"`
	DepositAddress string `gorm:"column:deposit_address;not null"`

	Status    Status    `gorm:"column:status;not null;default:'active'"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "developer_accounts"
}
