package custody

import (
	"context"
	"errors"
)

// Subwallet is the provisioning result for one developer account.
type Subwallet struct {
	WalletID       string `json:"wallet_id"`
	DepositAddress string `json:"deposit_address"`
}

// ErrAmbiguous marks a transfer whose outcome is unknown (timeout after
// submission). Callers must not assume failure: the funds may have moved.
var ErrAmbiguous = errors.New("custody: transfer outcome unknown")

// Adapter is the custody-provider boundary. Both operations are slow,
// fallible, possibly non-idempotent external calls; nothing in the ledger
// core trusts them to be transactional with the local store.
type Adapter interface {
	// CreateSubwallet provisions a custodial sub-wallet and its USDC
	// deposit address.
	CreateSubwallet(ctx context.Context) (*Subwallet, error)

	// SendFunds moves amount (micro-USDC) from the sub-wallet to an
	// on-chain destination address and returns the transaction hash.
	SendFunds(ctx context.Context, walletID, destination string, amount int64) (string, error)
}
