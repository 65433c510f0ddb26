package custody

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Stub fabricates wallet and transaction identifiers locally. It is the
// default adapter for development and tests; no funds move anywhere.
type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) CreateSubwallet(ctx context.Context) (*Subwallet, error) {
	return &Subwallet{
		WalletID:       "subwallet_" + randomHex(8),
		DepositAddress: "0x" + randomHex(20),
	}, nil
}

func (s *Stub) SendFunds(ctx context.Context, walletID, destination string, amount int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if walletID == "" || destination == "" {
		return "", fmt.Errorf("custody: missing wallet or destination")
	}
	return "0x" + randomHex(32), nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
