package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"incentive-engine/pkg/config"
	"incentive-engine/pkg/errutil"

	"go.uber.org/zap"
)

// providerClient talks to an external custody provider over HTTP. Every
// call carries its own deadline; a deadline hit on SendFunds is reported
// as ErrAmbiguous because the provider may have executed the transfer.
type providerClient struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	hc       *http.Client
}

func NewProviderClient(cfg *config.Config) *providerClient {
	return &providerClient{
		endpoint: strings.TrimRight(cfg.Custody.Endpoint, "/"),
		apiKey:   cfg.Custody.APIKey,
		timeout:  cfg.Custody.Timeout,
		hc:       &http.Client{},
	}
}

type createWalletResponse struct {
	WalletID       string `json:"wallet_id"`
	DepositAddress string `json:"deposit_address"`
}

type transferRequest struct {
	WalletID    string `json:"wallet_id"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type transferResponse struct {
	TxHash string `json:"tx_hash"`
}

func (p *providerClient) CreateSubwallet(ctx context.Context) (*Subwallet, error) {
	var out createWalletResponse
	if err := p.post(ctx, "/v1/wallets", map[string]any{"currency": "usdc"}, &out); err != nil {
		return nil, errutil.ServiceUnavailable("custody provisioning failed", errutil.WithErr(err))
	}
	if out.WalletID == "" || out.DepositAddress == "" {
		return nil, errutil.ServiceUnavailable("custody provisioning returned incomplete wallet")
	}
	return &Subwallet{WalletID: out.WalletID, DepositAddress: out.DepositAddress}, nil
}

func (p *providerClient) SendFunds(ctx context.Context, walletID, destination string, amount int64) (string, error) {
	req := transferRequest{
		WalletID:    walletID,
		Destination: destination,
		Amount:      amount,
		Currency:    "usdc",
	}

	var out transferResponse
	if err := p.post(ctx, "/v1/transfers", req, &out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Warn("custody transfer timed out",
				zap.String("wallet_id", walletID),
				zap.Duration("timeout", p.timeout),
			)
			return "", fmt.Errorf("%w: %v", ErrAmbiguous, err)
		}
		return "", err
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("custody: transfer response missing tx hash")
	}
	return out.TxHash, nil
}

func (p *providerClient) post(ctx context.Context, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("custody: %s returned %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
