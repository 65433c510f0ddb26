package account

import (
	"context"
	"strings"

	"incentive-engine/pkg/db"
	"incentive-engine/pkg/errutil"
	"incentive-engine/pkg/repository"
	"incentive-engine/pkg/security"
	"incentive-engine/pkg/sequence"
	"incentive-engine/services/custody"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const keyIDPrefix = "ink_live_"

// defaultScopes are granted to every provisioned account. Scope checks
// are not enforced per route yet; the column exists so credentials can be
// narrowed without a schema change.
var defaultScopes = pq.StringArray{"rewards:write", "withdrawals:write"}

type Service struct {
	node     *snowflake.Node
	seq      sequence.Generator
	custody  custody.Adapter
	accounts repository.Repository[Account]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Sequence sequence.Generator
	Custody  custody.Adapter
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:     p.Node,
		seq:      p.Sequence,
		custody:  p.Custody,
		accounts: repository.ProvideStore[Account](p.DB),
	}
}

// Provision creates a developer account with a fresh custodial sub-wallet
// and returns the account plus its API credential. The credential's secret
// half is shown exactly once; only the argon2id hash is stored.
func (s *Service) Provision(ctx context.Context) (*Account, string, error) {
	wallet, err := s.custody.CreateSubwallet(ctx)
	if err != nil {
		return nil, "", err
	}

	// Both code and key_id carry unique indexes. key_id collisions are
	// practically impossible; code can collide after a counter reset, so
	// each attempt allocates a fresh code alongside fresh identifiers.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		code, err := s.seq.NextAccountCode(ctx)
		if err != nil {
			return nil, "", errutil.Internal("failed to allocate account code", errutil.WithErr(err))
		}

		secret, err := security.GenerateBase64Secret(32)
		if err != nil {
			return nil, "", errutil.Internal("failed to generate credential", errutil.WithErr(err))
		}
		hash, err := security.HashArgon2(secret)
		if err != nil {
			return nil, "", errutil.Internal("failed to hash credential", errutil.WithErr(err))
		}

		acct := &Account{
			ID:             s.node.Generate().String(),
			Code:           code,
			KeyID:          keyIDPrefix + s.node.Generate().String(),
			SecretHash:     hash,
			Scopes:         defaultScopes,
			WalletID:       wallet.WalletID,
			DepositAddress: wallet.DepositAddress,
			Status:         StatusActive,
		}

		if err := s.accounts.Create(ctx, acct); err != nil {
			if db.IsUniqueViolation(err) {
				lastErr = err
				continue
			}
			return nil, "", errutil.Internal("failed to persist account", errutil.WithErr(err))
		}

		zap.L().Info("account provisioned",
			zap.String("account_id", acct.ID),
			zap.String("code", acct.Code),
			zap.String("wallet_id", acct.WalletID),
		)

		return acct, acct.KeyID + "." + secret, nil
	}

	return nil, "", errutil.Internal("failed to persist account", errutil.WithErr(lastErr))
}

// ResolveByKey authenticates a "<key_id>.<secret>" credential. Lookup
// misses and hash mismatches return the same error so the response does
// not reveal which half was wrong.
func (s *Service) ResolveByKey(ctx context.Context, credential string) (*Account, error) {
	keyID, secret, ok := strings.Cut(credential, ".")
	if !ok || !strings.HasPrefix(keyID, keyIDPrefix) {
		return nil, errutil.Unauthorized("invalid API key")
	}

	acct, err := s.accounts.FindOne(ctx, &Account{KeyID: keyID})
	if err != nil {
		return nil, errutil.Internal("failed to look up account", errutil.WithErr(err))
	}
	if acct == nil || !security.VerifyArgon2(secret, acct.SecretHash) {
		return nil, errutil.Unauthorized("invalid API key")
	}
	if acct.Status != StatusActive {
		return nil, errutil.Forbidden("account is suspended")
	}

	return acct, nil
}

// ResolveAccountID implements middleware.AccountResolver.
func (s *Service) ResolveAccountID(ctx context.Context, credential string) (string, error) {
	acct, err := s.ResolveByKey(ctx, credential)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	acct, err := s.accounts.FindOne(ctx, &Account{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to look up account", errutil.WithErr(err))
	}
	if acct == nil {
		return nil, errutil.NotFound("account not found")
	}
	return acct, nil
}

// DepositAddress returns the persisted funding address for the account.
func (s *Service) DepositAddress(ctx context.Context, id string) (string, error) {
	acct, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return acct.DepositAddress, nil
}

