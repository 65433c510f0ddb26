package withdrawal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"incentive-engine/pkg/db/option"
	"incentive-engine/pkg/errutil"
	"incentive-engine/pkg/repository"
	"incentive-engine/pkg/sequence"
	"incentive-engine/services/account"
	"incentive-engine/services/custody"
	"incentive-engine/services/ledger"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	seq     sequence.Generator
	custody custody.Adapter

	accounts    *account.Service
	balances    repository.Repository[ledger.UserBalance]
	withdrawals repository.Repository[Withdrawal]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Sequence sequence.Generator
	Custody  custody.Adapter
	Accounts *account.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		seq:         p.Sequence,
		custody:     p.Custody,
		accounts:    p.Accounts,
		balances:    repository.ProvideStore[ledger.UserBalance](p.DB),
		withdrawals: repository.ProvideStore[Withdrawal](p.DB),
	}
}

// Withdraw debits the account's pooled balance and pays destination from
// the account's custodial wallet. The debit commits before custody is
// called; a definite transfer failure re-credits it, a timeout leaves it
// standing with status unknown.
func (s *Service) Withdraw(ctx context.Context, accountID, destination string, amount int64) (*Withdrawal, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if destination == "" {
		return nil, errutil.BadRequest("destination address is required")
	}
	if amount <= 0 {
		return nil, errutil.BadRequest("amount must be greater than zero")
	}

	code, err := s.seq.NextWithdrawalCode(ctx, accountID)
	if err != nil {
		return nil, errutil.Internal("failed to allocate withdrawal code", errutil.WithErr(err))
	}

	w, err := s.debit(ctx, accountID, code, destination, amount)
	if err != nil {
		return nil, err
	}

	txHash, err := s.custody.SendFunds(ctx, acct.WalletID, destination, amount)
	switch {
	case err == nil:
		// The transfer went through; if recording it fails the row stays
		// pending with no tx hash, so the caller must not see a clean
		// success receipt.
		if err := s.transition(ctx, w, StatusSubmitted, map[string]any{
			"status":     StatusSubmitted,
			"tx_hash":    txHash,
			"updated_at": time.Now(),
		}); err != nil {
			return nil, errutil.Internal("withdrawal submitted but not recorded",
				errutil.WithDetails(errutil.Detail{Field: "withdrawal_code", Message: w.Code}),
				errutil.WithErr(err),
			)
		}
		w.TxHash = txHash
		return w, nil

	case errors.Is(err, custody.ErrAmbiguous) || errors.Is(err, context.DeadlineExceeded):
		// The provider may have executed the transfer, so the debit must
		// not be reversed. Reconciliation is an operator action.
		s.transition(ctx, w, StatusUnknown, map[string]any{
			"status":     StatusUnknown,
			"updated_at": time.Now(),
		})
		return nil, errutil.Internal("withdrawal outcome unknown",
			errutil.WithDetails(errutil.Detail{Field: "withdrawal_code", Message: w.Code}),
			errutil.WithErr(err),
		)

	default:
		s.compensate(ctx, w)
		return nil, errutil.ServiceUnavailable("custody transfer failed", errutil.WithErr(err))
	}
}

// debit locks the account's balance rows, re-checks funds, and consumes
// them oldest first inside one transaction with the intent row.
func (s *Service) debit(ctx context.Context, accountID, code, destination string, amount int64) (*Withdrawal, error) {
	var w *Withdrawal

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balances := s.balances.WithTrx(tx)

		rows, err := balances.Find(ctx, &ledger.UserBalance{AccountID: accountID},
			option.ApplyOperator(option.Condition{Field: "balance", Operator: option.GT, Value: 0}),
			option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"}),
			option.WithLockingUpdate(),
		)
		if err != nil {
			return err
		}

		var total int64
		for _, row := range rows {
			total += row.Balance
		}
		if amount > total {
			return errutil.BadRequest("insufficient funds")
		}

		remaining := amount
		allocations := make([]Allocation, 0, len(rows))
		for _, row := range rows {
			if remaining == 0 {
				break
			}
			take := row.Balance
			if take > remaining {
				take = remaining
			}

			if err := balances.Update(ctx, row.ID, map[string]any{
				"balance":    gorm.Expr("balance - ?", take),
				"updated_at": time.Now(),
			}); err != nil {
				return err
			}

			allocations = append(allocations, Allocation{
				BalanceID: row.ID,
				UserID:    row.UserID,
				Amount:    take,
			})
			remaining -= take
		}

		encoded, err := json.Marshal(allocations)
		if err != nil {
			return err
		}

		w = &Withdrawal{
			ID:          s.node.Generate().String(),
			Code:        code,
			AccountID:   accountID,
			Destination: destination,
			Amount:      amount,
			Status:      StatusPending,
			Allocations: encoded,
		}
		return s.withdrawals.WithTrx(tx).Create(ctx, w)
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, errutil.Internal("failed to debit balance", errutil.WithErr(err))
	}

	return w, nil
}

// compensate re-credits the exact debit split and marks the row failed.
func (s *Service) compensate(ctx context.Context, w *Withdrawal) {
	var allocations []Allocation
	if err := json.Unmarshal(w.Allocations, &allocations); err != nil {
		zap.L().Error("withdrawal allocations unreadable, manual re-credit required",
			zap.String("withdrawal_id", w.ID), zap.Error(err))
		return
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balances := s.balances.WithTrx(tx)
		for _, a := range allocations {
			if err := balances.Update(ctx, a.BalanceID, map[string]any{
				"balance":    gorm.Expr("balance + ?", a.Amount),
				"updated_at": time.Now(),
			}); err != nil {
				return err
			}
		}
		return s.withdrawals.WithTrx(tx).Update(ctx, w.ID, map[string]any{
			"status":     StatusFailed,
			"updated_at": time.Now(),
		})
	})
	if err != nil {
		zap.L().Error("withdrawal compensation failed, manual re-credit required",
			zap.String("withdrawal_id", w.ID), zap.Error(err))
		return
	}

	w.Status = StatusFailed
}

func (s *Service) transition(ctx context.Context, w *Withdrawal, status Status, updates map[string]any) error {
	if err := s.withdrawals.Update(ctx, w.ID, updates); err != nil {
		zap.L().Error("failed to update withdrawal status",
			zap.String("withdrawal_id", w.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return err
	}
	w.Status = status
	return nil
}

// Get returns the receipt for one withdrawal scoped to its account.
func (s *Service) Get(ctx context.Context, accountID, withdrawalID string) (*Withdrawal, error) {
	w, err := s.withdrawals.FindOne(ctx, &Withdrawal{ID: withdrawalID, AccountID: accountID})
	if err != nil {
		return nil, errutil.Internal("failed to load withdrawal", errutil.WithErr(err))
	}
	if w == nil {
		return nil, errutil.NotFound("withdrawal not found")
	}
	return w, nil
}
