package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"incentive-engine/pkg/errutil"
	"incentive-engine/services/account"
	"incentive-engine/services/custody"
	"incentive-engine/services/ledger"
	"incentive-engine/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSequence struct {
	n int
}

func (f *fakeSequence) NextAccountCode(ctx context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("A%04d", f.n), nil
}

func (f *fakeSequence) NextWithdrawalCode(ctx context.Context, accountID string) (string, error) {
	f.n++
	return fmt.Sprintf("WTD-20260101-%06d", f.n), nil
}

// fakeCustody provisions like the stub but fails transfers on demand.
type fakeCustody struct {
	sendErr   error
	sendCalls int
	onSend    func()
}

func (f *fakeCustody) CreateSubwallet(ctx context.Context) (*custody.Subwallet, error) {
	return &custody.Subwallet{WalletID: "subwallet_test", DepositAddress: "0xdeposit"}, nil
}

func (f *fakeCustody) SendFunds(ctx context.Context, walletID, destination string, amount int64) (string, error) {
	f.sendCalls++
	if f.onSend != nil {
		f.onSend()
	}
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "0xtxhash", nil
}

type fixture struct {
	db       *gorm.DB
	custody  *fakeCustody
	accounts *account.Service
	ledger   *ledger.Service
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&account.Account{},
		&ledger.Event{},
		&ledger.Reward{},
		&ledger.UserBalance{},
		&Withdrawal{},
	)

	node, err := snowflake.NewNode(12)
	require.NoError(t, err)

	fc := &fakeCustody{}
	seq := &fakeSequence{}

	accounts := account.NewService(account.ServiceParams{
		DB: db, Node: node, Sequence: seq, Custody: fc,
	})
	ledgerSvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})

	return &fixture{
		db:       db,
		custody:  fc,
		accounts: accounts,
		ledger:   ledgerSvc,
		svc: NewService(ServiceParams{
			DB: db, Node: node, Sequence: seq, Custody: fc, Accounts: accounts,
		}),
	}
}

func (f *fixture) provision(t *testing.T) *account.Account {
	t.Helper()
	acct, _, err := f.accounts.Provision(context.Background())
	require.NoError(t, err)
	return acct
}

func (f *fixture) reward(t *testing.T, accountID, userID string, amount int64) {
	t.Helper()
	_, _, err := f.ledger.RecordReward(context.Background(), ledger.RecordRewardParams{
		AccountID: accountID,
		EventName: "signup",
		UserID:    userID,
		Amount:    amount,
	})
	require.NoError(t, err)
}

func requireStatus(t *testing.T, err error, status errutil.CoreStatus) {
	t.Helper()
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "err: %v", err)
	require.Equal(t, status, be.Code)
}

func TestWithdrawInsufficientFundsNeverCallsCustody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)
	f.reward(t, acct.ID, "user-1", 1_000_000)
	f.custody.sendCalls = 0

	_, err := f.svc.Withdraw(ctx, acct.ID, "0xuser", 2_000_000)
	requireStatus(t, err, errutil.StatusBadRequest)
	require.Zero(t, f.custody.sendCalls)

	// nothing was debited and no intent row persisted
	balance, err := f.ledger.AccountBalance(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), balance)

	count, err := f.svc.withdrawals.Count(ctx, &Withdrawal{AccountID: acct.ID})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestWithdrawDebitsOldestBalancesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)
	f.reward(t, acct.ID, "user-1", 3_000_000)
	f.reward(t, acct.ID, "user-2", 2_000_000)

	w, err := f.svc.Withdraw(ctx, acct.ID, "0xuser", 4_000_000)
	require.NoError(t, err)

	require.Equal(t, StatusSubmitted, w.Status)
	require.Equal(t, "0xtxhash", w.TxHash)
	require.Equal(t, int64(4_000_000), w.Amount)

	first, err := f.ledger.GetUserBalance(ctx, acct.ID, "user-1")
	require.NoError(t, err)
	require.Zero(t, first)

	second, err := f.ledger.GetUserBalance(ctx, acct.ID, "user-2")
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), second)

	total, err := f.ledger.AccountBalance(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), total)
}

func TestWithdrawCannotDoubleSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)
	f.reward(t, acct.ID, "user-1", 5_000_000)

	_, err := f.svc.Withdraw(ctx, acct.ID, "0xuser", 5_000_000)
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, acct.ID, "0xuser", 1)
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestWithdrawCustodyFailureCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)
	f.reward(t, acct.ID, "user-1", 3_000_000)
	f.reward(t, acct.ID, "user-2", 2_000_000)
	f.custody.sendErr = errors.New("provider rejected transfer")

	_, err := f.svc.Withdraw(ctx, acct.ID, "0xuser", 4_000_000)
	requireStatus(t, err, errutil.StatusServiceUnavailable)

	// debit fully re-credited
	total, err := f.ledger.AccountBalance(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), total)

	first, err := f.ledger.GetUserBalance(ctx, acct.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(3_000_000), first)

	w, err := f.svc.withdrawals.FindOne(ctx, &Withdrawal{AccountID: acct.ID})
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Equal(t, StatusFailed, w.Status)
}

func TestWithdrawTimeoutKeepsDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)
	f.reward(t, acct.ID, "user-1", 5_000_000)
	f.custody.sendErr = fmt.Errorf("%w: request timed out", custody.ErrAmbiguous)

	_, err := f.svc.Withdraw(ctx, acct.ID, "0xuser", 4_000_000)
	requireStatus(t, err, errutil.StatusInternal)

	// the transfer may have gone through, so the debit stands
	total, err := f.ledger.AccountBalance(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), total)

	w, err := f.svc.withdrawals.FindOne(ctx, &Withdrawal{AccountID: acct.ID})
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Equal(t, StatusUnknown, w.Status)
}

func TestWithdrawUnrecordedSubmissionIsNotASuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)
	f.reward(t, acct.ID, "user-1", 5_000_000)

	// Lose the intent table while the transfer is in flight, so the
	// submitted transition cannot be persisted.
	f.custody.onSend = func() {
		require.NoError(t, f.db.Migrator().DropTable(&Withdrawal{}))
	}

	w, err := f.svc.Withdraw(ctx, acct.ID, "0xuser", 4_000_000)
	require.Nil(t, w)
	requireStatus(t, err, errutil.StatusInternal)

	// the transfer executed, so the debit stands
	total, err := f.ledger.AccountBalance(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), total)
}

func TestWithdrawValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)

	_, err := f.svc.Withdraw(ctx, "missing", "0xuser", 1_000_000)
	requireStatus(t, err, errutil.StatusNotFound)

	_, err = f.svc.Withdraw(ctx, acct.ID, "", 1_000_000)
	requireStatus(t, err, errutil.StatusBadRequest)

	_, err = f.svc.Withdraw(ctx, acct.ID, "0xuser", 0)
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestGetReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct := f.provision(t)
	f.reward(t, acct.ID, "user-1", 2_000_000)

	w, err := f.svc.Withdraw(ctx, acct.ID, "0xuser", 1_000_000)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, acct.ID, w.ID)
	require.NoError(t, err)
	require.Equal(t, w.Code, got.Code)
	require.Equal(t, StatusSubmitted, got.Status)

	_, err = f.svc.Get(ctx, "other-account", w.ID)
	requireStatus(t, err, errutil.StatusNotFound)
}
