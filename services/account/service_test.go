package account

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"incentive-engine/pkg/errutil"
	"incentive-engine/services/custody"
	"incentive-engine/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
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

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Account{})

	node, err := snowflake.NewNode(10)
	require.NoError(t, err)

	return NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Sequence: &fakeSequence{},
		Custody:  custody.NewStub(),
	})
}

func TestProvisionReturnsCredentialOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	acct, apiKey, err := svc.Provision(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, acct.ID)
	require.Equal(t, "A0001", acct.Code)
	require.Contains(t, acct.KeyID, "ink_live_")
	require.NotEmpty(t, acct.WalletID)
	require.NotEmpty(t, acct.DepositAddress)
	require.Equal(t, StatusActive, acct.Status)

	// the stored row carries only the hash
	stored, err := svc.Get(ctx, acct.ID)
	require.NoError(t, err)
	require.NotContains(t, apiKey, stored.SecretHash)
	require.Contains(t, stored.SecretHash, "$argon2id$")
}

func TestProvisionRetriesOnCodeConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Occupy the first code the sequence will hand out, as happens when
	// the counter is reset while rows persist.
	require.NoError(t, svc.accounts.Create(ctx, &Account{
		ID:         "stale-1",
		Code:       "A0001",
		KeyID:      "ink_live_stale",
		SecretHash: "x",
		WalletID:   "subwallet_stale",
		Status:     StatusActive,
	}))

	acct, _, err := svc.Provision(ctx)
	require.NoError(t, err)
	require.Equal(t, "A0002", acct.Code)
}

func TestResolveByKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	acct, apiKey, err := svc.Provision(ctx)
	require.NoError(t, err)

	resolved, err := svc.ResolveByKey(ctx, apiKey)
	require.NoError(t, err)
	require.Equal(t, acct.ID, resolved.ID)

	id, err := svc.ResolveAccountID(ctx, apiKey)
	require.NoError(t, err)
	require.Equal(t, acct.ID, id)
}

func TestResolveByKeyRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, apiKey, err := svc.Provision(ctx)
	require.NoError(t, err)

	cases := []string{
		"",
		"not-a-credential",
		"ink_live_123.wrongsecret",
		apiKey + "x",
	}

	for _, credential := range cases {
		_, err := svc.ResolveByKey(ctx, credential)
		require.Error(t, err, credential)

		var be errutil.BaseError
		require.True(t, errors.As(err, &be), credential)
		require.Equal(t, errutil.StatusUnauthorized, be.Code, credential)
	}
}

func TestResolveByKeyRejectsSuspendedAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	acct, apiKey, err := svc.Provision(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.accounts.Update(ctx, acct.ID, map[string]any{
		"status": StatusSuspended,
	}))

	_, err = svc.ResolveByKey(ctx, apiKey)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusForbidden, be.Code)
}

func TestGetUnknownAccount(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "missing")

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Code)
}

func TestDepositAddress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	acct, _, err := svc.Provision(ctx)
	require.NoError(t, err)

	addr, err := svc.DepositAddress(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, acct.DepositAddress, addr)
}
