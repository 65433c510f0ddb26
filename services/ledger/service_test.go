package ledger

import (
	"context"
	"errors"
	"testing"

	"incentive-engine/pkg/db/pagination"
	"incentive-engine/pkg/errutil"
	"incentive-engine/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Event{}, &Reward{}, &UserBalance{})

	node, err := snowflake.NewNode(11)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestRecordRewardCreatesLedgerRows(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	reward, balance, err := svc.RecordReward(ctx, RecordRewardParams{
		AccountID: "acct-1",
		EventName: "signup",
		UserID:    "user-1",
		Amount:    5_000_000,
		Metadata:  map[string]any{"campaign": "launch"},
	})
	require.NoError(t, err)

	require.Equal(t, RewardPending, reward.Status)
	require.Equal(t, int64(5_000_000), reward.Amount)
	require.Equal(t, int64(5_000_000), balance)

	event, err := svc.events.FindOne(ctx, &Event{ID: reward.EventID})
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, "signup", event.EventName)
	require.JSONEq(t, `{"campaign":"launch"}`, string(event.Metadata))
}

func TestRecordRewardValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []RecordRewardParams{
		{AccountID: "a", EventName: "", UserID: "u", Amount: 1},
		{AccountID: "a", EventName: "e", UserID: "", Amount: 1},
		{AccountID: "a", EventName: "e", UserID: "u", Amount: 0},
		{AccountID: "a", EventName: "e", UserID: "u", Amount: -100},
	}

	for _, p := range cases {
		_, _, err := svc.RecordReward(ctx, p)

		var be errutil.BaseError
		require.True(t, errors.As(err, &be))
		require.Equal(t, errutil.StatusValidationFailed, be.Code)
	}

	count, err := svc.rewards.Count(ctx, &Reward{})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRecordRewardAccumulates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, balance, err := svc.RecordReward(ctx, RecordRewardParams{
		AccountID: "acct-1", EventName: "signup", UserID: "user-1", Amount: 2_000_000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), balance)

	_, balance, err = svc.RecordReward(ctx, RecordRewardParams{
		AccountID: "acct-1", EventName: "referral", UserID: "user-1", Amount: 3_500_000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(5_500_000), balance)

	got, err := svc.GetUserBalance(ctx, "acct-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(5_500_000), got)

	// untouched user and account read as zero
	got, err = svc.GetUserBalance(ctx, "acct-1", "user-2")
	require.NoError(t, err)
	require.Zero(t, got)

	total, err := svc.AccountBalance(ctx, "acct-2")
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestAccountBalancePoolsUsers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, p := range []RecordRewardParams{
		{AccountID: "acct-1", EventName: "signup", UserID: "user-1", Amount: 1_000_000},
		{AccountID: "acct-1", EventName: "signup", UserID: "user-2", Amount: 2_000_000},
		{AccountID: "acct-2", EventName: "signup", UserID: "user-3", Amount: 4_000_000},
	} {
		_, _, err := svc.RecordReward(ctx, p)
		require.NoError(t, err)
	}

	total, err := svc.AccountBalance(ctx, "acct-1")
	require.NoError(t, err)
	require.Equal(t, int64(3_000_000), total)
}

func TestConcurrentRewardsSumExactly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const (
		workers = 8
		amount  = 250_000
	)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, _, err := svc.RecordReward(ctx, RecordRewardParams{
				AccountID: "acct-1",
				EventName: "click",
				UserID:    "user-1",
				Amount:    amount,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	balance, err := svc.GetUserBalance(ctx, "acct-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(workers*amount), balance)

	count, err := svc.rewards.Count(ctx, &Reward{AccountID: "acct-1"})
	require.NoError(t, err)
	require.Equal(t, int64(workers), count)
}

func TestListRewardsPaginates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := svc.RecordReward(ctx, RecordRewardParams{
			AccountID: "acct-1", EventName: "click", UserID: "user-1", Amount: 1_000_000,
		})
		require.NoError(t, err)
	}

	first, pageInfo, err := svc.ListRewards(ctx, "acct-1", pagination.Pagination{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.True(t, pageInfo.HasMore)
	require.NotEmpty(t, pageInfo.NextCursor)

	rest, pageInfo, err := svc.ListRewards(ctx, "acct-1", pagination.Pagination{
		Limit:  3,
		Cursor: pageInfo.NextCursor,
	})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.False(t, pageInfo.HasMore)

	// no overlap between pages
	seen := map[string]bool{}
	for _, r := range append(first, rest...) {
		require.False(t, seen[r.ID])
		seen[r.ID] = true
	}

	_, _, err = svc.ListRewards(ctx, "acct-1", pagination.Pagination{Cursor: "not-base64!"})
	require.Error(t, err)
}
