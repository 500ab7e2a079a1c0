package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"anoa.com/lazylegends/internal/entity"
	"anoa.com/lazylegends/internal/modules/season/dto"
	seasonRepo "anoa.com/lazylegends/internal/modules/season/repository"
	userRepo "anoa.com/lazylegends/internal/modules/user/repository"
	"anoa.com/lazylegends/internal/testutil"
	"anoa.com/lazylegends/pkg/apperror"
	"anoa.com/lazylegends/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeLedger struct {
	mu          sync.Mutex
	transfers   []int64
	transferErr error
}

func (f *fakeLedger) MintNFT(context.Context, string, [][]byte) (*ledger.MintResult, error) {
	return nil, ledger.ErrMintFailed
}

func (f *fakeLedger) Transfer(_ context.Context, token, from, to string, amount int64) (string, error) {
	time.Sleep(5 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.transfers = append(f.transfers, amount)
	return "0.0.2@1715342400.000000001", nil
}

var seasonStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T, db *gorm.DB, l *fakeLedger) *seasonService {
	t.Helper()
	svc := NewSeasonService(
		seasonRepo.NewSeasonRepository(db),
		userRepo.NewUserRepository(db),
		l,
		RewardConfig{TokenID: "0.0.9000", TreasuryID: "0.0.2", Amounts: []int64{100, 50, 25}},
	).(*seasonService)
	svc.now = func() time.Time { return time.Date(2025, 5, 29, 12, 0, 0, 0, time.UTC) }
	return svc
}

func seedStandings(t *testing.T, db *gorm.DB) {
	t.Helper()
	testutil.SeedSeason(t, db, seasonStart)
	testutil.SeedUser(t, db, "@alpha", 30, "0.0.101")
	testutil.SeedUser(t, db, "@bravo", 20, "")
	testutil.SeedUser(t, db, "@charlie", 10, "0.0.103")
	testutil.SeedUser(t, db, "@delta", 0, "0.0.104")
}

func TestRolloverEndToEnd(t *testing.T) {
	db := testutil.NewDB(t)
	seedStandings(t, db)
	svc := newService(t, db, &fakeLedger{})
	ctx := context.Background()

	_, err := svc.GetSeasonWinners(ctx)
	assert.ErrorIs(t, err, ErrNoPreviousSeason)

	res, err := svc.RolloverSeason(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.PreviousSeasonID)
	assert.Equal(t, uint(2), res.NewSeasonID)

	var users []entity.User
	require.NoError(t, db.Find(&users).Error)
	for _, u := range users {
		assert.Zero(t, u.Points, u.Handle)
		assert.Nil(t, u.LastCheckedAt, u.Handle)
	}

	winners, err := svc.GetSeasonWinners(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), winners.SeasonID)
	assert.Equal(t, []dto.Winner{
		{Handle: "@alpha", Rank: 1, RewardAmount: 100},
		{Handle: "@bravo", Rank: 2, RewardAmount: 50},
		{Handle: "@charlie", Rank: 3, RewardAmount: 25},
	}, winners.Winners)

	current, err := svc.GetCurrentSeason(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), current.ID)
}

func TestRolloverTieBreaksByHandleAndSkipsZeroPoints(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedSeason(t, db, seasonStart)
	testutil.SeedUser(t, db, "@zed", 7, "")
	testutil.SeedUser(t, db, "@amy", 7, "")
	testutil.SeedUser(t, db, "@nil", 0, "")
	svc := newService(t, db, &fakeLedger{})

	res, err := svc.RolloverSeason(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Winners, 2)
	assert.Equal(t, "@amy", res.Winners[0].Handle)
	assert.Equal(t, "@zed", res.Winners[1].Handle)
}

func TestRolloverIsAtomic(t *testing.T) {
	db := testutil.NewDB(t)
	seedStandings(t, db)
	svc := newService(t, db, &fakeLedger{})

	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_users_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" {
			_ = tx.AddError(errors.New("points reset failed"))
		}
	}))

	_, err := svc.RolloverSeason(context.Background())
	require.Error(t, err)

	var seasons, rewards int64
	db.Model(&entity.Season{}).Count(&seasons)
	db.Model(&entity.SeasonReward{}).Count(&rewards)
	assert.Equal(t, int64(1), seasons, "no new season")
	assert.Zero(t, rewards, "no reward rows")

	var alpha entity.User
	require.NoError(t, db.First(&alpha, "handle = ?", "@alpha").Error)
	assert.Equal(t, 30, alpha.Points)
}

func TestRolloverWithoutSeason(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(t, db, &fakeLedger{})

	_, err := svc.RolloverSeason(context.Background())
	assert.ErrorIs(t, err, ErrNoSeason)
}

func rolledOver(t *testing.T, l *fakeLedger) (*seasonService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	seedStandings(t, db)
	svc := newService(t, db, l)
	_, err := svc.RolloverSeason(context.Background())
	require.NoError(t, err)
	return svc, db
}

func TestClaimReward(t *testing.T) {
	l := &fakeLedger{}
	svc, db := rolledOver(t, l)
	ctx := context.Background()

	res, err := svc.ClaimReward(ctx, "@alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Amount)
	assert.NotEmpty(t, res.TxID)
	assert.Equal(t, []int64{100}, l.transfers)

	var reward entity.SeasonReward
	require.NoError(t, db.First(&reward, "season_id = ? AND handle = ?", 1, "@alpha").Error)
	assert.True(t, reward.Claimed)
	require.NotNil(t, reward.TxID)
	assert.Equal(t, res.TxID, *reward.TxID)

	_, err = svc.ClaimReward(ctx, "@alpha")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Len(t, l.transfers, 1)
}

func TestClaimRewardErrors(t *testing.T) {
	svc, _ := rolledOver(t, &fakeLedger{})
	ctx := context.Background()

	_, err := svc.ClaimReward(ctx, "@delta")
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, http.StatusForbidden, apperror.MapErrorToStatus(err))

	_, err = svc.ClaimReward(ctx, "@bravo")
	assert.ErrorIs(t, err, ErrNoWallet)
	assert.Equal(t, http.StatusBadRequest, apperror.MapErrorToStatus(err))
}

func TestClaimRewardBeforeAnyRollover(t *testing.T) {
	db := testutil.NewDB(t)
	seedStandings(t, db)
	svc := newService(t, db, &fakeLedger{})

	_, err := svc.ClaimReward(context.Background(), "@alpha")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestClaimRewardTransferFailureLeavesRowUnclaimed(t *testing.T) {
	l := &fakeLedger{transferErr: errors.New("INSUFFICIENT_TOKEN_BALANCE")}
	svc, db := rolledOver(t, l)
	ctx := context.Background()

	_, err := svc.ClaimReward(ctx, "@alpha")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperror.MapErrorToStatus(err))

	var reward entity.SeasonReward
	require.NoError(t, db.First(&reward, "season_id = ? AND handle = ?", 1, "@alpha").Error)
	assert.False(t, reward.Claimed)
	assert.Nil(t, reward.TxID)

	// Retry succeeds once the ledger recovers.
	l.transferErr = nil
	_, err = svc.ClaimReward(ctx, "@alpha")
	assert.NoError(t, err)
}

func TestClaimRewardTokenNotAssociated(t *testing.T) {
	l := &fakeLedger{transferErr: fmt.Errorf("%w: exceptional receipt status: TOKEN_NOT_ASSOCIATED_TO_ACCOUNT", ledger.ErrTokenNotAssociated)}
	svc, db := rolledOver(t, l)
	ctx := context.Background()

	_, err := svc.ClaimReward(ctx, "@alpha")
	assert.ErrorIs(t, err, ErrTokenNotAssociated)
	assert.Equal(t, http.StatusConflict, apperror.MapErrorToStatus(err))
	assert.Empty(t, l.transfers)

	var reward entity.SeasonReward
	require.NoError(t, db.First(&reward, "season_id = ? AND handle = ?", 1, "@alpha").Error)
	assert.False(t, reward.Claimed)

	// Claiming works once the player has associated the token.
	l.transferErr = nil
	_, err = svc.ClaimReward(ctx, "@alpha")
	assert.NoError(t, err)
}

func TestConcurrentClaimsTransferOnce(t *testing.T) {
	l := &fakeLedger{}
	svc, _ := rolledOver(t, l)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ClaimReward(context.Background(), "@charlie")
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyClaimed):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, already)
	assert.Equal(t, []int64{25}, l.transfers)
}

func TestSeasonDates(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(t, db, &fakeLedger{})
	ctx := context.Background()

	_, err := svc.GetSeasonDates(ctx)
	assert.Equal(t, http.StatusNotFound, apperror.MapErrorToStatus(err))

	res, err := svc.UpdateSeasonDates(ctx, dto.SeasonDatesInput{StartDate: "2025-06-01", EndDate: "2025-06-29T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), res.StartDate.UTC())

	got, err := svc.GetSeasonDates(ctx)
	require.NoError(t, err)
	assert.True(t, got.EndDate.Equal(time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC)))

	bad := []dto.SeasonDatesInput{
		{StartDate: "2025-06-29", EndDate: "2025-06-01"},
		{StartDate: "2025-06-01", EndDate: "2025-06-01"},
		{StartDate: "June 1st", EndDate: "2025-06-29"},
		{StartDate: "2025-06-01", EndDate: ""},
	}
	for _, in := range bad {
		_, err := svc.UpdateSeasonDates(ctx, in)
		assert.Equal(t, http.StatusBadRequest, apperror.MapErrorToStatus(err), in)
	}
}
