package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"anoa.com/lazylegends/internal/entity"
	"anoa.com/lazylegends/internal/modules/season/dto"
	seasonRepo "anoa.com/lazylegends/internal/modules/season/repository"
	userRepo "anoa.com/lazylegends/internal/modules/user/repository"
	"anoa.com/lazylegends/pkg/apperror"
	"anoa.com/lazylegends/pkg/ledger"
	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNoSeason           = apperror.New(http.StatusNotFound, "no season has started", apperror.ErrNotFound)
	ErrNoPreviousSeason   = apperror.New(http.StatusNotFound, "no previous season", apperror.ErrNotFound)
	ErrNotEligible        = apperror.New(http.StatusForbidden, "not eligible for a reward this season", apperror.ErrForbidden)
	ErrAlreadyClaimed     = apperror.New(http.StatusConflict, "reward already claimed", apperror.ErrConflict)
	ErrNoWallet           = apperror.New(http.StatusBadRequest, "link a Hedera wallet before claiming", apperror.ErrBadRequest)
	ErrTokenNotAssociated = apperror.New(http.StatusConflict, "associate the reward token with your wallet, then claim again", apperror.ErrConflict)
)

type SeasonService interface {
	GetCurrentSeason(ctx context.Context) (*dto.CurrentSeasonResponse, error)
	GetSeasonWinners(ctx context.Context) (*dto.WinnersResponse, error)
	ClaimReward(ctx context.Context, handle string) (*dto.ClaimResponse, error)
	RolloverSeason(ctx context.Context) (*dto.RolloverResponse, error)
	GetSeasonDates(ctx context.Context) (*dto.SeasonDatesResponse, error)
	UpdateSeasonDates(ctx context.Context, input dto.SeasonDatesInput) (*dto.SeasonDatesResponse, error)
}

// RewardConfig names the token and treasury used for payouts, and the per-rank amounts.
type RewardConfig struct {
	TokenID    string
	TreasuryID string
	Amounts    []int64
}

type seasonService struct {
	repo     seasonRepo.SeasonRepository
	userRepo userRepo.UserRepository
	ledger   ledger.Ledger
	cfg      RewardConfig
	now      func() time.Time

	// claimMu serializes claims so two concurrent calls cannot both transfer.
	claimMu sync.Mutex
}

func NewSeasonService(repo seasonRepo.SeasonRepository, userRepo userRepo.UserRepository, l ledger.Ledger, cfg RewardConfig) SeasonService {
	return &seasonService{
		repo:     repo,
		userRepo: userRepo,
		ledger:   l,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *seasonService) GetCurrentSeason(ctx context.Context) (*dto.CurrentSeasonResponse, error) {
	current, err := s.repo.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSeason
		}
		return nil, err
	}
	return &dto.CurrentSeasonResponse{ID: current.ID, StartedAt: current.StartedAt}, nil
}

// previousSeason resolves the season directly below the current one.
func (s *seasonService) previousSeason(ctx context.Context) (*entity.Season, error) {
	current, err := s.repo.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPreviousSeason
		}
		return nil, err
	}

	prev, err := s.repo.GetPrevious(ctx, current.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPreviousSeason
		}
		return nil, err
	}
	return prev, nil
}

func (s *seasonService) GetSeasonWinners(ctx context.Context) (*dto.WinnersResponse, error) {
	prev, err := s.previousSeason(ctx)
	if err != nil {
		return nil, err
	}

	rewards, err := s.repo.GetRewards(ctx, prev.ID)
	if err != nil {
		return nil, err
	}

	return &dto.WinnersResponse{SeasonID: prev.ID, Winners: toWinners(rewards)}, nil
}

func (s *seasonService) ClaimReward(ctx context.Context, handle string) (*dto.ClaimResponse, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	prev, err := s.previousSeason(ctx)
	if err != nil {
		if errors.Is(err, ErrNoPreviousSeason) {
			return nil, ErrNotEligible
		}
		return nil, err
	}

	reward, err := s.repo.FindReward(ctx, prev.ID, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEligible
		}
		return nil, err
	}
	if reward.Claimed {
		return nil, ErrAlreadyClaimed
	}

	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEligible
		}
		return nil, err
	}
	if !validator.HasWallet(user.Wallet) {
		return nil, ErrNoWallet
	}

	log := logger.WithFields(logrus.Fields{
		"handle":    handle,
		"season_id": prev.ID,
		"amount":    reward.RewardAmount,
		"wallet":    user.Wallet,
	})

	// Association must be signed by the wallet owner, so the player does it
	// from their wallet and the transfer reports when it is missing.
	txID, err := s.ledger.Transfer(ctx, s.cfg.TokenID, s.cfg.TreasuryID, user.Wallet, reward.RewardAmount)
	if errors.Is(err, ledger.ErrTokenNotAssociated) {
		log.WithError(err).Warn("Reward token not associated with wallet")
		return nil, ErrTokenNotAssociated
	}
	if err != nil {
		log.WithError(err).Error("Reward transfer failed")
		return nil, apperror.Upstream("reward transfer failed, please try again", err)
	}

	marked, err := s.repo.MarkRewardClaimed(ctx, prev.ID, handle, txID, s.now())
	if err != nil {
		// The tokens moved; surface the tx id so support can reconcile.
		log.WithError(err).WithField("tx_id", txID).Error("Transfer succeeded but claim flag was not saved")
		return nil, fmt.Errorf("failed to record claim for tx %s: %w", txID, err)
	}
	if !marked {
		log.WithField("tx_id", txID).Error("Claim row was already flagged after transfer")
	}

	log.WithField("tx_id", txID).Info("Reward claimed")
	return &dto.ClaimResponse{
		Message: fmt.Sprintf("Sent %d tokens to %s", reward.RewardAmount, user.Wallet),
		Amount:  reward.RewardAmount,
		TxID:    txID,
	}, nil
}

func (s *seasonService) RolloverSeason(ctx context.Context) (*dto.RolloverResponse, error) {
	outcome, err := s.repo.Rollover(ctx, s.cfg.Amounts, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSeason
		}
		return nil, fmt.Errorf("season rollover failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"previous_season_id": outcome.PreviousSeasonID,
		"new_season_id":      outcome.NewSeasonID,
		"winners":            len(outcome.Rewards),
	}).Info("🏆 Season rolled over")

	return &dto.RolloverResponse{
		PreviousSeasonID: outcome.PreviousSeasonID,
		NewSeasonID:      outcome.NewSeasonID,
		Winners:          toWinners(outcome.Rewards),
	}, nil
}

func (s *seasonService) GetSeasonDates(ctx context.Context) (*dto.SeasonDatesResponse, error) {
	dates, err := s.repo.GetDates(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(http.StatusNotFound, "season dates not set", apperror.ErrNotFound)
		}
		return nil, err
	}
	return &dto.SeasonDatesResponse{StartDate: dates.StartDate, EndDate: dates.EndDate}, nil
}

func (s *seasonService) UpdateSeasonDates(ctx context.Context, input dto.SeasonDatesInput) (*dto.SeasonDatesResponse, error) {
	start, err := parseDate(input.StartDate)
	if err != nil {
		return nil, apperror.Validation("startDate must be an RFC 3339 timestamp or YYYY-MM-DD")
	}
	end, err := parseDate(input.EndDate)
	if err != nil {
		return nil, apperror.Validation("endDate must be an RFC 3339 timestamp or YYYY-MM-DD")
	}
	if !end.After(start) {
		return nil, apperror.Validation("endDate must be after startDate")
	}

	dates, err := s.repo.SaveDates(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &dto.SeasonDatesResponse{StartDate: dates.StartDate, EndDate: dates.EndDate}, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func toWinners(rewards []entity.SeasonReward) []dto.Winner {
	winners := make([]dto.Winner, 0, len(rewards))
	for _, r := range rewards {
		winners = append(winners, dto.Winner{
			Handle:       r.Handle,
			Rank:         r.Rank,
			RewardAmount: r.RewardAmount,
			Claimed:      r.Claimed,
		})
	}
	return winners
}
