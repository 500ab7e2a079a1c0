package repository

import (
	"context"
	"time"

	"anoa.com/lazylegends/internal/entity"
	"gorm.io/gorm"
)

// RolloverOutcome describes a committed rollover.
type RolloverOutcome struct {
	PreviousSeasonID uint
	NewSeasonID      uint
	Rewards          []entity.SeasonReward
}

type SeasonRepository interface {
	GetCurrent(ctx context.Context) (*entity.Season, error)
	GetPrevious(ctx context.Context, currentID uint) (*entity.Season, error)
	GetRewards(ctx context.Context, seasonID uint) ([]entity.SeasonReward, error)
	FindReward(ctx context.Context, seasonID uint, handle string) (*entity.SeasonReward, error)
	MarkRewardClaimed(ctx context.Context, seasonID uint, handle, txID string, at time.Time) (bool, error)
	Rollover(ctx context.Context, amounts []int64, now time.Time) (*RolloverOutcome, error)
	GetDates(ctx context.Context) (*entity.SeasonDates, error)
	SaveDates(ctx context.Context, start, end time.Time) (*entity.SeasonDates, error)
}

type seasonRepository struct {
	db *gorm.DB
}

func NewSeasonRepository(db *gorm.DB) SeasonRepository {
	return &seasonRepository{db: db}
}

func (r *seasonRepository) GetCurrent(ctx context.Context) (*entity.Season, error) {
	return currentSeason(r.db.WithContext(ctx))
}

func currentSeason(db *gorm.DB) (*entity.Season, error) {
	var season entity.Season
	if err := db.Order("id DESC").First(&season).Error; err != nil {
		return nil, err
	}
	return &season, nil
}

func (r *seasonRepository) GetPrevious(ctx context.Context, currentID uint) (*entity.Season, error) {
	var season entity.Season
	if err := r.db.WithContext(ctx).
		Where("id < ?", currentID).
		Order("id DESC").
		First(&season).Error; err != nil {
		return nil, err
	}
	return &season, nil
}

func (r *seasonRepository) GetRewards(ctx context.Context, seasonID uint) ([]entity.SeasonReward, error) {
	var rewards []entity.SeasonReward
	if err := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Order("rank ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *seasonRepository) FindReward(ctx context.Context, seasonID uint, handle string) (*entity.SeasonReward, error) {
	var reward entity.SeasonReward
	if err := r.db.WithContext(ctx).
		Where("season_id = ? AND handle = ?", seasonID, handle).
		First(&reward).Error; err != nil {
		return nil, err
	}
	return &reward, nil
}

// MarkRewardClaimed flips the flag only if it is still unset and reports whether it did.
func (r *seasonRepository) MarkRewardClaimed(ctx context.Context, seasonID uint, handle, txID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.SeasonReward{}).
		Where("season_id = ? AND handle = ? AND claimed = ?", seasonID, handle, false).
		Updates(map[string]interface{}{
			"claimed":    true,
			"claimed_at": at,
			"tx_id":      txID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Rollover snapshots the top players of the current season into reward rows,
// zeroes every balance and poll cursor, and opens a new season. It is all or nothing.
func (r *seasonRepository) Rollover(ctx context.Context, amounts []int64, now time.Time) (*RolloverOutcome, error) {
	var outcome RolloverOutcome

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := currentSeason(tx)
		if err != nil {
			return err
		}

		var top []entity.User
		if err := tx.
			Where("points > ?", 0).
			Order("points DESC, handle ASC").
			Limit(len(amounts)).
			Find(&top).Error; err != nil {
			return err
		}

		rewards := make([]entity.SeasonReward, 0, len(top))
		for i, u := range top {
			rewards = append(rewards, entity.SeasonReward{
				SeasonID:     current.ID,
				Handle:       u.Handle,
				Rank:         i + 1,
				RewardAmount: amounts[i],
				CreatedAt:    now,
			})
		}
		if len(rewards) > 0 {
			if err := tx.Create(&rewards).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&entity.User{}).
			Where("1 = 1").
			Updates(map[string]interface{}{
				"points":          0,
				"last_checked_at": nil,
			}).Error; err != nil {
			return err
		}

		next := entity.Season{StartedAt: now}
		if err := tx.Create(&next).Error; err != nil {
			return err
		}

		outcome = RolloverOutcome{
			PreviousSeasonID: current.ID,
			NewSeasonID:      next.ID,
			Rewards:          rewards,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (r *seasonRepository) GetDates(ctx context.Context) (*entity.SeasonDates, error) {
	var dates entity.SeasonDates
	if err := r.db.WithContext(ctx).First(&dates, entity.SingletonID).Error; err != nil {
		return nil, err
	}
	return &dates, nil
}

func (r *seasonRepository) SaveDates(ctx context.Context, start, end time.Time) (*entity.SeasonDates, error) {
	dates := entity.SeasonDates{ID: entity.SingletonID, StartDate: start, EndDate: end}
	if err := r.db.WithContext(ctx).Save(&dates).Error; err != nil {
		return nil, err
	}
	return &dates, nil
}
