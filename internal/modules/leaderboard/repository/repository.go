package repository

import (
	"context"

	"anoa.com/lazylegends/internal/entity"
	"gorm.io/gorm"
)

type LeaderboardRepository interface {
	GetTopUsers(ctx context.Context, limit int) ([]entity.User, error)
	GetRecentActivity(ctx context.Context, limit int) ([]entity.ActivityLog, error)
	FindBonusDay(ctx context.Context, date string) (*entity.BonusDay, error)
	ListBonusDays(ctx context.Context) ([]entity.BonusDay, error)
	SaveBonusDay(ctx context.Context, day *entity.BonusDay) error
	DeleteBonusDay(ctx context.Context, date string) error
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) GetTopUsers(ctx context.Context, limit int) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Select("handle", "points", "image_url").
		Order("points DESC, handle ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *leaderboardRepository) GetRecentActivity(ctx context.Context, limit int) ([]entity.ActivityLog, error) {
	var logs []entity.ActivityLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *leaderboardRepository) FindBonusDay(ctx context.Context, date string) (*entity.BonusDay, error) {
	var day entity.BonusDay
	if err := r.db.WithContext(ctx).Where("date = ?", date).First(&day).Error; err != nil {
		return nil, err
	}
	return &day, nil
}

func (r *leaderboardRepository) ListBonusDays(ctx context.Context) ([]entity.BonusDay, error) {
	var days []entity.BonusDay
	err := r.db.WithContext(ctx).Order("date ASC").Find(&days).Error
	return days, err
}

func (r *leaderboardRepository) SaveBonusDay(ctx context.Context, day *entity.BonusDay) error {
	return r.db.WithContext(ctx).Save(day).Error
}

func (r *leaderboardRepository) DeleteBonusDay(ctx context.Context, date string) error {
	res := r.db.WithContext(ctx).Where("date = ?", date).Delete(&entity.BonusDay{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
