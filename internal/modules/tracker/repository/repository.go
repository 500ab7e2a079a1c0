package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/lazylegends/internal/entity"
	"gorm.io/gorm"
)

// Cursor is one user's poll position.
type Cursor struct {
	Handle        string
	LastCheckedAt *time.Time
}

// ErrSeasonChanged is returned when a rollover committed after the run loaded seasonID.
var ErrSeasonChanged = errors.New("season changed during poll run")

// TrackerRepository writes are scoped to seasonID and fail with ErrSeasonChanged
// once a newer season exists, leaving points and cursors untouched.
type TrackerRepository interface {
	ListCursors(ctx context.Context) ([]Cursor, error)
	// CreditPoints adds points, logs the credit and advances the cursor in one transaction.
	CreditPoints(ctx context.Context, seasonID uint, log *entity.ActivityLog, checkedAt time.Time) error
	UpdateCursor(ctx context.Context, seasonID uint, handle string, checkedAt time.Time) error
}

type trackerRepository struct {
	db *gorm.DB
}

func NewTrackerRepository(db *gorm.DB) TrackerRepository {
	return &trackerRepository{db: db}
}

func (r *trackerRepository) ListCursors(ctx context.Context) ([]Cursor, error) {
	var cursors []Cursor
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Select("handle", "last_checked_at").
		Order("handle ASC").
		Scan(&cursors).Error
	return cursors, err
}

func (r *trackerRepository) CreditPoints(ctx context.Context, seasonID uint, log *entity.ActivityLog, checkedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The user row is locked before the season check so a concurrent
		// rollover either commits first and is seen, or waits for us.
		res := tx.Model(&entity.User{}).
			Where("handle = ?", log.Handle).
			Updates(map[string]interface{}{
				"points":          gorm.Expr("points + ?", log.Points),
				"last_checked_at": checkedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := ensureSeason(tx, seasonID); err != nil {
			return err
		}

		if log.CreatedAt.IsZero() {
			log.CreatedAt = checkedAt
		}
		return tx.Create(log).Error
	})
}

func (r *trackerRepository) UpdateCursor(ctx context.Context, seasonID uint, handle string, checkedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.User{}).
			Where("handle = ?", handle).
			Update("last_checked_at", checkedAt).Error; err != nil {
			return err
		}
		return ensureSeason(tx, seasonID)
	})
}

func ensureSeason(tx *gorm.DB, seasonID uint) error {
	var current uint
	if err := tx.Model(&entity.Season{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&current).Error; err != nil {
		return err
	}
	if current != seasonID {
		return ErrSeasonChanged
	}
	return nil
}
