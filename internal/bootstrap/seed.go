package bootstrap

import (
	"time"

	"anoa.com/lazylegends/internal/entity"
	"anoa.com/lazylegends/pkg/logger"
	"gorm.io/gorm"
)

const DefaultAnnouncement = "Welcome to Season 1 of Lazy Legends! Post #LazyLegends to earn SloMo Points! 🦥"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Season{},
		&entity.SeasonReward{},
		&entity.Announcement{},
		&entity.SeasonDates{},
		&entity.BonusDay{},
		&entity.ActivityLog{},
	)
}

// SeedDefaults inserts the singleton rows and the first season when missing.
func SeedDefaults(db *gorm.DB, now time.Time) error {
	var count int64
	if err := db.Model(&entity.Announcement{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		if err := db.Create(&entity.Announcement{ID: entity.SingletonID, Text: DefaultAnnouncement}).Error; err != nil {
			return err
		}
		logger.Info("📣 Initialized default announcement")
	}

	if err := db.Model(&entity.Season{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		season := entity.Season{StartedAt: now}
		if err := db.Create(&season).Error; err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{"season_id": season.ID}).Info("🏁 Initialized first season")
	}

	if err := db.Model(&entity.SeasonDates{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		dates := entity.SeasonDates{
			ID:        entity.SingletonID,
			StartDate: now,
			EndDate:   now.AddDate(0, 0, 28),
		}
		if err := db.Create(&dates).Error; err != nil {
			return err
		}
		logger.Info("📅 Initialized default season dates")
	}

	return nil
}
