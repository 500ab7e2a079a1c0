package entity

import "time"

type Announcement struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BonusDay overrides the default multiplier for one calendar date (YYYY-MM-DD).
type BonusDay struct {
	Date       string `gorm:"primaryKey;size:10" json:"date"`
	Multiplier int    `gorm:"not null" json:"multiplier"`
}
