package entity

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is keyed by the lower-cased X handle, "@" included.
type User struct {
	Handle        string     `gorm:"primaryKey;size:64" json:"handle"`
	Wallet        string     `gorm:"size:32;not null;default:'unset'" json:"wallet"`
	Points        int        `gorm:"not null;default:0;index" json:"points"`
	PasswordHash  string     `gorm:"size:255" json:"-"`
	ImageURL      *string    `gorm:"type:text" json:"image_url,omitempty"`
	LastCheckedAt *time.Time `json:"-"` // poll cursor, cleared at season rollover
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Rewards  []SeasonReward `gorm:"foreignKey:Handle;references:Handle;constraint:OnDelete:CASCADE" json:"-"`
	Activity []ActivityLog  `gorm:"foreignKey:Handle;references:Handle;constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Handle = strings.ToLower(u.Handle)
	return nil
}

// ActivityLog records every point credit. Reason is one of the Reason* constants.
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Handle     string    `gorm:"size:64;not null;index" json:"handle"`
	Points     int       `gorm:"not null" json:"points"`
	Multiplier int       `gorm:"not null;default:1" json:"multiplier"`
	PostCount  int       `gorm:"not null;default:0" json:"post_count"`
	Reason     string    `gorm:"size:32;not null" json:"reason"`
	SeasonID   *uint     `json:"season_id,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

const (
	ReasonPosts       = "posts"
	ReasonWalletBonus = "wallet_bonus"
)
