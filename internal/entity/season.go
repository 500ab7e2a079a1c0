package entity

import "time"

// Season rows are append-only; the current season is the highest id.
type Season struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StartedAt time.Time `gorm:"not null" json:"started_at"`
}

// SeasonReward is created at rollover for each of the top three players.
// RewardAmount is the final token amount and is never re-derived.
type SeasonReward struct {
	SeasonID     uint       `gorm:"primaryKey;autoIncrement:false" json:"season_id"`
	Handle       string     `gorm:"primaryKey;size:64" json:"handle"`
	Rank         int        `gorm:"not null" json:"rank"`
	RewardAmount int64      `gorm:"not null" json:"reward_amount"`
	Claimed      bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	TxID         *string    `gorm:"size:100" json:"tx_id,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// SeasonDates is the singleton display countdown. It is not tied to Season.
type SeasonDates struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SeasonDates) TableName() string {
	return "season_dates"
}

const SingletonID = 1
