package dto

import "time"

// LeaderboardEntry is one row of the standings. Position is 1-based.
type LeaderboardEntry struct {
	Position int     `json:"position"`
	Handle   string  `json:"handle"`
	Points   int     `json:"points"`
	Image    *string `json:"image,omitempty"`
	// IsCurrentUser marks the caller's own row when a session is present.
	IsCurrentUser bool `json:"isCurrentUser,omitempty"`
}

type ActivityEntry struct {
	Handle     string    `json:"handle"`
	Points     int       `json:"points"`
	Multiplier int       `json:"multiplier"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

type BonusDayResponse struct {
	IsBonusDay bool   `json:"isBonusDay"`
	Multiplier int    `json:"multiplier"`
	Date       string `json:"date"`
}

type BonusDayInput struct {
	Date       string `json:"date" binding:"required,datetime=2006-01-02"`
	Multiplier int    `json:"multiplier" binding:"required,min=1,max=10"`
}

// ActivityEvent is pushed to live feed subscribers for every point credit.
type ActivityEvent struct {
	Handle     string    `json:"handle"`
	Points     int       `json:"points"`
	Multiplier int       `json:"multiplier"`
	PostCount  int       `json:"postCount"`
	Timestamp  time.Time `json:"timestamp"`
}
