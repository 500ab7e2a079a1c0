package dto

import "time"

type Winner struct {
	Handle       string `json:"handle"`
	Rank         int    `json:"rank"`
	RewardAmount int64  `json:"rewardAmount"`
	Claimed      bool   `json:"claimed"`
}

type WinnersResponse struct {
	SeasonID uint     `json:"seasonId"`
	Winners  []Winner `json:"winners"`
}

type ClaimResponse struct {
	Message string `json:"message"`
	Amount  int64  `json:"amount"`
	TxID    string `json:"txId"`
}

type RolloverResponse struct {
	PreviousSeasonID uint     `json:"previousSeasonId"`
	NewSeasonID      uint     `json:"newSeasonId"`
	Winners          []Winner `json:"winners"`
}

type CurrentSeasonResponse struct {
	ID        uint      `json:"id"`
	StartedAt time.Time `json:"startedAt"`
}

// SeasonDatesInput accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
type SeasonDatesInput struct {
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

type SeasonDatesResponse struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}
