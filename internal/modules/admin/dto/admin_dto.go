package dto

import "time"

type UserSummary struct {
	Handle        string     `json:"handle"`
	Wallet        string     `json:"wallet"`
	Points        int        `json:"points"`
	Image         *string    `json:"image,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type ClearInvalidUsersResponse struct {
	Message string   `json:"message"`
	Deleted int      `json:"deleted"`
	Handles []string `json:"handles"`
}

type MintRequest struct {
	TokenID string `json:"tokenId" binding:"required"`
	ItemID  string `json:"itemId" binding:"required,max=64"`
}

type MintResponse struct {
	TxID     string  `json:"txId"`
	Serials  []int64 `json:"serials"`
	Metadata string  `json:"metadata"`
}
