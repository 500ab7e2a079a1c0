package dto

import (
	"io"
)

// ImageFile is a profile image read from a multipart upload.
type ImageFile struct {
	Reader   io.Reader
	FileName string
	Size     int64
}

type RegisterInput struct {
	Handle   string `json:"handle" binding:"required,xhandle"`
	Password string `json:"password" binding:"required"`
	Wallet   string `json:"wallet" binding:"omitempty,hederawallet"`
}

type LoginInput struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateWalletInput struct {
	Wallet string `json:"wallet" binding:"required,hederawallet"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Handle      string `json:"handle"`
}

type RegisterResponse struct {
	Message     string `json:"message"`
	Points      int    `json:"points"`
	BonusPoints int    `json:"bonusPoints"`
	AuthResponse
}

type MeResponse struct {
	Handle   string  `json:"handle"`
	Wallet   string  `json:"wallet"`
	Points   int     `json:"points"`
	ImageURL *string `json:"image,omitempty"`
}

// Session is what the auth middleware learns from a verified token.
type Session struct {
	Handle    string
	TokenID   string
	ExpiresAt int64
}
