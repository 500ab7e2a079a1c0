package dto

type UserHit struct {
	Handle   string `json:"handle"`
	Points   int    `json:"points"`
	ImageURL string `json:"image_url,omitempty"`
}
