package dto

type AnnouncementResponse struct {
	Text string `json:"text"`
}

type UpdateAnnouncementInput struct {
	Text string `json:"text" binding:"required"`
}
