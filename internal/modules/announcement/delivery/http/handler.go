package handler

import (
	"net/http"

	"anoa.com/lazylegends/internal/modules/announcement/dto"
	announcementService "anoa.com/lazylegends/internal/modules/announcement/service"
	"anoa.com/lazylegends/pkg/response"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AnnouncementHandler struct {
	service announcementService.AnnouncementService
}

func NewAnnouncementHandler(service announcementService.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

func (h *AnnouncementHandler) GetAnnouncement(c *gin.Context) {
	res, err := h.service.GetAnnouncement(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AnnouncementHandler) UpdateAnnouncement(c *gin.Context) {
	var input dto.UpdateAnnouncementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.UpdateAnnouncement(c.Request.Context(), input.Text)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
