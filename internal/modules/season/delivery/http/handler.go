package handler

import (
	"net/http"

	"anoa.com/lazylegends/internal/modules/season/dto"
	seasonService "anoa.com/lazylegends/internal/modules/season/service"
	"anoa.com/lazylegends/pkg/response"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/gin-gonic/gin"
)

type SeasonHandler struct {
	service seasonService.SeasonService
}

func NewSeasonHandler(service seasonService.SeasonService) *SeasonHandler {
	return &SeasonHandler{service: service}
}

func (h *SeasonHandler) GetCurrentSeason(c *gin.Context) {
	res, err := h.service.GetCurrentSeason(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SeasonHandler) GetSeasonWinners(c *gin.Context) {
	res, err := h.service.GetSeasonWinners(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SeasonHandler) ClaimReward(c *gin.Context) {
	handle, err := response.GetHandle(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.ClaimReward(c.Request.Context(), handle)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SeasonHandler) GetSeasonDates(c *gin.Context) {
	res, err := h.service.GetSeasonDates(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateSeasonDates and RolloverSeason are mounted under the admin group.
func (h *SeasonHandler) UpdateSeasonDates(c *gin.Context) {
	var input dto.SeasonDatesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.UpdateSeasonDates(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SeasonHandler) RolloverSeason(c *gin.Context) {
	res, err := h.service.RolloverSeason(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "leaderboard reset and new season started", "data": res})
}
