package handler

import (
	"context"
	"net/http"

	"anoa.com/lazylegends/internal/modules/admin/dto"
	adminService "anoa.com/lazylegends/internal/modules/admin/service"
	trackerService "anoa.com/lazylegends/internal/modules/tracker/service"
	"anoa.com/lazylegends/pkg/response"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService adminService.AdminService
	poller       trackerService.PollerService
	// runCtx outlives the request that triggers a manual poll.
	runCtx context.Context
}

func NewAdminHandler(adminService adminService.AdminService, poller trackerService.PollerService, runCtx context.Context) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		poller:       poller,
		runCtx:       runCtx,
	}
}

func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	res, err := h.adminService.ListUsers(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.adminService.DeleteUser(c.Request.Context(), c.Param("handle")); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted successfully"})
}

func (h *AdminHandler) ClearInvalidUsers(c *gin.Context) {
	res, err := h.adminService.ClearInvalidUsers(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) PollNow(c *gin.Context) {
	if err := h.poller.Trigger(h.runCtx); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "poll run started"})
}

func (h *AdminHandler) Mint(c *gin.Context) {
	var input dto.MintRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.MintCollectible(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
