package handler

import (
	"net/http"
	"strconv"
	"strings"

	searchService "anoa.com/lazylegends/internal/modules/search/service"
	"anoa.com/lazylegends/pkg/response"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service searchService.SearchService
}

func NewSearchHandler(service searchService.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchUsers handles GET /api/users/search?q=&limit=
func (h *SearchHandler) SearchUsers(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	hits, err := h.service.SearchUsers(c.Request.Context(), strings.TrimPrefix(q, "@"), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": hits})
}
