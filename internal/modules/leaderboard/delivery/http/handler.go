package handler

import (
	"net/http"
	"strconv"

	leaderboardDto "anoa.com/lazylegends/internal/modules/leaderboard/dto"
	leaderboardService "anoa.com/lazylegends/internal/modules/leaderboard/service"
	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/response"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type LeaderboardHandler struct {
	service     leaderboardService.LeaderboardService
	redisClient *redis.Client
	upgrader    websocket.Upgrader
}

func NewLeaderboardHandler(service leaderboardService.LeaderboardService, redisClient *redis.Client) *LeaderboardHandler {
	return &LeaderboardHandler{
		service:     service,
		redisClient: redisClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // public read-only feed
			},
		},
	}
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(leaderboardService.DefaultLimit)))
	return limit
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	leaderboard, err := h.service.GetLeaderboard(c.Request.Context(), queryLimit(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	if handle, err := response.GetHandle(c); err == nil {
		for i := range leaderboard {
			leaderboard[i].IsCurrentUser = leaderboard[i].Handle == handle
		}
	}
	c.JSON(http.StatusOK, leaderboard)
}

func (h *LeaderboardHandler) GetRecentActivity(c *gin.Context) {
	activity, err := h.service.GetRecentActivity(c.Request.Context(), queryLimit(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

func (h *LeaderboardHandler) GetBonusDay(c *gin.Context) {
	res, err := h.service.GetBonusDay(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LeaderboardHandler) ListBonusDays(c *gin.Context) {
	days, err := h.service.ListBonusDays(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": days})
}

func (h *LeaderboardHandler) SetBonusDay(c *gin.Context) {
	var input leaderboardDto.BonusDayInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	day, err := h.service.SetBonusDay(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (h *LeaderboardHandler) DeleteBonusDay(c *gin.Context) {
	if err := h.service.DeleteBonusDay(c.Request.Context(), c.Param("date")); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bonus day removed"})
}

// ActivityStream forwards every published point credit to the websocket client.
func (h *LeaderboardHandler) ActivityStream(c *gin.Context) {
	if h.redisClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live activity feed is unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("Failed to upgrade websocket")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	pubsub := h.redisClient.Subscribe(ctx, leaderboardService.ActivityChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		logger.WithError(err).Warn("Failed to subscribe to activity feed")
		return
	}
	ch := pubsub.Channel()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
