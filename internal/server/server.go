package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"anoa.com/lazylegends/internal/config"
	"anoa.com/lazylegends/internal/middleware"
	"anoa.com/lazylegends/internal/scheduler"
	"anoa.com/lazylegends/pkg/ledger"
	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/ratelimit"
	"anoa.com/lazylegends/pkg/sheets"
	"anoa.com/lazylegends/pkg/social"
	"anoa.com/lazylegends/pkg/storage"

	adminHttp "anoa.com/lazylegends/internal/modules/admin/delivery/http"
	adminService "anoa.com/lazylegends/internal/modules/admin/service"

	announcementHttp "anoa.com/lazylegends/internal/modules/announcement/delivery/http"
	announcementRepo "anoa.com/lazylegends/internal/modules/announcement/repository"
	announcementService "anoa.com/lazylegends/internal/modules/announcement/service"

	leaderboardHttp "anoa.com/lazylegends/internal/modules/leaderboard/delivery/http"
	leaderboardRepo "anoa.com/lazylegends/internal/modules/leaderboard/repository"
	leaderboardService "anoa.com/lazylegends/internal/modules/leaderboard/service"

	searchHttp "anoa.com/lazylegends/internal/modules/search/delivery/http"
	searchService "anoa.com/lazylegends/internal/modules/search/service"

	seasonHttp "anoa.com/lazylegends/internal/modules/season/delivery/http"
	seasonRepo "anoa.com/lazylegends/internal/modules/season/repository"
	seasonService "anoa.com/lazylegends/internal/modules/season/service"

	trackerRepo "anoa.com/lazylegends/internal/modules/tracker/repository"
	trackerService "anoa.com/lazylegends/internal/modules/tracker/service"

	userHttp "anoa.com/lazylegends/internal/modules/user/delivery/http"
	userRepo "anoa.com/lazylegends/internal/modules/user/repository"
	userService "anoa.com/lazylegends/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine    *gin.Engine
	http      *http.Server
	scheduler *scheduler.Scheduler
	cancel    context.CancelFunc
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	// Background work started from requests outlives them but stops on shutdown.
	runCtx, cancel := context.WithCancel(context.Background())

	imageStorage, err := newImageStorage(cfg.Upload)
	if err != nil {
		cancel()
		return nil, err
	}
	searchSvc := newSearchService(cfg)
	sheet := newSheetAppender(runCtx, cfg.Sheets)
	tokenLedger := newLedger(cfg.Hedera)
	searcher := newSocialSearcher(runCtx, cfg.Social)

	userRepository := userRepo.NewUserRepository(db)
	var sessions userRepo.SessionRepository
	var adminLimiter ratelimit.Limiter
	var publisher leaderboardService.ActivityPublisher
	if redisClient != nil {
		sessions = userRepo.NewRedisSessionRepository(redisClient)
		adminLimiter = ratelimit.NewRedisLimiter(redisClient, "admin", cfg.Auth.AdminMaxAttempts, cfg.Auth.AdminLockout)
		publisher = leaderboardService.NewRedisActivityPublisher(redisClient)
	} else {
		logger.Warn("REDIS_URL not set: sessions, admin lockout and live feed run in degraded mode")
		sessions = userRepo.NewMemorySessionRepository()
		adminLimiter = ratelimit.NewMemoryLimiter(cfg.Auth.AdminMaxAttempts, cfg.Auth.AdminLockout)
		publisher = leaderboardService.NoopPublisher{}
	}

	authSvc := userService.NewAuthService(userRepository, sessions, imageStorage, sheet, searchSvc, userService.Options{
		JWTSecret:         cfg.Auth.JWTSecret,
		TokenTTL:          cfg.Auth.TokenTTL,
		MinPasswordLength: cfg.Game.MinPasswordLength,
		WalletBonusPoints: cfg.Game.WalletBonusPoints,
		MaxImageBytes:     cfg.Upload.MaxBytes,
	})
	authHandler := userHttp.NewAuthHandler(authSvc)

	leaderboardSvc := leaderboardService.NewLeaderboardService(leaderboardRepo.NewLeaderboardRepository(db))
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(leaderboardSvc, redisClient)

	seasonRepository := seasonRepo.NewSeasonRepository(db)
	seasonSvc := seasonService.NewSeasonService(seasonRepository, userRepository, tokenLedger, seasonService.RewardConfig{
		TokenID:    cfg.Hedera.TokenID,
		TreasuryID: cfg.Hedera.TreasuryID,
		Amounts:    cfg.Game.RewardAmounts,
	})
	seasonHandler := seasonHttp.NewSeasonHandler(seasonSvc)

	announcementSvc := announcementService.NewAnnouncementService(announcementRepo.NewAnnouncementRepository(db), leaderboardSvc)
	announcementHandler := announcementHttp.NewAnnouncementHandler(announcementSvc)

	searchHandler := searchHttp.NewSearchHandler(searchSvc)

	poller := trackerService.NewPollerService(
		trackerRepo.NewTrackerRepository(db),
		seasonRepository,
		leaderboardSvc,
		searcher,
		publisher,
		trackerService.Options{
			Hashtag:           cfg.Game.TrackedHashtag,
			PointsPerPost:     cfg.Game.PointsPerPost,
			PageSize:          cfg.Poller.PageSize,
			MinInterval:       cfg.Poller.MinInterval,
			UserDelay:         cfg.Poller.UserDelay,
			RateLimitCooldown: cfg.Poller.RateLimitCooldown,
		},
	)

	adminSvc := adminService.NewAdminService(userRepository, imageStorage, searchSvc, tokenLedger)
	adminHandler := adminHttp.NewAdminHandler(adminSvc, poller, runCtx)

	jobs := scheduler.New()
	if cfg.Social.BearerToken != "" {
		if err := jobs.Register(trackerService.NewPollJob(poller, cfg.Poller.Schedule)); err != nil {
			cancel()
			return nil, err
		}
	} else {
		logger.Warn("X_BEARER_TOKEN not set: post tracking is disabled")
	}

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    logger.Writer(),
		SkipPaths: []string{"/health", "/api/activity/ws"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "jobs": jobs.Jobs()})
	})
	if cfg.Upload.CloudinaryURL == "" {
		router.Static(cfg.Upload.PublicPath, cfg.Upload.Dir)
	}

	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	adminGuard := middleware.NewAdminGuard(cfg.Auth.AdminPassword, adminLimiter)

	api := router.Group("/api")

	// Public routes (no session required)
	api.POST("/register", authHandler.Register)
	api.POST("/authenticate", authHandler.Login)
	api.POST("/end-session", authHandler.Logout)

	api.GET("/leaderboard", authMiddleware.OptionalAuth(), leaderboardHandler.GetLeaderboard)
	api.GET("/recent-activity", leaderboardHandler.GetRecentActivity)
	api.GET("/bonus-day", leaderboardHandler.GetBonusDay)
	api.GET("/bonus-days", leaderboardHandler.ListBonusDays)
	api.GET("/activity/ws", leaderboardHandler.ActivityStream)

	api.GET("/season", seasonHandler.GetCurrentSeason)
	api.GET("/season-winners", seasonHandler.GetSeasonWinners)
	api.GET("/season-dates", seasonHandler.GetSeasonDates)

	api.GET("/announcement", announcementHandler.GetAnnouncement)
	api.GET("/users/search", searchHandler.SearchUsers)

	// Session routes
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/delete-account", authHandler.DeleteAccount)
		protected.POST("/upload-photo", authHandler.UploadPhoto)
		protected.GET("/me", authHandler.Me)
		protected.PUT("/me/wallet", authHandler.UpdateWallet)
		protected.POST("/claim-reward", seasonHandler.ClaimReward)
	}

	// Admin routes (shared secret)
	adminGroup := api.Group("/admin")
	adminGroup.Use(adminGuard.RequireAdminSecret())
	{
		adminGroup.PUT("/announcement", announcementHandler.UpdateAnnouncement)
		adminGroup.PUT("/season-dates", seasonHandler.UpdateSeasonDates)
		adminGroup.GET("/users", adminHandler.GetAllUsers)
		adminGroup.DELETE("/users/:handle", adminHandler.DeleteUser)
		adminGroup.POST("/clear-invalid-users", adminHandler.ClearInvalidUsers)
		adminGroup.POST("/reset-leaderboard", seasonHandler.RolloverSeason)
		adminGroup.PUT("/bonus-days", leaderboardHandler.SetBonusDay)
		adminGroup.DELETE("/bonus-days/:date", leaderboardHandler.DeleteBonusDay)
		adminGroup.POST("/poll-now", adminHandler.PollNow)
		adminGroup.POST("/mint", adminHandler.Mint)
	}

	return &Server{
		engine:    router,
		scheduler: jobs,
		cancel:    cancel,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the scheduler and blocks serving HTTP until Shutdown.
func (s *Server) Run() error {
	s.scheduler.Start()
	logger.WithField("addr", s.http.Addr).Info("Server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.scheduler.Stop()
	return s.http.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Admin-Password"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

func newImageStorage(cfg config.UploadConfig) (storage.ImageStorage, error) {
	if cfg.CloudinaryURL != "" {
		return storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	}
	logger.WithField("dir", cfg.Dir).Info("CLOUDINARY_URL not set: storing images on local disk")
	return storage.NewLocalStorage(cfg.Dir, cfg.PublicPath)
}

func newSearchService(cfg *config.Config) searchService.SearchService {
	host := cfg.MeiliSearchHost
	if host == "" {
		logger.Warn("MEILISEARCH_HOST not set: handle search is disabled")
		return searchService.Noop{}
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}
	client := meilisearch.New(host, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	return searchService.NewMeiliSearchService(client)
}

func newSheetAppender(ctx context.Context, cfg config.SheetsConfig) sheets.Appender {
	if cfg.SpreadsheetID == "" {
		logger.Warn("SPREADSHEET_ID not set: registrations are not exported")
		return sheets.Noop{}
	}
	appender, err := sheets.NewGoogleAppender(ctx, cfg.CredentialsFile, cfg.SpreadsheetID, cfg.Range)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize Google Sheets, registrations are not exported")
		return sheets.Noop{}
	}
	return appender
}

func newLedger(cfg config.HederaConfig) ledger.Ledger {
	if !cfg.Enabled() {
		logger.Warn("Hedera credentials not set: reward claims and minting are disabled")
		return ledger.Disabled{}
	}
	l, err := ledger.NewHederaLedger(cfg.Network, cfg.OperatorID, cfg.OperatorKey)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize Hedera client, reward claims and minting are disabled")
		return ledger.Disabled{}
	}
	return l
}

func newSocialSearcher(ctx context.Context, cfg config.SocialConfig) social.Searcher {
	return social.NewXSearcher(ctx, cfg.BearerToken, cfg.BaseURL)
}
