package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	Database DatabaseConfig
	RedisURL string

	Auth    AuthConfig
	Game    GameConfig
	Poller  PollerConfig
	Upload  UploadConfig
	Hedera  HederaConfig
	Sheets  SheetsConfig
	Social  SocialConfig
	Logging LoggingConfig

	MeiliSearchHost string
	MeiliMasterKey  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	AdminPassword    string
	AdminMaxAttempts int
	AdminLockout     time.Duration
}

type GameConfig struct {
	TrackedHashtag    string
	PointsPerPost     int
	WalletBonusPoints int
	MinPasswordLength int
	RewardAmounts     []int64
}

type PollerConfig struct {
	Schedule          string
	MinInterval       time.Duration
	UserDelay         time.Duration
	RateLimitCooldown time.Duration
	PageSize          int
}

type UploadConfig struct {
	MaxBytes         int64
	Dir              string
	PublicPath       string
	CloudinaryURL    string
	CloudinaryFolder string
}

type HederaConfig struct {
	Network     string
	OperatorID  string
	OperatorKey string
	TokenID     string
	TreasuryID  string
}

// Enabled reports whether enough credentials are present to talk to the ledger.
func (h HederaConfig) Enabled() bool {
	return h.OperatorID != "" && h.OperatorKey != "" && h.TokenID != ""
}

type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
}

type SocialConfig struct {
	BearerToken string
	BaseURL     string
}

type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),

		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		RedisURL: v.GetString("REDIS_URL"),

		Auth: AuthConfig{
			JWTSecret:        v.GetString("JWT_SECRET"),
			AdminPassword:    v.GetString("ADMIN_PASSWORD"),
			AdminMaxAttempts: v.GetInt("ADMIN_MAX_ATTEMPTS"),
		},
		Game: GameConfig{
			TrackedHashtag:    v.GetString("TRACKED_HASHTAG"),
			PointsPerPost:     v.GetInt("POINTS_PER_POST"),
			WalletBonusPoints: v.GetInt("WALLET_BONUS_POINTS"),
			MinPasswordLength: v.GetInt("MIN_PASSWORD_LENGTH"),
		},
		Poller: PollerConfig{
			Schedule: v.GetString("POLL_SCHEDULE"),
			PageSize: v.GetInt("POLL_PAGE_SIZE"),
		},
		Upload: UploadConfig{
			MaxBytes:         v.GetInt64("UPLOAD_MAX_BYTES"),
			Dir:              v.GetString("UPLOAD_DIR"),
			PublicPath:       v.GetString("UPLOAD_PUBLIC_PATH"),
			CloudinaryURL:    v.GetString("CLOUDINARY_URL"),
			CloudinaryFolder: v.GetString("CLOUDINARY_UPLOAD_FOLDER"),
		},
		Hedera: HederaConfig{
			Network:     v.GetString("HEDERA_NETWORK"),
			OperatorID:  v.GetString("HEDERA_OPERATOR_ID"),
			OperatorKey: v.GetString("HEDERA_OPERATOR_KEY"),
			TokenID:     v.GetString("HEDERA_TOKEN_ID"),
			TreasuryID:  v.GetString("HEDERA_TREASURY_ID"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   v.GetString("SPREADSHEET_ID"),
			Range:           v.GetString("SHEETS_RANGE"),
			CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		},
		Social: SocialConfig{
			BearerToken: v.GetString("X_BEARER_TOKEN"),
			BaseURL:     v.GetString("X_API_BASE_URL"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},

		MeiliSearchHost: v.GetString("MEILISEARCH_HOST"),
		MeiliMasterKey:  v.GetString("MEILI_MASTER_KEY"),
	}

	if cfg.Hedera.TreasuryID == "" {
		cfg.Hedera.TreasuryID = cfg.Hedera.OperatorID
	}

	// Parsing durations
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"JWT_TTL", &cfg.Auth.TokenTTL},
		{"ADMIN_LOCKOUT", &cfg.Auth.AdminLockout},
		{"POLL_MIN_INTERVAL", &cfg.Poller.MinInterval},
		{"POLL_USER_DELAY", &cfg.Poller.UserDelay},
		{"POLL_RATE_LIMIT_COOLDOWN", &cfg.Poller.RateLimitCooldown},
	}
	for _, d := range durations {
		parsed, err := parseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	amounts, err := parseRewardAmounts(v.GetString("REWARD_AMOUNTS"))
	if err != nil {
		return nil, fmt.Errorf("invalid REWARD_AMOUNTS: %w", err)
	}
	cfg.Game.RewardAmounts = amounts

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASS", "")
	v.SetDefault("DB_NAME", "lazy_legends")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_URL", "")

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_MAX_ATTEMPTS", 5)
	v.SetDefault("ADMIN_LOCKOUT", "15m")

	v.SetDefault("TRACKED_HASHTAG", "#LazyLegends")
	v.SetDefault("POINTS_PER_POST", 1)
	v.SetDefault("WALLET_BONUS_POINTS", 5)
	v.SetDefault("MIN_PASSWORD_LENGTH", 8)
	v.SetDefault("REWARD_AMOUNTS", "100,50,25")

	v.SetDefault("POLL_SCHEDULE", "@every 30m")
	v.SetDefault("POLL_MIN_INTERVAL", "30m")
	v.SetDefault("POLL_USER_DELAY", "30s")
	v.SetDefault("POLL_RATE_LIMIT_COOLDOWN", "5m")
	v.SetDefault("POLL_PAGE_SIZE", 10)

	v.SetDefault("UPLOAD_MAX_BYTES", 5*1024*1024)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_PUBLIC_PATH", "/uploads")
	v.SetDefault("CLOUDINARY_URL", "")
	v.SetDefault("CLOUDINARY_UPLOAD_FOLDER", "lazy_legends")

	v.SetDefault("HEDERA_NETWORK", "testnet")
	v.SetDefault("HEDERA_OPERATOR_ID", "")
	v.SetDefault("HEDERA_OPERATOR_KEY", "")
	v.SetDefault("HEDERA_TOKEN_ID", "")
	v.SetDefault("HEDERA_TREASURY_ID", "")

	v.SetDefault("SPREADSHEET_ID", "")
	v.SetDefault("SHEETS_RANGE", "Sheet1!A:B")
	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "./lazy-legends-credentials.json")

	v.SetDefault("X_BEARER_TOKEN", "")
	v.SetDefault("X_API_BASE_URL", "https://api.twitter.com")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("MEILISEARCH_HOST", "")
	v.SetDefault("MEILI_MASTER_KEY", "")
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// parseRewardAmounts reads "100,50,25" into per-rank token amounts.
func parseRewardAmounts(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 comma separated amounts, got %d", len(parts))
	}

	amounts := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("amount must be positive, got %d", n)
		}
		amounts = append(amounts, n)
	}
	return amounts, nil
}
