package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campaign-sheet-service/internal/models"
)

type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DBHost              string
	DBPort              int
	DBUser              string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	OperationLogEnabled bool

	// Redis
	RedisURL string

	// NATS, optional
	NATSURL string

	// Campaign back-offices
	JuBaseURL        string
	TaoQiangGouURL   string
	TaoQingCangURL   string
	HTTPTimeout      time.Duration
	RemoteRateLimit  float64
	RemoteRateBurst  int
	RemoteMaxRetries int

	// Flow tuning
	PageConcurrency   int
	DetailConcurrency int
	OperationTimeout  time.Duration
	SessionLockTTL    time.Duration
	MaxUploadSize     int64

	// Article images
	ArticleImageURL         string
	ArticleImageConcurrency int
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8095"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		// Database - password comes from GCP Secret Manager if enabled
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnvAsInt("DB_PORT", 5432),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          secrets.GetDBPassword(),
		DBName:              getEnv("DB_NAME", "campaign_sheet_db"),
		DBSSLMode:           getEnv("DB_SSLMODE", "disable"),
		OperationLogEnabled: getEnvAsBool("OPERATION_LOG_ENABLED", true),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		NATSURL:  getEnv("NATS_URL", ""),

		JuBaseURL:        getEnv("JU_BASE_URL", "https://freeway.ju.taobao.com"),
		TaoQiangGouURL:   getEnv("TQG_BASE_URL", "https://tqgfreeway.ju.taobao.com"),
		TaoQingCangURL:   getEnv("TQC_BASE_URL", "https://tqcfreeway.ju.taobao.com"),
		HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		RemoteRateLimit:  getEnvAsFloat("REMOTE_RATE_LIMIT", 5),
		RemoteRateBurst:  getEnvAsInt("REMOTE_RATE_BURST", 1),
		RemoteMaxRetries: getEnvAsInt("REMOTE_MAX_RETRIES", 3),

		PageConcurrency:   getEnvAsInt("PAGE_CONCURRENCY", 4),
		DetailConcurrency: getEnvAsInt("DETAIL_CONCURRENCY", 8),
		OperationTimeout:  getEnvAsDuration("OPERATION_TIMEOUT", 30*time.Minute),
		SessionLockTTL:    getEnvAsDuration("SESSION_LOCK_TTL", 35*time.Minute),
		MaxUploadSize:     int64(getEnvAsInt("MAX_UPLOAD_SIZE", 64<<20)),

		ArticleImageURL:         getEnv("ARTICLE_IMAGE_URL", "http://pic.shopadidas.cn/product/%s/touming.png"),
		ArticleImageConcurrency: getEnvAsInt("ARTICLE_IMAGE_CONCURRENCY", 5),
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// BaseURL returns the back-office root of a platform
func (c *Config) BaseURL(p models.Platform) string {
	switch p {
	case models.PlatformTaoQiangGou:
		return c.TaoQiangGouURL
	case models.PlatformTaoQingCang:
		return c.TaoQingCangURL
	}
	return c.JuBaseURL
}

// Validate rejects settings the flows cannot run with
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]int64{
		"PAGE_CONCURRENCY":          int64(c.PageConcurrency),
		"DETAIL_CONCURRENCY":        int64(c.DetailConcurrency),
		"ARTICLE_IMAGE_CONCURRENCY": int64(c.ArticleImageConcurrency),
		"REMOTE_RATE_BURST":         int64(c.RemoteRateBurst),
		"MAX_UPLOAD_SIZE":           c.MaxUploadSize,
		"HTTP_TIMEOUT":              int64(c.HTTPTimeout),
		"OPERATION_TIMEOUT":         int64(c.OperationTimeout),
		"SESSION_LOCK_TTL":          int64(c.SessionLockTTL),
	}
	for _, key := range []string{
		"PAGE_CONCURRENCY", "DETAIL_CONCURRENCY", "ARTICLE_IMAGE_CONCURRENCY", "REMOTE_RATE_BURST",
		"MAX_UPLOAD_SIZE", "HTTP_TIMEOUT", "OPERATION_TIMEOUT", "SESSION_LOCK_TTL",
	} {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.RemoteMaxRetries < 0 {
		errs = append(errs, errors.New("REMOTE_MAX_RETRIES must not be negative"))
	}
	if c.SessionLockTTL < c.OperationTimeout {
		errs = append(errs, errors.New("SESSION_LOCK_TTL must not be shorter than OPERATION_TIMEOUT"))
	}
	if !strings.Contains(c.ArticleImageURL, "%s") {
		errs = append(errs, errors.New("ARTICLE_IMAGE_URL must contain %s for the article number"))
	}
	for _, p := range models.Platforms {
		if c.BaseURL(p) == "" {
			errs = append(errs, fmt.Errorf("base URL for %s is empty", p))
		}
	}
	return errors.Join(errs...)
}

func InitDB(cfg *Config, log *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.IsProduction() {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Running auto-migrations...")
	if err := db.AutoMigrate(&models.SheetOperation{}); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Info("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
