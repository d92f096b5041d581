package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SourcePostgres = "postgres"
	SourceBackend  = "backend"
)

type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	DatabaseURL   string
	APIBaseURL    string
	APITimeout    time.Duration
	OrderSource   string
	MaxUploadSize int64

	ReportTimezone  string
	ReportCurrency  string
	ReportCacheTTL  time.Duration
	RedisURL        string
	RefreshInterval time.Duration

	// RefreshRestaurants lists restaurant ids regenerated by the background
	// refresher. "all" or an empty id means the unscoped report.
	RefreshRestaurants []string

	RabbitMQURL          string
	RabbitMQWorkerMode   string
	CorsAllowedOrigins   []string
	CorsAllowCredentials bool
	WSHeartbeatInterval  time.Duration

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
	ReportArchivePrefix        string
}

func Load() Config {
	cfg := Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8086"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		APIBaseURL:    strings.TrimRight(getEnvFirst([]string{"API_BASE_URL", "SABORE_API_URL"}, ""), "/"),
		APITimeout:    getEnvDuration("API_TIMEOUT", 30*time.Second),
		OrderSource:   strings.ToLower(getEnv("ORDER_SOURCE", "")),
		MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 10*1024*1024),

		ReportTimezone:     getEnv("REPORT_TIMEZONE", "UTC"),
		ReportCurrency:     getEnv("REPORT_CURRENCY", "R$"),
		ReportCacheTTL:     getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
		RedisURL:           getEnv("REDIS_URL", ""),
		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", 0),
		RefreshRestaurants: splitCSV(getEnv("REFRESH_RESTAURANTS", "")),

		RabbitMQURL:          getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:   getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		CorsAllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
		WSHeartbeatInterval:  getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL", "R2_PUBLIC_BASE_URL"}, ""),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
		ReportArchivePrefix:        strings.Trim(getEnv("REPORT_ARCHIVE_PREFIX", "reports"), "/"),
	}

	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 * 1024 * 1024
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 30 * time.Second
	}
	if cfg.OrderSource == "" {
		cfg.OrderSource = SourceBackend
		if cfg.DatabaseURL != "" {
			cfg.OrderSource = SourcePostgres
		}
	}

	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) ObjectStoreEnabled() bool {
	return c.ObjectStoreEndpoint != "" && c.ObjectStoreBucket != "" && c.ObjectStorePublicBaseURL != ""
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		if value := strings.TrimSpace(os.Getenv(k)); value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
