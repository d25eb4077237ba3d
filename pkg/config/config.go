package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Vendor data source
	Vendor VendorConfig

	// Indicator cache
	Cache CacheConfig

	// Pipeline
	Pipeline PipelineConfig

	// Pool funnel
	Pool PoolConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// VendorConfig holds the raw-bar vendor endpoint configuration
type VendorConfig struct {
	BaseURL string
	APIKey  string

	// Rate limiting (requests per window)
	RateLimit  int
	RateWindow time.Duration

	// Retry on transient failures
	MaxRetries   int
	InitialDelay time.Duration
}

// CacheConfig holds layered indicator cache configuration
type CacheConfig struct {
	BarTTL     time.Duration // Layer 1 bar series TTL
	Shards     int           // key map shards
	WarmCache  bool          // Redis warm cache for bar series
	WarmTTL    time.Duration // warm cache TTL
	AuditRatio float64       // fraction of computations cross-checked against the fallback path
}

// PipelineConfig holds batch run configuration
type PipelineConfig struct {
	Workers   int           // bounded worker pool size
	Timeframe string        // default bar timeframe
	Lookback  int           // bars fetched per instrument
	FetchWait time.Duration // vendor fetch timeout
}

// PoolConfig holds funnel caps and thresholds
// ⭐ SSOT: 풀 구성 기준값은 여기서만
type PoolConfig struct {
	BasicCap int
	WatchCap int
	CoreCap  int

	WatchMin float64
	CoreMin  float64
}

// SchedulerConfig holds scheduled job configuration
type SchedulerConfig struct {
	Instruments     []string // instrument universe for the daily rebuild
	RebuildSchedule string   // cron expression with seconds field
	ReportSchedule  string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Vendor
		Vendor: VendorConfig{
			BaseURL:      getEnv("VENDOR_BASE_URL", ""),
			APIKey:       getEnv("VENDOR_API_KEY", ""),
			RateLimit:    getEnvAsInt("VENDOR_RATE_LIMIT", 20),
			RateWindow:   getEnvAsDuration("VENDOR_RATE_WINDOW", "1s"),
			MaxRetries:   getEnvAsInt("VENDOR_MAX_RETRIES", 3),
			InitialDelay: getEnvAsDuration("VENDOR_INITIAL_DELAY", "1s"),
		},

		// Cache
		Cache: CacheConfig{
			BarTTL:     getEnvAsDuration("CACHE_BAR_TTL", "24h"),
			Shards:     getEnvAsInt("CACHE_SHARDS", 16),
			WarmCache:  getEnvAsBool("CACHE_WARM_ENABLED", false),
			WarmTTL:    getEnvAsDuration("CACHE_WARM_TTL", "6h"),
			AuditRatio: getEnvAsFloat("CACHE_AUDIT_RATIO", 0.0),
		},

		// Pipeline
		Pipeline: PipelineConfig{
			Workers:   getEnvAsInt("PIPELINE_WORKERS", runtime.GOMAXPROCS(0)),
			Timeframe: getEnv("PIPELINE_TIMEFRAME", "daily"),
			Lookback:  getEnvAsInt("PIPELINE_LOOKBACK", 250),
			FetchWait: getEnvAsDuration("PIPELINE_FETCH_WAIT", "30s"),
		},

		// Pool funnel
		Pool: PoolConfig{
			BasicCap: getEnvAsInt("POOL_BASIC_CAP", 200),
			WatchCap: getEnvAsInt("POOL_WATCH_CAP", 50),
			CoreCap:  getEnvAsInt("POOL_CORE_CAP", 20),
			WatchMin: getEnvAsFloat("POOL_WATCH_MIN", 50.0),
			CoreMin:  getEnvAsFloat("POOL_CORE_MIN", 70.0),
		},

		// Scheduler
		Scheduler: SchedulerConfig{
			Instruments:     getEnvAsSlice("SCHEDULER_INSTRUMENTS", nil),
			RebuildSchedule: getEnv("SCHEDULER_REBUILD_CRON", "0 30 15 * * MON-FRI"),
			ReportSchedule:  getEnv("SCHEDULER_REPORT_CRON", "0 0 * * * *"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}

	if c.Cache.Shards < 1 {
		return fmt.Errorf("CACHE_SHARDS must be at least 1")
	}

	// 풀 중첩 조건: core ≤ watch ≤ basic
	if c.Pool.CoreCap > c.Pool.WatchCap || c.Pool.WatchCap > c.Pool.BasicCap {
		return fmt.Errorf("pool caps must satisfy core <= watch <= basic")
	}

	if c.Cache.AuditRatio < 0 || c.Cache.AuditRatio > 1 {
		return fmt.Errorf("CACHE_AUDIT_RATIO must be within [0, 1]")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		fallback, _ := time.ParseDuration(defaultValue)
		return fallback
	}

	return value
}
