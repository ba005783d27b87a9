// config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура конфигурации приложения
type Config struct {
	// Хранилище: memory или postgres (+redis для кэша и рейт-лимита)
	StorageBackend string

	// Postgres
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBMaxConns int
	DBMaxIdle  int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Analytics Engine
	AnalyticsCacheTTL  time.Duration // TTL записи аналитики в Redis
	StaleAfter         time.Duration // порог свежести кэша
	ConfidenceSalesN   int           // N продаж за 7д для very_high
	TrendThresholdPct  float64       // порог rising/falling по q50
	SalesWindowShort   time.Duration // окно sales_7d
	SalesWindowLong    time.Duration // окно sales_30d

	// Alert Engine
	CooldownWindow      time.Duration // минимум между алертами по паре (user, asset)
	EscalationMarginPct float64       // превышение профита для досрочного алерта
	MaxAlertsPerBatch   int           // кап алертов на пользователя за батч
	MaxAlertsPerHour    int           // часовой рейт-лимит на пользователя
	StaleListingAge     time.Duration // листинги старше отбрасываются
	MaxPriceChangesPerH int           // порог манипуляции ценой

	// Ingest
	WorkerShards    int // количество шардов по ключу актива
	IngestBufferLen int // буфер очереди событий на шард
	DedupCapacity   int // размер индекса дедупликации

	// HTTP / WebSocket
	HttpPort    string
	HttpEnabled bool
	WSEnabled   bool

	// Logging
	LogLevel string
	LogFile  string
	Debug    bool
}

// LoadConfig загружает конфигурацию из .env файла
func LoadConfig(envPath string) (*Config, error) {
	// Загружаем .env файл
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
	}

	config := &Config{
		StorageBackend: getEnvString("STORAGE_BACKEND", "memory"),

		// Postgres
		DBHost:     getEnvString("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnvString("DB_USER", "giftsniper"),
		DBPassword: getEnvString("DB_PASSWORD", "password"),
		DBName:     getEnvString("DB_NAME", "giftsniper_db"),
		DBSSLMode:  getEnvString("DB_SSLMODE", "disable"),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 25),
		DBMaxIdle:  getEnvInt("DB_MAX_IDLE", 10),

		// Redis
		RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Analytics
		AnalyticsCacheTTL: getEnvDuration("ANALYTICS_CACHE_TTL", 60*time.Second),
		StaleAfter:        getEnvDuration("ANALYTICS_STALE_AFTER", 60*time.Second),
		ConfidenceSalesN:  getEnvInt("CONFIDENCE_SALES_N", 5),
		TrendThresholdPct: getEnvFloat("TREND_THRESHOLD_PCT", 5.0),
		SalesWindowShort:  getEnvDuration("SALES_WINDOW_SHORT", 7*24*time.Hour),
		SalesWindowLong:   getEnvDuration("SALES_WINDOW_LONG", 30*24*time.Hour),

		// Alerts
		CooldownWindow:      getEnvDuration("COOLDOWN_WINDOW", 15*time.Minute),
		EscalationMarginPct: getEnvFloat("ESCALATION_MARGIN_PCT", 10.0),
		MaxAlertsPerBatch:   getEnvInt("MAX_ALERTS_PER_BATCH", 5),
		MaxAlertsPerHour:    getEnvInt("MAX_ALERTS_PER_HOUR", 50),
		StaleListingAge:     getEnvDuration("STALE_LISTING_AGE", 6*time.Hour),
		MaxPriceChangesPerH: getEnvInt("MAX_PRICE_CHANGES_PER_HOUR", 3),

		// Ingest
		WorkerShards:    getEnvInt("WORKER_SHARDS", 16),
		IngestBufferLen: getEnvInt("INGEST_BUFFER_LEN", 1024),
		DedupCapacity:   getEnvInt("DEDUP_CAPACITY", 100000),

		// HTTP
		HttpPort:    getEnvString("HTTP_PORT", "8080"),
		HttpEnabled: getEnvBool("HTTP_ENABLED", true),
		WSEnabled:   getEnvBool("WS_ENABLED", true),

		// Logging
		LogLevel: getEnvString("LOG_LEVEL", "info"),
		LogFile:  getEnvString("LOG_FILE", "logs/engine.log"),
		Debug:    getEnvBool("DEBUG", false),
	}

	return config, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.StorageBackend != "memory" && c.StorageBackend != "postgres" {
		return fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", c.StorageBackend)
	}
	if c.WorkerShards <= 0 {
		return fmt.Errorf("WORKER_SHARDS must be positive, got %d", c.WorkerShards)
	}
	if c.CooldownWindow <= 0 {
		return fmt.Errorf("COOLDOWN_WINDOW must be positive")
	}
	if c.EscalationMarginPct < 0 {
		return fmt.Errorf("ESCALATION_MARGIN_PCT must not be negative")
	}
	if c.MaxAlertsPerBatch <= 0 {
		return fmt.Errorf("MAX_ALERTS_PER_BATCH must be positive")
	}
	if c.ConfidenceSalesN <= 0 {
		return fmt.Errorf("CONFIDENCE_SALES_N must be positive")
	}
	if !strings.HasPrefix(c.HttpPort, ":") {
		c.HttpPort = ":" + c.HttpPort
	}
	return nil
}

// Вспомогательные функции для парсинга переменных окружения
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
