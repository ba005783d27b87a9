// internal/infrastructure/cache/redis/redis_service.go
package redis

import (
	"context"
	"fmt"
	"time"

	"gift-market-sniper/internal/config"
	"gift-market-sniper/pkg/logger"
	"gift-market-sniper/pkg/retry"

	"github.com/go-redis/redis/v8"
)

// RedisService сервис для работы с Redis
type RedisService struct {
	config *config.Config
	client *redis.Client
	state  ServiceState
}

// ServiceState состояние сервиса
type ServiceState string

const (
	StateStopped  ServiceState = "stopped"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
	StateError    ServiceState = "error"
)

// NewRedisService создает новый Redis сервис
func NewRedisService(cfg *config.Config) *RedisService {
	return &RedisService{
		config: cfg,
		state:  StateStopped,
	}
}

// NewCacheWithClient создает Cache с существующим клиентом
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "giftsniper:",
	}
}

// Start запускает Redis сервис
func (rs *RedisService) Start() error {
	if rs.state == StateRunning {
		return fmt.Errorf("Redis service already running")
	}

	logger.Info("🔄 Starting Redis service...")
	rs.state = StateStarting

	options := &redis.Options{
		Addr:     rs.config.RedisAddr,
		Password: rs.config.RedisPassword,
		DB:       rs.config.RedisDB,
	}

	rs.client = redis.NewClient(options)

	// Проверяем подключение с повторами: Redis может подниматься
	// параллельно с движком
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("📡 Connecting to Redis: %s (DB: %d)", options.Addr, options.DB)

	err := retry.Do(ctx, 500*time.Millisecond, 5*time.Second, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		defer pingCancel()

		if _, err := rs.client.Ping(pingCtx).Result(); err != nil {
			logger.Warn("⚠️ Redis ping failed, retrying: %v", err)
			return err
		}
		return nil
	})
	if err != nil {
		rs.client.Close()
		rs.state = StateError
		logger.Error("❌ Failed to connect to Redis: %v (address: %s)", err, options.Addr)
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	rs.state = StateRunning
	logger.Info("✅ Successfully connected to Redis: %s (DB: %d)", options.Addr, options.DB)

	return nil
}

// Stop останавливает Redis сервис
func (rs *RedisService) Stop() error {
	if rs.state != StateRunning {
		return fmt.Errorf("Redis service is not running")
	}

	logger.Info("🛑 Stopping Redis service...")
	rs.state = StateStopping

	if rs.client != nil {
		if err := rs.client.Close(); err != nil {
			rs.state = StateError
			logger.Error("❌ Failed to close Redis client: %v", err)
			return fmt.Errorf("failed to close Redis client: %w", err)
		}
	}

	rs.client = nil
	rs.state = StateStopped
	logger.Info("✅ Redis service stopped")

	return nil
}

// GetClient возвращает клиент Redis
func (rs *RedisService) GetClient() *redis.Client {
	return rs.client
}

// State возвращает состояние сервиса
func (rs *RedisService) State() ServiceState {
	return rs.state
}

// HealthCheck проверяет здоровье Redis
func (rs *RedisService) HealthCheck() bool {
	if rs.state != StateRunning || rs.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := rs.client.Ping(ctx).Result(); err != nil {
		logger.Info("⚠️ Redis health check failed: %v", err)
		return false
	}

	return true
}

// GetStats возвращает статистику Redis
func (rs *RedisService) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"state":     rs.state,
		"connected": rs.client != nil,
	}

	if rs.client != nil {
		poolStats := rs.client.PoolStats()

		stats["pool_hits"] = poolStats.Hits
		stats["pool_misses"] = poolStats.Misses
		stats["pool_timeouts"] = poolStats.Timeouts
		stats["pool_total_conns"] = poolStats.TotalConns
		stats["pool_idle_conns"] = poolStats.IdleConns

		stats["addr"] = rs.config.RedisAddr
		stats["db"] = rs.config.RedisDB
	}

	return stats
}

// GetCache возвращает кэш поверх текущего клиента
func (rs *RedisService) GetCache() *Cache {
	if rs.client == nil {
		return nil
	}
	return NewCacheWithClient(rs.client)
}

// Name возвращает имя сервиса
func (rs *RedisService) Name() string {
	return "RedisService"
}

// IsRunning возвращает true если сервис запущен
func (rs *RedisService) IsRunning() bool {
	return rs.State() == StateRunning
}
