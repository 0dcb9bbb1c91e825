package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hurley87/irl-protocol/internal/logger"
)

// InitializeTokenCache connects to Redis for token caching and proves
// the connection works before anything depends on it.
func InitializeTokenCache(redisAddr string, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "", // no password
		DB:       0,  // use default DB
		PoolSize: 10, // connection pool size
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		if log != nil {
			log.Error("AUTH", fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
		}
		return nil, err
	}

	// Prove the cache key is writable, not just reachable.
	testKey := M2MTokenKey + ":test"
	if err := redisClient.Set(ctx, testKey, "test", 5*time.Second).Err(); err != nil {
		if log != nil {
			log.Error("AUTH", fmt.Sprintf("Failed to write test value to Redis: %v", err))
		}
		return nil, err
	}

	if log != nil {
		log.Info("AUTH", fmt.Sprintf("Redis token cache ready at %s", redisAddr))
	}
	return redisClient, nil
}
