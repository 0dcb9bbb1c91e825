package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
)

// TokenSource hands out relay M2M tokens, serving from the Redis cache
// and refreshing from Keycloak on a miss. It is what the minter and
// vault clients authenticate with.
type TokenSource struct {
	cfg    models.RelayConfig
	client *http.Client
	cache  *RedisTokenCache
	log    *logger.Logger
}

func NewTokenSource(cfg models.RelayConfig, client *http.Client, redisClient *redis.Client, log *logger.Logger) *TokenSource {
	return &TokenSource{
		cfg:    cfg,
		client: client,
		cache:  NewRedisTokenCache(redisClient),
		log:    log,
	}
}

// Token returns a valid M2M token. A cache read failure is not fatal;
// the source falls through to Keycloak.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	cached, err := s.cache.GetToken(ctx)
	if err != nil {
		s.log.Warn("AUTH", fmt.Sprintf("token cache read failed: %v", err))
	}
	if cached.IsValid() {
		return cached.Token, nil
	}

	resp, err := GetM2MToken(s.cfg, s.client)
	if err != nil {
		return "", fmt.Errorf("failed to fetch M2M token: %w", err)
	}
	if err := s.cache.SetToken(ctx, resp.AccessToken, resp.ExpiresIn); err != nil {
		s.log.Warn("AUTH", fmt.Sprintf("token cache write failed: %v", err))
	}
	return resp.AccessToken, nil
}
