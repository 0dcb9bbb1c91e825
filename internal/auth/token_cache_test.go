package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hurley87/irl-protocol/internal/auth"
)

func TestTokenCacheIsValid(t *testing.T) {
	var nilCache *auth.TokenCache
	assert.False(t, nilCache.IsValid())

	empty := &auth.TokenCache{ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, empty.IsValid())

	expired := &auth.TokenCache{Token: "abc", ExpiresAt: time.Now().Add(-time.Minute)}
	assert.False(t, expired.IsValid())

	// Inside the expiry buffer counts as stale
	closing := &auth.TokenCache{Token: "abc", ExpiresAt: time.Now().Add(30 * time.Second)}
	assert.False(t, closing.IsValid())

	valid := &auth.TokenCache{Token: "abc", ExpiresAt: time.Now().Add(10 * time.Minute)}
	assert.True(t, valid.IsValid())
}

func TestRedisTokenCacheRequiresClient(t *testing.T) {
	cache := auth.NewRedisTokenCache(nil)
	ctx := context.Background()

	_, err := cache.GetToken(ctx)
	assert.Error(t, err)

	err = cache.SetToken(ctx, "abc", 3600)
	assert.Error(t, err)
}

// TestRedisTokenCacheIntegration tests the cache against a real Redis container
func TestRedisTokenCacheIntegration(t *testing.T) {
	// Skip if short test mode
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	// Start a Redis container
	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port.Port(),
		Password: "",
		DB:       0,
	})
	cache := auth.NewRedisTokenCache(client)

	// Empty cache reads back as a miss, not an error
	token, err := cache.GetToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)

	// Store a token that outlives the expiry buffer
	err = cache.SetToken(ctx, "relay-token", 3600)
	require.NoError(t, err)

	token, err = cache.GetToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "relay-token", token.Token)

	// A token already inside the buffer is treated as a miss
	err = cache.SetToken(ctx, "stale-token", 30)
	require.NoError(t, err)

	token, err = cache.GetToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)
}
