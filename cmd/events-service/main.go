package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/hurley87/irl-protocol/internal/analytics"
	analytics_api "github.com/hurley87/irl-protocol/internal/analytics/api"
	"github.com/hurley87/irl-protocol/internal/auth"
	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/config"
	"github.com/hurley87/irl-protocol/internal/kafka"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/minter"
	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/registry"
	"github.com/hurley87/irl-protocol/internal/registry/api"
	registrydb "github.com/hurley87/irl-protocol/internal/registry/db"
	"github.com/hurley87/irl-protocol/internal/registry/qr"
	"github.com/hurley87/irl-protocol/internal/sse"
)

func connectPostgres(cfg *config.Config, log *logger.Logger) *bun.DB {
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		if err = sqldb.Ping(); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("PostgreSQL connection failed: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// buildMinter selects the token mint backend. Mock mode keeps rewards
// in process; otherwise mints go through the custody relay with
// M2M tokens cached in Redis.
func buildMinter(cfg *config.Config, client *http.Client, log *logger.Logger) registry.TokenMinter {
	if cfg.Chain.MockMode {
		log.Warn("CHAIN", "Mock mode enabled, minting rewards in memory")
		return minter.NewMemoryMinter()
	}

	redisClient, err := auth.InitializeTokenCache(cfg.Redis.Addr, log)
	if err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to initialize token cache: %v", err))
	}

	tokens := auth.NewTokenSource(models.RelayConfig{
		KeycloakURL:   cfg.Auth.KeycloakURL,
		KeycloakRealm: cfg.Auth.KeycloakRealm,
		ClientID:      cfg.Auth.ClientID,
		ClientSecret:  cfg.Auth.ClientSecret,
	}, client, redisClient, log)

	stubs := parseContract(cfg.Chain.StubsContract, "STUBS_CONTRACT", log)
	points := parseContract(cfg.Chain.PointsContract, "POINTS_CONTRACT", log)

	return minter.NewRelayMinter(cfg.Chain.RelayURL, stubs, points, tokens, client, log)
}

// parseContract resolves an optional contract address. Contracts can
// start unset and be installed later through the contracts endpoint.
func parseContract(raw, name string, log *logger.Logger) common.Address {
	if raw == "" {
		log.Warn("CHAIN", fmt.Sprintf("%s not set, waiting for a contracts update", name))
		return common.Address{}
	}
	addr, err := chain.ParseAddress(raw)
	if err != nil {
		log.Fatal("CHAIN", fmt.Sprintf("Invalid %s: %v", name, err))
	}
	return addr
}

func main() {
	log := logger.NewLogger("events-service")
	defer log.Close()

	log.Info("APP", "Starting Events Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}

	owner, err := chain.ParseAddress(cfg.Registry.Owner)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("REGISTRY_OWNER is not a valid address: %v", err))
	}
	if cfg.Auth.OIDCIssuer == "" {
		log.Fatal("CONFIG", "OIDC_ISSUER not set")
	}

	bunDB := connectPostgres(cfg, log)
	defer bunDB.Close()

	kafkaMock := cfg.Kafka.MockMode || !cfg.Kafka.Enabled
	topics := kafka.Topics{
		EventFacts:    cfg.Kafka.Topics.EventFacts,
		CheckInFacts:  cfg.Kafka.Topics.CheckInFacts,
		BalanceFacts:  cfg.Kafka.Topics.BalanceFacts,
		TransferFacts: cfg.Kafka.Topics.TransferFacts,
	}
	publisher := kafka.NewPublisher(cfg.Kafka.Brokers, topics, kafkaMock, log)
	defer publisher.Close()

	if !kafkaMock {
		required := []string{topics.EventFacts, topics.CheckInFacts}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, required); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	}

	emitter := sse.NewCheckInEventEmitter()
	mintBackend := buildMinter(cfg, client, log)

	store := &registrydb.DB{Bun: bunDB}
	reg := registry.NewRegistry(owner, store, mintBackend, publisher, emitter, log)

	log.Info("APP", "Replaying registry state from PostgreSQL")
	if err := reg.Load(ctx); err != nil {
		log.Fatal("APP", fmt.Sprintf("Failed to load registry state: %v", err))
	}

	qrGen := qr.NewQRGenerator(cfg.Registry.QRSecret)
	handler := api.NewHandler(reg, qrGen, emitter, log)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(bunDB), log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handler.RegisterRoutes(r, auth.Middleware(cfg.Auth.OIDCIssuer))
	log.Info("ROUTER", "Event routes registered under /api/v1")

	analyticsHandler.RegisterRoutes(r)
	log.Info("ROUTER", "Analytics routes registered under /api/v1/analytics")

	// WriteTimeout stays zero: the SSE feeds hold their response open
	// far longer than any fixed write deadline.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Events Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Events Service shutdown complete")
	}
}
