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

	"github.com/hurley87/irl-protocol/internal/auth"
	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/config"
	"github.com/hurley87/irl-protocol/internal/kafka"
	"github.com/hurley87/irl-protocol/internal/ledger"
	"github.com/hurley87/irl-protocol/internal/ledger/api"
	ledgerdb "github.com/hurley87/irl-protocol/internal/ledger/db"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/vault"
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

// buildVault selects the custody backend. Mock mode simulates the
// custody wallet in process; otherwise holdings are read from the
// chain and transfers go through the relay.
func buildVault(cfg *config.Config, custody common.Address, client *http.Client, log *logger.Logger) ledger.TokenVault {
	if cfg.Chain.MockMode {
		log.Warn("CHAIN", "Mock mode enabled, simulating the custody wallet in memory")
		return vault.NewMemoryVault()
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

	erc20, err := chain.NewERC20Caller(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatal("CHAIN", fmt.Sprintf("Failed to connect to RPC node: %v", err))
	}

	return vault.NewRelayVault(cfg.Chain.RelayURL, custody, erc20, tokens, client, log)
}

func main() {
	log := logger.NewLogger("balance-service")
	defer log.Close()

	log.Info("APP", "Starting Balance Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}

	owner, err := chain.ParseAddress(cfg.Ledger.Owner)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("LEDGER_OWNER is not a valid address: %v", err))
	}
	custody, err := chain.ParseAddress(cfg.Chain.CustodyAddress)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("CUSTODY_ADDRESS is not a valid address: %v", err))
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
		required := []string{topics.BalanceFacts, topics.TransferFacts}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, required); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	}

	vaultBackend := buildVault(cfg, custody, client, log)

	store := &ledgerdb.DB{Bun: bunDB}
	led := ledger.NewLedger(owner, custody, store, vaultBackend, publisher, log)

	log.Info("APP", "Replaying ledger state from PostgreSQL")
	if err := led.Load(ctx); err != nil {
		log.Fatal("APP", fmt.Sprintf("Failed to load ledger state: %v", err))
	}

	handler := api.NewHandler(led, log)

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
	log.Info("ROUTER", "Balance routes registered under /api/v1")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Balance Service running on %s", cfg.Server.Port))
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
		log.Info("HTTP", "Balance Service shutdown complete")
	}
}
