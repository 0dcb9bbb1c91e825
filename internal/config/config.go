package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Chain    ChainConfig
	Registry RegistryConfig
	Ledger   LedgerConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers  []string
	Topics   TopicConfig
	MockMode bool
	Enabled  bool
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type TopicConfig struct {
	EventFacts    string
	CheckInFacts  string
	BalanceFacts  string
	TransferFacts string
}

// AuthConfig covers both inbound identity (OIDC issuer for API callers)
// and outbound identity (client credentials for the custody relay).
type AuthConfig struct {
	OIDCIssuer    string
	KeycloakURL   string
	KeycloakRealm string
	ClientID      string
	ClientSecret  string
}

// ChainConfig points at the RPC node and the deployed reward contracts.
// MockMode swaps the relay minter and vault for in-process fakes so the
// services run without a node or relay.
type ChainConfig struct {
	RPCURL         string
	RelayURL       string
	CustodyAddress string
	StubsContract  string
	PointsContract string
	MockMode       bool
}

type RegistryConfig struct {
	Owner    string
	QRSecret string
}

type LedgerConfig struct {
	Owner string
}

func Load() *Config {
	kafkaEnabled := getEnvBool("KAFKA_ENABLED", true)
	kafkaMock := getEnvBool("KAFKA_MOCK_MODE", false)

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "irl_user"),
			Password:     getEnv("DB_PASSWORD", "irl_pass"),
			Database:     getEnv("DB_NAME", "irl_protocol"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled:  kafkaEnabled,
			MockMode: kafkaMock,
			Topics: TopicConfig{
				EventFacts:    getEnv("KAFKA_TOPIC_EVENTS", "irl.event.facts"),
				CheckInFacts:  getEnv("KAFKA_TOPIC_CHECKINS", "irl.checkin.facts"),
				BalanceFacts:  getEnv("KAFKA_TOPIC_BALANCES", "irl.balance.facts"),
				TransferFacts: getEnv("KAFKA_TOPIC_TRANSFERS", "irl.transfer.facts"),
			},
		},
		Auth: AuthConfig{
			OIDCIssuer:    getEnv("OIDC_ISSUER", ""),
			KeycloakURL:   getEnv("KEYCLOAK_URL", "http://localhost:8081"),
			KeycloakRealm: getEnv("KEYCLOAK_REALM", "irl-protocol"),
			ClientID:      getEnv("KEYCLOAK_CLIENT_ID", "irl-services"),
			ClientSecret:  getEnv("KEYCLOAK_CLIENT_SECRET", ""),
		},
		Chain: ChainConfig{
			RPCURL:         getEnv("CHAIN_RPC_URL", "http://localhost:8545"),
			RelayURL:       getEnv("RELAY_URL", "http://localhost:9090"),
			CustodyAddress: getEnv("CUSTODY_ADDRESS", ""),
			StubsContract:  getEnv("STUBS_CONTRACT", ""),
			PointsContract: getEnv("POINTS_CONTRACT", ""),
			MockMode:       getEnvBool("CHAIN_MOCK_MODE", false),
		},
		Registry: RegistryConfig{
			Owner:    getEnv("REGISTRY_OWNER", ""),
			QRSecret: getEnv("QR_SECRET", "irl-receipt-secret"),
		},
		Ledger: LedgerConfig{
			Owner: getEnv("LEDGER_OWNER", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
