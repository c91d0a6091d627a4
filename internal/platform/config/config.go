package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	DatabaseURL    string
	JWTSigningKey  string
	AdminTokenHash string
	LogLevel       string
	TxTimeout      time.Duration
	Redis          RedisConfig
	Kafka          KafkaConfig
	Ledger         LedgerConfig
	Verifier       VerifierConfig
	Telemetry      TelemetryConfig
}

// RedisConfig configures the idempotency cache. An empty URL keeps it in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the settlement event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LedgerConfig names the accounts and currency the settlement engine runs with.
type LedgerConfig struct {
	MinPremium    uint64
	PoolAsset     string
	VaultAccount  string
	EngineAccount string
	AdminAccount  string
}

// VerifierConfig selects the attestation verifier installed at startup.
type VerifierConfig struct {
	URL        string
	Ed25519Key string
}

// TelemetryConfig configures trace export. No endpoint keeps spans in process.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
}

// IdempotencyTTL bounds how long a submitted attestation key is remembered.
var IdempotencyTTL = 24 * time.Hour

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:           getEnv("DERISK_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSigningKey:  os.Getenv("JWT_SIGNING_KEY"),
		AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		TxTimeout:      5 * time.Second,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: getEnv("KAFKA_TOPIC", "derisk.settlement"),
		},
		Ledger: LedgerConfig{
			MinPremium:    1,
			PoolAsset:     getEnv("POOL_ASSET", "usdc"),
			VaultAccount:  getEnv("VAULT_ACCOUNT", "vault"),
			EngineAccount: getEnv("ENGINE_ACCOUNT", "policy-engine"),
			AdminAccount:  getEnv("ADMIN_ACCOUNT", "operator"),
		},
		Verifier: VerifierConfig{
			URL:        os.Getenv("VERIFIER_URL"),
			Ed25519Key: os.Getenv("VERIFIER_ED25519_KEY"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "derisk"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
			SampleRatio:  1,
		},
	}

	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	if raw := os.Getenv("MIN_PREMIUM"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Server{}, fmt.Errorf("MIN_PREMIUM: %w", err)
		}
		cfg.Ledger.MinPremium = v
	}
	if raw := os.Getenv("TX_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Server{}, fmt.Errorf("TX_TIMEOUT: %w", err)
		}
		cfg.TxTimeout = d
	}
	if raw := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 || r > 1 {
			return Server{}, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be a ratio in [0,1]")
		}
		cfg.Telemetry.SampleRatio = r
	}
	if cfg.Verifier.URL != "" && cfg.Verifier.Ed25519Key != "" {
		return Server{}, fmt.Errorf("VERIFIER_URL and VERIFIER_ED25519_KEY are mutually exclusive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
