package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	StateBackend   string // memory | mysql | postgres
	MySQLDSN       string // required when StateBackend=mysql
	PostgresURL    string // required when StateBackend=postgres
	FixturesPath   string // memory backend only
	RunMigrations  bool
	MigrationsDir  string
	IdempotencyTTL time.Duration

	Redis     RedisConfig
	Kafka     KafkaConfig
	Extract   ExtractConfig
	Messaging MessagingConfig
	Ingest    IngestConfig

	PlatformWebhookToken string
	JWTPublicKeyPEM      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// DedupeTTL bounds how long a conversational message id is remembered.
	DedupeTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ExtractConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type MessagingConfig struct {
	APIBase       string
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
}

type IngestConfig struct {
	DefaultCategory string
	DefaultCurrency string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Env:            strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		Port:           strings.TrimSpace(v.GetString("port")),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		StateBackend:   strings.ToLower(strings.TrimSpace(v.GetString("state_backend"))),
		MySQLDSN:       strings.TrimSpace(v.GetString("db_dsn")),
		PostgresURL:    strings.TrimSpace(v.GetString("database_url")),
		FixturesPath:   strings.TrimSpace(v.GetString("state_fixtures_path")),
		RunMigrations:  v.GetBool("run_migrations"),
		MigrationsDir:  strings.TrimSpace(v.GetString("migrations_dir")),
		IdempotencyTTL: v.GetDuration("idempotency_ttl"),
		Redis: RedisConfig{
			Addr:      strings.TrimSpace(v.GetString("redis_addr")),
			Password:  v.GetString("redis_password"),
			DB:        v.GetInt("redis_db"),
			DedupeTTL: v.GetDuration("message_dedupe_ttl"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
			Topic:   strings.TrimSpace(v.GetString("kafka_topic")),
		},
		Extract: ExtractConfig{
			Endpoint: strings.TrimRight(strings.TrimSpace(v.GetString("extract_endpoint")), "/"),
			APIKey:   strings.TrimSpace(v.GetString("extract_api_key")),
			Model:    strings.TrimSpace(v.GetString("extract_model")),
			Timeout:  v.GetDuration("extract_timeout"),
		},
		Messaging: MessagingConfig{
			APIBase:       strings.TrimRight(strings.TrimSpace(v.GetString("messaging_api_base")), "/"),
			PhoneNumberID: strings.TrimSpace(v.GetString("messaging_phone_number_id")),
			AccessToken:   strings.TrimSpace(v.GetString("messaging_access_token")),
			VerifyToken:   strings.TrimSpace(v.GetString("messaging_verify_token")),
		},
		Ingest: IngestConfig{
			DefaultCategory: strings.TrimSpace(v.GetString("ingest_default_category")),
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(v.GetString("ingest_default_currency"))),
		},
		PlatformWebhookToken: strings.TrimSpace(v.GetString("webhook_platform_token")),
		JWTPublicKeyPEM:      strings.TrimSpace(v.GetString("jwt_public_key_pem")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("state_backend", "memory")
	v.SetDefault("db_dsn", "")
	v.SetDefault("database_url", "")
	v.SetDefault("state_fixtures_path", "")
	v.SetDefault("run_migrations", false)
	v.SetDefault("migrations_dir", "migrations")
	v.SetDefault("idempotency_ttl", 24*time.Hour)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("message_dedupe_ttl", 72*time.Hour)

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "listing-events")

	v.SetDefault("extract_endpoint", "https://api.openai.com/v1")
	v.SetDefault("extract_api_key", "")
	v.SetDefault("extract_model", "gpt-4o-mini")
	v.SetDefault("extract_timeout", 20*time.Second)

	v.SetDefault("messaging_api_base", "https://graph.facebook.com/v19.0")
	v.SetDefault("messaging_phone_number_id", "")
	v.SetDefault("messaging_access_token", "")
	v.SetDefault("messaging_verify_token", "")

	v.SetDefault("ingest_default_category", "general")
	v.SetDefault("ingest_default_currency", "USD")

	v.SetDefault("webhook_platform_token", "")
	v.SetDefault("jwt_public_key_pem", "")
}

func (c Config) Validate() error {
	switch c.StateBackend {
	case "memory":
	case "mysql":
		if c.MySQLDSN == "" {
			return fmt.Errorf("DB_DSN is required when STATE_BACKEND=mysql")
		}
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STATE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q (use memory, mysql or postgres)", c.StateBackend)
	}

	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func (c Config) IsDev() bool {
	switch c.Env {
	case "", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
