package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Fallback generator backends.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port       int    `env:"PORT" envDefault:"3000"`
	Env        string `env:"ENV" envDefault:"development"`
	AppVersion string `env:"APP_VERSION" envDefault:"dev"`

	DBPath string `env:"DB_PATH" envDefault:"procurement.db"`

	// Empty addresses disable the matching adapter.
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix      string        `env:"REDIS_PREFIX" envDefault:"procurement"`
	ClaimTTL         time.Duration `env:"PROPOSAL_CLAIM_TTL" envDefault:"5m"`
	QdrantHost       string        `env:"QDRANT_HOST"`
	QdrantPort       int           `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantCollection string        `env:"QDRANT_COLLECTION" envDefault:"vendor_replies"`
	EmbeddingDim     uint64        `env:"EMBEDDING_DIM" envDefault:"768"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic       string        `env:"KAFKA_TOPIC" envDefault:"procurement.proposals"`

	IMAP IMAPConfig
	Poll PollConfig

	GeminiAPIKey           string `env:"GEMINI_API_KEY"`
	GoogleCloudProject     string `env:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudLocation    string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1"`
	OracleModel            string `env:"ORACLE_MODEL" envDefault:"gemini-2.5-flash"`
	OracleFallbackModel    string `env:"ORACLE_FALLBACK_MODEL" envDefault:"gemini-2.0-flash"`
	OracleFallbackProvider string `env:"ORACLE_FALLBACK_PROVIDER" envDefault:"gemini"`
	OpenAIAPIKey           string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey        string `env:"ANTHROPIC_API_KEY"`
	EmbeddingModel         string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-004"`

	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"USD"`
}

type IMAPConfig struct {
	Host               string        `env:"IMAP_HOST"`
	Port               int           `env:"IMAP_PORT" envDefault:"993"`
	User               string        `env:"EMAIL_USER"`
	Password           string        `env:"EMAIL_PASSWORD"`
	InsecureSkipVerify bool          `env:"IMAP_INSECURE_SKIP_VERIFY" envDefault:"false"`
	ConnectTimeout     time.Duration `env:"IMAP_CONNECT_TIMEOUT" envDefault:"15s"`
	AuthTimeout        time.Duration `env:"IMAP_AUTH_TIMEOUT" envDefault:"10s"`
	CommandTimeout     time.Duration `env:"IMAP_COMMAND_TIMEOUT" envDefault:"30s"`
}

type PollConfig struct {
	Enabled    bool          `env:"POLL_ENABLED" envDefault:"true"`
	Interval   time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	StartDelay time.Duration `env:"POLL_START_DELAY" envDefault:"5s"`
	LookBack   time.Duration `env:"POLL_LOOKBACK" envDefault:"24h"`
	MarkSeen   string        `env:"POLL_MARK_SEEN" envDefault:"always"`
	LeaseTTL   time.Duration `env:"POLL_LEASE_TTL" envDefault:"2m"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.OracleFallbackProvider = strings.ToLower(strings.TrimSpace(cfg.OracleFallbackProvider))
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be in 1..65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if c.Poll.Enabled {
		if c.IMAP.Host == "" {
			errs = append(errs, errors.New("IMAP_HOST is required when POLL_ENABLED is true"))
		}
		if c.Poll.Interval <= 0 {
			errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
		}
	}
	if c.Poll.MarkSeen != "always" && c.Poll.MarkSeen != "on_success" {
		errs = append(errs, fmt.Errorf("POLL_MARK_SEEN must be always or on_success, got %q", c.Poll.MarkSeen))
	}
	if c.IMAP.ConnectTimeout <= 0 || c.IMAP.AuthTimeout <= 0 || c.IMAP.CommandTimeout <= 0 {
		errs = append(errs, errors.New("IMAP timeouts must be positive"))
	}
	if c.Poll.LookBack <= 0 {
		errs = append(errs, errors.New("POLL_LOOKBACK must be positive"))
	}
	switch c.OracleFallbackProvider {
	case ProviderGemini:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai fallback"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic fallback"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ORACLE_FALLBACK_PROVIDER %q", c.OracleFallbackProvider))
	}
	if len(c.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code, got %q", c.DefaultCurrency))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool { return c.Env == "production" }
