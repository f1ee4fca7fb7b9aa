package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanEnv blanks every key the tests depend on so the host environment cannot leak in.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "DB_PATH", "REDIS_ADDR", "QDRANT_HOST", "KAFKA_BROKERS",
		"IMAP_HOST", "IMAP_PORT", "IMAP_CONNECT_TIMEOUT", "IMAP_AUTH_TIMEOUT", "IMAP_COMMAND_TIMEOUT",
		"POLL_ENABLED", "POLL_INTERVAL", "POLL_LOOKBACK", "POLL_MARK_SEEN",
		"ORACLE_FALLBACK_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DEFAULT_CURRENCY",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestParse_Defaults(t *testing.T) {
	cleanEnv(t)
	t.Setenv("IMAP_HOST", "imap.example.test")

	cfg, err := Parse()

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Poll.LookBack)
	assert.Equal(t, "always", cfg.Poll.MarkSeen)
	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.Equal(t, ProviderGemini, cfg.OracleFallbackProvider)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestParse_Overrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("POLL_ENABLED", "false")
	t.Setenv("PORT", "8080")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("POLL_MARK_SEEN", "on_success")
	t.Setenv("ORACLE_FALLBACK_PROVIDER", " OpenAI ")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("IMAP_COMMAND_TIMEOUT", "45s")

	cfg, err := Parse()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "on_success", cfg.Poll.MarkSeen)
	assert.Equal(t, ProviderOpenAI, cfg.OracleFallbackProvider)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, 45*time.Second, cfg.IMAP.CommandTimeout)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"polling without host":  {"POLL_ENABLED": "true"},
		"bad port":              {"POLL_ENABLED": "false", "PORT": "70000"},
		"bad mark seen policy":  {"POLL_ENABLED": "false", "POLL_MARK_SEEN": "never"},
		"unknown fallback":      {"POLL_ENABLED": "false", "ORACLE_FALLBACK_PROVIDER": "llama"},
		"anthropic without key": {"POLL_ENABLED": "false", "ORACLE_FALLBACK_PROVIDER": "anthropic"},
		"zero interval":         {"IMAP_HOST": "h", "POLL_INTERVAL": "0s"},
		"not a duration":        {"POLL_ENABLED": "false", "POLL_LOOKBACK": "yesterday"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
