package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "BM25", cfg.Retrieval.Algorithm)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.InDelta(t, 2500.0, cfg.Retrieval.Indri.Mu, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
retrieval:
  algorithm: Indri
  indri:
    mu: 1000
    lambda: 0.7
  feedback:
    enabled: true
    docs: 5
search:
  queryFile: queries.txt
  outputPath: out.teIn
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Indri", cfg.Retrieval.Algorithm)
	assert.InDelta(t, 1000.0, cfg.Retrieval.Indri.Mu, 1e-9)
	assert.Equal(t, 5, cfg.Retrieval.Feedback.Docs)
	assert.Equal(t, 10, cfg.Retrieval.Feedback.Terms)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	require.NoError(t, cfg.ValidateBatch())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SP_RETRIEVAL_ALGORITHM", "RankedBoolean")
	t.Setenv("SP_SERVER_PORT", "9999")
	t.Setenv("SP_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("SP_SERVER_RATE_LIMIT", "2.5")
	t.Setenv("SP_SERVER_RATE_BURST", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "RankedBoolean", cfg.Retrieval.Algorithm)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, 7, cfg.Server.RateBurst)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown algorithm": func(c *Config) { c.Retrieval.Algorithm = "tfidf" },
		"bm25 b":            func(c *Config) { c.Retrieval.BM25.B = 1.5 },
		"indri lambda":      func(c *Config) { c.Retrieval.Indri.Lambda = -0.1 },
		"feedback weight": func(c *Config) {
			c.Retrieval.Feedback.Enabled = true
			c.Retrieval.Feedback.OrigWeight = 2
		},
		"max results": func(c *Config) { c.Search.MaxResults = 0 },
		"concurrency": func(c *Config) { c.Search.Concurrency = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidInput)
		})
	}
}

func TestValidateBatchRequiresFiles(t *testing.T) {
	cfg := defaultConfig()
	assert.ErrorIs(t, cfg.ValidateBatch(), apperrors.ErrInvalidInput)
	cfg.Search.QueryFile = "q.txt"
	assert.ErrorIs(t, cfg.ValidateBatch(), apperrors.ErrInvalidInput)
	cfg.Search.OutputPath = "out"
	assert.NoError(t, cfg.ValidateBatch())
}
