// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Index, Retrieval, Search, LTR, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Search    SearchConfig    `yaml:"search"`
	LTR       LTRConfig       `yaml:"ltr"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the sustained requests per second allowed per client;
	// zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters. The run store is
// only opened when Enabled is set.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
}

// IndexConfig locates the segment directory and the optional JSON-lines
// document source used by the indexer.
type IndexConfig struct {
	DataDir       string        `yaml:"dataDir"`
	DocumentsFile string        `yaml:"documentsFile"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// RetrievalConfig selects the retrieval model and its parameters.
type RetrievalConfig struct {
	Algorithm string         `yaml:"algorithm"`
	BM25      BM25Config     `yaml:"bm25"`
	Indri     IndriConfig    `yaml:"indri"`
	Feedback  FeedbackConfig `yaml:"feedback"`
}

type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
	K3 float64 `yaml:"k3"`
}

type IndriConfig struct {
	Mu     float64 `yaml:"mu"`
	Lambda float64 `yaml:"lambda"`
}

// FeedbackConfig controls pseudo-relevance feedback. When
// InitialRankingFile is empty the initial ranking is computed.
type FeedbackConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Docs               int     `yaml:"docs"`
	Terms              int     `yaml:"terms"`
	Mu                 float64 `yaml:"mu"`
	OrigWeight         float64 `yaml:"origWeight"`
	InitialRankingFile string  `yaml:"initialRankingFile"`
	ExpansionQueryFile string  `yaml:"expansionQueryFile"`
}

// SearchConfig controls batch runs and query execution limits.
type SearchConfig struct {
	QueryFile          string        `yaml:"queryFile"`
	OutputPath         string        `yaml:"outputPath"`
	RunID              string        `yaml:"runId"`
	MaxResults         int           `yaml:"maxResults"`
	Concurrency        int           `yaml:"concurrency"`
	Timeout            time.Duration `yaml:"timeout"`
	SkipInvalidQueries bool          `yaml:"skipInvalidQueries"`
}

// LTRConfig controls learning-to-rank feature extraction and the external
// ranking toolkit.
type LTRConfig struct {
	Enabled          bool    `yaml:"enabled"`
	TrainingQueries  string  `yaml:"trainingQueries"`
	TrainingQrels    string  `yaml:"trainingQrels"`
	TrainFeatureFile string  `yaml:"trainFeatureFile"`
	TestFeatureFile  string  `yaml:"testFeatureFile"`
	ModelFile        string  `yaml:"modelFile"`
	ScoreFile        string  `yaml:"scoreFile"`
	LearnPath        string  `yaml:"learnPath"`
	ClassifyPath     string  `yaml:"classifyPath"`
	C                float64 `yaml:"c"`
	PageRankFile     string  `yaml:"pageRankFile"`
	FeatureDisable   []int   `yaml:"featureDisable"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "qryeval",
			User:            "qryeval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "indexer-group",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
			},
		},
		Index: IndexConfig{
			DataDir:       "data/index",
			FlushInterval: 30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Algorithm: "BM25",
			BM25:      BM25Config{K1: 1.2, B: 0.75, K3: 0},
			Indri:     IndriConfig{Mu: 2500, Lambda: 0.4},
			Feedback: FeedbackConfig{
				Docs:       10,
				Terms:      10,
				Mu:         0,
				OrigWeight: 0.5,
			},
		},
		Search: SearchConfig{
			RunID:       "run-1",
			MaxResults:  100,
			Concurrency: 4,
			Timeout:     30 * time.Second,
		},
		LTR: LTRConfig{
			C: 0.001,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks the settings every entry point depends on. A failure is
// fatal at startup.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Retrieval.Algorithm) {
	case "unrankedboolean", "rankedboolean", "bm25", "indri":
	default:
		return invalid("retrieval.algorithm %q is not a known retrieval model", c.Retrieval.Algorithm)
	}
	if c.Retrieval.BM25.K1 < 0 || c.Retrieval.BM25.K3 < 0 {
		return invalid("retrieval.bm25 k1 and k3 must be >= 0")
	}
	if c.Retrieval.BM25.B < 0 || c.Retrieval.BM25.B > 1 {
		return invalid("retrieval.bm25.b must be in [0, 1]")
	}
	if c.Retrieval.Indri.Mu < 0 {
		return invalid("retrieval.indri.mu must be >= 0")
	}
	if c.Retrieval.Indri.Lambda < 0 || c.Retrieval.Indri.Lambda > 1 {
		return invalid("retrieval.indri.lambda must be in [0, 1]")
	}
	if fb := c.Retrieval.Feedback; fb.Enabled {
		if fb.Docs <= 0 || fb.Terms <= 0 {
			return invalid("retrieval.feedback docs and terms must be > 0")
		}
		if fb.Mu < 0 {
			return invalid("retrieval.feedback.mu must be >= 0")
		}
		if fb.OrigWeight < 0 || fb.OrigWeight > 1 {
			return invalid("retrieval.feedback.origWeight must be in [0, 1]")
		}
	}
	if c.Search.MaxResults <= 0 {
		return invalid("search.maxResults must be > 0")
	}
	if c.Search.Concurrency <= 0 {
		return invalid("search.concurrency must be > 0")
	}
	if c.Index.DataDir == "" {
		return invalid("index.dataDir is required")
	}
	return nil
}

// ValidateBatch additionally checks the settings of a batch evaluation run.
func (c *Config) ValidateBatch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Search.QueryFile == "" {
		return invalid("search.queryFile is required")
	}
	if c.Search.OutputPath == "" {
		return invalid("search.outputPath is required")
	}
	if c.LTR.Enabled && (c.LTR.TrainingQueries == "" || c.LTR.TrainingQrels == "") {
		return invalid("ltr.trainingQueries and ltr.trainingQrels are required when ltr is enabled")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit = limit
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateBurst = burst
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_INDEX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("SP_RETRIEVAL_ALGORITHM"); v != "" {
		cfg.Retrieval.Algorithm = v
	}
	if v := os.Getenv("SP_SEARCH_QUERY_FILE"); v != "" {
		cfg.Search.QueryFile = v
	}
	if v := os.Getenv("SP_SEARCH_OUTPUT_PATH"); v != "" {
		cfg.Search.OutputPath = v
	}
	if v := os.Getenv("SP_SEARCH_RUN_ID"); v != "" {
		cfg.Search.RunID = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
