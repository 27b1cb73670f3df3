// Package config loads OpsRelay's environment-driven configuration.
// Unlike the agent/chain/MCP registries this codebase's ancestor used,
// OpsRelay has no YAML-configured pipelines: every tunable named in the
// external interface contract is a single environment variable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full process configuration, loaded once at startup.
type Config struct {
	DatabaseURL string `validate:"required"`
	RedisURL    string

	HTTPPort int `validate:"min=1,max=65535"`

	MLServiceURL string

	WebhookSecretDatadog   string
	WebhookSecretSentry    string
	WebhookSecretPagerDuty string
	SkipSignatureVerify    bool

	OpenAIAPIKey    string
	OpenAIChatModel string

	RAG RAGConfig `validate:"required"`

	Queue QueueConfig `validate:"required"`

	Retention RetentionConfig `validate:"required"`
}

// RetentionConfig controls the cleanup service's sweep of terminal
// work_items rows, the only unbounded-growth table OpsRelay writes
// (spec §9's audit-log-growth design note): incidents, alerts and
// audit actions are the system's record of truth and are kept
// indefinitely, but a claimed-and-finished queue row has no further
// purpose once its retention window passes.
type RetentionConfig struct {
	WorkItemRetention time.Duration `validate:"required"`
	SweepInterval     time.Duration `validate:"required"`
}

// DefaultRetentionConfig mirrors the teacher's retention defaults,
// scaled to OpsRelay's much shorter-lived work_items rows.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		WorkItemRetention: 7 * 24 * time.Hour,
		SweepInterval:     1 * time.Hour,
	}
}

// RAGConfig holds the hybrid-retrieval weights and thresholds named in
// spec §6: RAG_VECTOR_WEIGHT, RAG_KEYWORD_WEIGHT, RAG_MIN_SCORE,
// RAG_MIN_KEYWORD_OVERLAP, RAG_RERANK_TITLE_BOOST, RAG_RERANK_PHRASE_BOOST.
type RAGConfig struct {
	VectorWeight       float64 `validate:"gte=0,lte=1"`
	KeywordWeight      float64 `validate:"gte=0,lte=1"`
	MinScore           float64 `validate:"gte=0,lte=1"`
	MinKeywordOverlap  float64 `validate:"gte=0,lte=1"`
	RerankTitleBoost   float64 `validate:"gte=0,lte=1"`
	RerankPhraseBoost  float64 `validate:"gte=0,lte=1"`
}

// QueueConfig controls the Processor's worker pool, mirroring the shape
// (if not the YAML tags) of the teacher's queue configuration.
type QueueConfig struct {
	WorkerCount        int           `validate:"min=1"`
	PollInterval       time.Duration `validate:"required"`
	PollIntervalJitter time.Duration
	TaskTimeout        time.Duration `validate:"required"`
	MaxAttempts        int           `validate:"min=1"`
}

// DefaultQueueConfig mirrors the Processor's contract in spec §4.5/§5:
// 5-minute overall task timeout, exponential backoff up to 3 attempts.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount:        5,
		PollInterval:       1 * time.Second,
		PollIntervalJitter: 250 * time.Millisecond,
		TaskTimeout:        5 * time.Minute,
		MaxAttempts:        3,
	}
}

// LoadFromEnv loads and validates configuration from the environment,
// following the teacher's LoadConfigFromEnv/Validate idiom.
func LoadFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("HTTP_PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}

	cfg := Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		HTTPPort:               port,
		MLServiceURL:           os.Getenv("ML_SERVICE_URL"),
		WebhookSecretDatadog:   os.Getenv("WEBHOOK_SECRET_DATADOG"),
		WebhookSecretSentry:    os.Getenv("WEBHOOK_SECRET_SENTRY"),
		WebhookSecretPagerDuty: os.Getenv("WEBHOOK_SECRET_PAGERDUTY"),
		SkipSignatureVerify:    getEnvOrDefault("SKIP_SIGNATURE_VERIFICATION", "false") == "true",
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
		OpenAIChatModel:        getEnvOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		Queue:                  DefaultQueueConfig(),
		Retention:              DefaultRetentionConfig(),
	}

	if raw := os.Getenv("WORK_ITEM_RETENTION"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid WORK_ITEM_RETENTION: %w", err)
		}
		cfg.Retention.WorkItemRetention = d
	}
	if raw := os.Getenv("RETENTION_SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETENTION_SWEEP_INTERVAL: %w", err)
		}
		cfg.Retention.SweepInterval = d
	}

	cfg.RAG, err = loadRAGFromEnv()
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadRAGFromEnv() (RAGConfig, error) {
	fields := map[string]*float64{}
	r := RAGConfig{}
	fields["RAG_VECTOR_WEIGHT"] = &r.VectorWeight
	fields["RAG_KEYWORD_WEIGHT"] = &r.KeywordWeight
	fields["RAG_MIN_SCORE"] = &r.MinScore
	fields["RAG_MIN_KEYWORD_OVERLAP"] = &r.MinKeywordOverlap
	fields["RAG_RERANK_TITLE_BOOST"] = &r.RerankTitleBoost
	fields["RAG_RERANK_PHRASE_BOOST"] = &r.RerankPhraseBoost

	defaults := map[string]float64{
		"RAG_VECTOR_WEIGHT":       0.7,
		"RAG_KEYWORD_WEIGHT":      0.3,
		"RAG_MIN_SCORE":           0.1,
		"RAG_MIN_KEYWORD_OVERLAP": 0.05,
		"RAG_RERANK_TITLE_BOOST":  0.08,
		"RAG_RERANK_PHRASE_BOOST": 0.05,
	}

	for key, dest := range fields {
		raw := os.Getenv(key)
		if raw == "" {
			*dest = defaults[key]
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return RAGConfig{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dest = v
	}
	return r, nil
}

// Validate runs struct-tag validation over the whole config, the same
// escape-hatch the teacher's agent/chain validator leans on, scaled down
// to OpsRelay's much smaller surface.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
