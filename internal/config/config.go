package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"

	configFileEnv = "INDEXER_CONFIG_FILE"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	SearchBackend         string `yaml:"search_backend"`
	ElasticsearchURL      string `yaml:"elasticsearch_url"`
	ElasticsearchUsername string `yaml:"elasticsearch_username"`
	ElasticsearchPassword string `yaml:"elasticsearch_password"`
	ElasticsearchAPIKey   string `yaml:"elasticsearch_api_key"`
	ElasticsearchTimeoutS int    `yaml:"elasticsearch_timeout_seconds"`
	IndexPrefix           string `yaml:"index_prefix"`

	PostgresDSN string `yaml:"postgres_dsn"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	APIRateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst int     `yaml:"api_rate_limit_burst"`
	APIMaxBodyBytes   int64   `yaml:"api_max_body_bytes"`

	BreakerEnabled bool `yaml:"breaker_enabled"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

func Default() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		SearchBackend:    BackendElasticsearch,
		ElasticsearchURL: "http://elasticsearch:9200",

		NATSURL:     "nats://localhost:4222",
		NATSSubject: "extraction.completed",

		APIMaxBodyBytes: 32 << 20,
		BreakerEnabled:  true,

		WorkerMetricsPort: "9090",
	}
}

// Load layers defaults, the optional YAML file named by INDEXER_CONFIG_FILE
// and environment variables, in that order of increasing precedence.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	// Decoding over the defaults keeps every key the file leaves out.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.APIPort = mustEnv("API_PORT", c.APIPort)
	c.LogLevel = mustEnv("LOG_LEVEL", c.LogLevel)

	c.SearchBackend = mustEnv("SEARCH_BACKEND", c.SearchBackend)
	c.ElasticsearchURL = mustEnv("ELASTICSEARCH_URL", c.ElasticsearchURL)
	c.ElasticsearchUsername = mustEnv("ELASTICSEARCH_USERNAME", c.ElasticsearchUsername)
	c.ElasticsearchPassword = mustEnv("ELASTICSEARCH_PASSWORD", c.ElasticsearchPassword)
	c.ElasticsearchAPIKey = mustEnv("ELASTICSEARCH_API_KEY", c.ElasticsearchAPIKey)
	c.ElasticsearchTimeoutS = mustEnvInt("ELASTICSEARCH_TIMEOUT_SECONDS", c.ElasticsearchTimeoutS)
	c.IndexPrefix = mustEnv("INDEX_PREFIX", c.IndexPrefix)

	c.PostgresDSN = mustEnv("POSTGRES_DSN", c.PostgresDSN)

	c.NATSURL = mustEnv("NATS_URL", c.NATSURL)
	c.NATSSubject = mustEnv("NATS_SUBJECT", c.NATSSubject)

	c.APIRateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", c.APIRateLimitRPS)
	c.APIRateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", c.APIRateLimitBurst)
	c.APIMaxBodyBytes = int64(mustEnvInt("API_MAX_BODY_BYTES", int(c.APIMaxBodyBytes)))

	c.BreakerEnabled = mustEnvBool("BREAKER_ENABLED", c.BreakerEnabled)

	c.WorkerMetricsPort = mustEnv("WORKER_METRICS_PORT", c.WorkerMetricsPort)
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.SearchBackend) {
	case BackendElasticsearch:
		if len(c.ElasticsearchAddresses()) == 0 {
			errs = append(errs, errors.New("elasticsearch_url is required for the elasticsearch backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("search_backend must be %q or %q, got %q", BackendElasticsearch, BackendMemory, c.SearchBackend))
	}
	if c.APIRateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("api_rate_limit_rps must be non-negative, got %v", c.APIRateLimitRPS))
	}
	if c.APIRateLimitBurst < 0 {
		errs = append(errs, fmt.Errorf("api_rate_limit_burst must be non-negative, got %d", c.APIRateLimitBurst))
	}
	return errors.Join(errs...)
}

// ElasticsearchAddresses splits ELASTICSEARCH_URL on commas.
func (c Config) ElasticsearchAddresses() []string {
	out := make([]string, 0, 1)
	for _, part := range strings.Split(c.ElasticsearchURL, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func (c Config) JournalEnabled() bool {
	return strings.TrimSpace(c.PostgresDSN) != ""
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
