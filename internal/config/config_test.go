package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var configEnvKeys = []string{
	configFileEnv, "API_PORT", "LOG_LEVEL", "SEARCH_BACKEND", "ELASTICSEARCH_URL",
	"ELASTICSEARCH_USERNAME", "ELASTICSEARCH_PASSWORD", "ELASTICSEARCH_API_KEY",
	"ELASTICSEARCH_TIMEOUT_SECONDS", "INDEX_PREFIX", "POSTGRES_DSN", "NATS_URL",
	"NATS_SUBJECT", "API_RATE_LIMIT_RPS", "API_RATE_LIMIT_BURST", "API_MAX_BODY_BYTES",
	"BREAKER_ENABLED", "WORKER_METRICS_PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SearchBackend != BackendElasticsearch || cfg.ElasticsearchURL != "http://elasticsearch:9200" {
		t.Fatalf("unexpected backend defaults: %+v", cfg)
	}
	if cfg.NATSSubject != "extraction.completed" || !cfg.BreakerEnabled || cfg.APIPort != "8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JournalEnabled() {
		t.Fatalf("journal must be disabled without POSTGRES_DSN")
	}
	if cfg.ElasticsearchTimeoutS != 0 {
		t.Fatalf("expected no elasticsearch timeout by default, got %d", cfg.ElasticsearchTimeoutS)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ELASTICSEARCH_URL", "http://es-1:9200, http://es-2:9200")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("API_RATE_LIMIT_BURST", "5")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/indexer")
	t.Setenv("INDEX_PREFIX", "staging_")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	addrs := cfg.ElasticsearchAddresses()
	if len(addrs) != 2 || addrs[1] != "http://es-2:9200" {
		t.Fatalf("unexpected addresses: %v", addrs)
	}
	if cfg.APIRateLimitRPS != 2.5 || cfg.APIRateLimitBurst != 5 {
		t.Fatalf("unexpected rate limit: %v/%d", cfg.APIRateLimitRPS, cfg.APIRateLimitBurst)
	}
	if cfg.BreakerEnabled || !cfg.JournalEnabled() || cfg.IndexPrefix != "staging_" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	content := "search_backend: memory\nnats_subject: custom.subject\napi_port: \"9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configFileEnv, path)
	t.Setenv("API_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SearchBackend != BackendMemory || cfg.NATSSubject != "custom.subject" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.APIPort != "9100" {
		t.Fatalf("expected env to win over file, got %s", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default for keys missing from file, got %q", cfg.LogLevel)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.SearchBackend = "solr"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "search_backend") {
		t.Fatalf("expected backend error, got %v", err)
	}

	cfg = Default()
	cfg.ElasticsearchURL = " , "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty elasticsearch url")
	}

	cfg = Default()
	cfg.SearchBackend = BackendMemory
	cfg.ElasticsearchURL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory backend needs no url, got %v", err)
	}
}
