package main

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/extraction-indexer/internal/config"
)

func TestRunReturnsBootstrapError(t *testing.T) {
	cfg := config.Default()
	cfg.SearchBackend = "solr"
	cfg.WorkerMetricsPort = "0"

	err := run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "bootstrap") {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
}
