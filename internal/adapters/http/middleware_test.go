package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/extraction-indexer/internal/observability/metrics"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := NewRouter(&indexerFake{}, &storeFake{}, RouterOptions{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	}).Handler()

	first := serve(handler, http.MethodPost, "/v1/indices/pages/search", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", first.Code)
	}

	second := serve(handler, http.MethodPost, "/v1/indices/pages/search", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", second.Header().Get("Retry-After"))
	}

	if probe := serve(handler, http.MethodGet, "/healthz", nil); probe.Code != http.StatusOK {
		t.Fatalf("probes must bypass the limiter, got %d", probe.Code)
	}
}

func TestRateLimitIsCounted(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("indexer-api")
	handler := NewRouter(&indexerFake{}, &storeFake{}, RouterOptions{
		Metrics:        m,
		RateLimitRPS:   0.5,
		RateLimitBurst: 1,
	}).Handler()

	serve(handler, http.MethodPost, "/v1/indices/pages/search", nil)
	limited := serve(handler, http.MethodPost, "/v1/indices/pages/search", nil)
	if limited.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected Retry-After 2, got %q", limited.Header().Get("Retry-After"))
	}

	scrape := serve(handler, http.MethodGet, "/metrics", nil)
	want := `indexer_http_rate_limited_total{path="/v1/indices/{index}/search",service="indexer-api"} 1`
	if !strings.Contains(scrape.Body.String(), want) {
		t.Fatalf("expected %q in metrics:\n%s", want, scrape.Body.String())
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	handler := NewRouter(&indexerFake{}, &storeFake{}, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	generated := serve(handler, http.MethodGet, "/healthz", nil)
	if generated.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestStatusRecorderTracksWritesAndFlushes(t *testing.T) {
	underlying := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: underlying, statusCode: http.StatusOK}

	recorder.WriteHeader(http.StatusAccepted)
	_, _ = recorder.Write([]byte("hello"))
	recorder.Flush()

	if recorder.statusCode != http.StatusAccepted || recorder.bytesWritten != 5 {
		t.Fatalf("unexpected recorder state: status=%d bytes=%d", recorder.statusCode, recorder.bytesWritten)
	}
	if !underlying.Flushed {
		t.Fatalf("expected flush to reach the underlying writer")
	}
	if _, ok := any(recorder).(http.Hijacker); ok {
		t.Fatalf("status recorder must not advertise hijacking")
	}
}
