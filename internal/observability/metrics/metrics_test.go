package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSwapSplitsOutcomes(t *testing.T) {
	ObserveSwap("sell", true, "QUOTE_FAILED", time.Second)
	ObserveSwap("sell", false, "QUOTE_FAILED", time.Second)
	ObserveSwap("sell", false, "QUOTE_FAILED", time.Second)

	if got := testutil.ToFloat64(swaps.WithLabelValues("sell", "succeeded", "")); got != 1 {
		t.Fatalf("succeeded = %v", got)
	}
	if got := testutil.ToFloat64(swaps.WithLabelValues("sell", "failed", "QUOTE_FAILED")); got != 2 {
		t.Fatalf("failed = %v", got)
	}
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	ObserveHTTPRequest("/api/v1/quote", http.MethodGet, http.StatusBadGateway, 20*time.Millisecond)
	ObserveTask("succeeded")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`openswap_http_requests_total{code="502",handler="/api/v1/quote",method="GET"} 1`,
		`openswap_http_request_errors_total{handler="/api/v1/quote",method="GET"} 1`,
		`openswap_task_transitions_total{status="succeeded"}`,
		`openswap_http_request_duration_seconds_bucket`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
