package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRouteObserverRecordsRoutingOutcome(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	obs := m.RouteObserver("api")

	obs.ObserveRoute("ARTICLE_LOOKUP", "exact", false, false, 2, 10*time.Millisecond)
	obs.ObserveRoute("RECITAL_LOOKUP", "semantic", true, false, 3, time.Millisecond)
	obs.ObserveRoute("GENERAL", "semantic", false, true, 0, time.Millisecond)

	if got := testutil.ToFloat64(m.routeTotal.WithLabelValues("api", "ARTICLE_LOOKUP", "exact")); got != 1 {
		t.Fatalf("expected one exact route, got %v", got)
	}
	if got := testutil.ToFloat64(m.routeFallback.WithLabelValues("api", "RECITAL_LOOKUP")); got != 1 {
		t.Fatalf("expected one fallback, got %v", got)
	}
	if got := testutil.ToFloat64(m.routeDegraded.WithLabelValues("api")); got != 1 {
		t.Fatalf("expected one degraded route, got %v", got)
	}
}

func TestCorpusSwapAndChat(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordCorpusSwap("api", 42, nil)
	m.RecordCorpusSwap("api", 0, errors.New("boom"))
	m.RecordChat("api", "/v1/chat", 0)

	if got := testutil.ToFloat64(m.corpusChunks.WithLabelValues("api")); got != 42 {
		t.Fatalf("expected chunk gauge 42, got %v", got)
	}
	if got := testutil.ToFloat64(m.corpusSwaps.WithLabelValues("api", "error")); got != 1 {
		t.Fatalf("expected one failed swap, got %v", got)
	}
	if got := testutil.ToFloat64(m.chatNoContext.WithLabelValues("api", "/v1/chat")); got != 1 {
		t.Fatalf("expected one no-context chat, got %v", got)
	}
}

func TestMiddlewareNormalizesDocumentPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	h := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/abc", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `path="/v1/documents/{document_id}"`) {
		t.Fatalf("expected normalized path in exposition, got:\n%s", body)
	}
}

func TestWorkerObserveCorpus(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.ObserveCorpus("worker", map[string]int{"article": 3, "point": 5}, 2)
	m.ObservePublishFailure("worker")

	if got := testutil.ToFloat64(m.chunksTotal.WithLabelValues("worker", "point")); got != 5 {
		t.Fatalf("expected 5 point chunks, got %v", got)
	}
	if got := testutil.ToFloat64(m.warningsTotal.WithLabelValues("worker")); got != 2 {
		t.Fatalf("expected 2 warnings, got %v", got)
	}
	if got := testutil.ToFloat64(m.publishTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("expected 1 publish failure, got %v", got)
	}
}
