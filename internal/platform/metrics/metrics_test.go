package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_RecordsAndServes(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveUpstream("official", OutcomeSuccess, 120*time.Millisecond)
	m.ObserveUpstream("official", OutcomeSuccess, 80*time.Millisecond)
	m.ObserveUpstream("secondary", OutcomeError, 0)
	m.ObserveRefresh("cron", OutcomeReplaced, time.Second)
	m.SetCacheRows(map[string]int{"official": 10, "secondary": 1171}, 1181)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`lotto_feed_upstream_requests_total{outcome="success",source="official"} 2`,
		`lotto_feed_upstream_requests_total{outcome="error",source="secondary"} 1`,
		`lotto_feed_cache_latest_round 1181`,
		`lotto_feed_cache_rows{source="secondary"} 1171`,
		`lotto_feed_cache_refreshes_total{outcome="replaced",trigger="cron"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveUpstream("official", OutcomeSuccess, time.Second)
	m.ObserveRefresh("manual", OutcomeKept, time.Second)
	m.SetCacheRows(nil, 0)
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}
