package officiallotto

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/resilience"
)

const round1181 = `{"totSellamnt":118628811000,"returnValue":"success","drwNoDate":"2025-07-19",` +
	`"firstWinamnt":1593643500,"drwtNo6":40,"drwtNo4":25,"firstPrzwnerCo":17,"drwtNo5":33,` +
	`"bnusNo":1,"firstAccumamnt":27091939500,"drwNo":1181,"drwtNo2":7,"drwtNo3":13,"drwtNo1":2}`

func newTestClient(t *testing.T, handler http.HandlerFunc, breaker resilience.BreakerConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		HTTPClient:     srv.Client(),
		BaseURL:        srv.URL + "/common.do",
		Timeout:        200 * time.Millisecond,
		CircuitBreaker: breaker,
	})
}

func TestClient_FetchRound_Success(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("method"); got != "getLottoNumber" {
			t.Errorf("unexpected method query: %q", got)
		}
		if got := r.URL.Query().Get("drwNo"); got != "1181" {
			t.Errorf("unexpected round query: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(round1181))
	}, resilience.BreakerConfig{})

	result, found, err := client.FetchRound(context.Background(), 1181)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected round to be found")
	}
	if result.Source != draw.SourceOfficial || result.Round != 1181 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Numbers != [draw.NumbersPerDraw]int{2, 7, 13, 25, 33, 40} || result.Bonus != 1 {
		t.Fatalf("unexpected numbers: %v+%d", result.Numbers, result.Bonus)
	}
	if got := result.Date.Format(time.DateOnly); got != "2025-07-19" {
		t.Fatalf("unexpected date: %s", got)
	}
	if result.Prize == nil || result.Prize.FirstPrizeWinners != 17 || result.Prize.TotalSales != 118628811000 {
		t.Fatalf("unexpected prize metadata: %+v", result.Prize)
	}
}

func TestClient_FetchRound_NotPublishedIsAbsence(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"returnValue":"fail"}`))
	}, resilience.BreakerConfig{})

	_, found, err := client.FetchRound(context.Background(), 1182)
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if found {
		t.Fatalf("expected absence")
	}
}

func TestClient_FetchRound_InvalidRowIsAbsence(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"returnValue":"success","drwNo":1181,"drwtNo1":2,"drwtNo2":2,` +
			`"drwtNo3":13,"drwtNo4":25,"drwtNo5":33,"drwtNo6":40,"bnusNo":1}`))
	}, resilience.BreakerConfig{})

	_, found, err := client.FetchRound(context.Background(), 1181)
	if err != nil || found {
		t.Fatalf("expected silent absence, got found=%v err=%v", found, err)
	}
}

func TestClient_FetchRound_FailuresAreDistinctFromAbsence(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		},
		"garbled body": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>blocked</html>`))
		},
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		},
	}

	for name, handler := range cases {
		handler := handler
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, handler, resilience.BreakerConfig{})

			_, found, err := client.FetchRound(context.Background(), 1181)
			if found {
				t.Fatalf("failure reported as found")
			}
			if !crerr.Is(err, draw.ErrSourceUnavailable) {
				t.Fatalf("expected ErrSourceUnavailable, got %v", err)
			}
		})
	}
}

func TestClient_FetchRound_BreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, resilience.BreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeout: time.Minute})

	for i := 0; i < 4; i++ {
		_, _, err := client.FetchRound(context.Background(), 1181)
		if !crerr.Is(err, draw.ErrSourceUnavailable) {
			t.Fatalf("call %d: expected ErrSourceUnavailable, got %v", i, err)
		}
	}

	if got := hits.Load(); got != 2 {
		t.Fatalf("expected breaker to stop upstream calls after 2 failures, got %d hits", got)
	}
	if snap := client.BreakerSnapshot(); snap.State != resilience.CircuitStateOpen || snap.Name != "official" {
		t.Fatalf("unexpected breaker snapshot: %+v", snap)
	}
}

func TestClient_FetchRound_AbsenceDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"returnValue":"fail"}`))
	}, resilience.BreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if _, _, err := client.FetchRound(context.Background(), 1190); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if state := client.BreakerSnapshot().State; state != resilience.CircuitStateClosed {
		t.Fatalf("absence tripped the breaker: %s", state)
	}
}
