package app

import (
	"bytes"
	"net/http"
	"os"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/riskibarqy/lotto-feed/internal/config"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:             config.EnvDev,
		ServiceName:        "lotto-feed",
		HTTPAddr:           ":0",
		CORSAllowedOrigins: []string{"*"},
		Schedule:           draw.DefaultSchedule(),
		MetricsEnabled:     true,
		SwaggerEnabled:     true,
	}
}

func TestNew_WiresRouter(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, target := range []string{"/healthz", "/metrics", "/openapi.yaml"} {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collectors in metrics output")
	}
}

func TestNew_MetricsDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MetricsEnabled = false
	application, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for disabled metrics, got %d", rec.Code)
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.HTTPAddr = ""
	if _, err := New(cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for empty http addr")
	}

	cfg = testConfig()
	cfg.EmergencyVerifiedFile = filepath.Join(t.TempDir(), "missing.json")
	if _, err := New(cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for missing verified file")
	}
}

func TestNew_WarnsWhenHistoryIsSynthesized(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: logging.LevelWarn, Output: &buf})

	if _, err := New(testConfig(), logger); err != nil {
		t.Fatalf("New: %v", err)
	}
	out := buf.String()
	for _, msg := range []string{"secondary source disabled", "no recent verified draws loaded"} {
		if !strings.Contains(out, msg) {
			t.Fatalf("expected warning %q, got %s", msg, out)
		}
	}
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected WARN level entries, got %s", out)
	}

	path := filepath.Join(t.TempDir(), "verified.json")
	payload := `[{"round": 1181, "date": "2025-07-19", "numbers": [2, 7, 13, 25, 33, 40], "bonus": 1}]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write verified file: %v", err)
	}

	buf.Reset()
	cfg := testConfig()
	cfg.SecondaryEnabled = true
	cfg.SecondaryTargetURL = "http://127.0.0.1:1/history"
	cfg.EmergencyVerifiedFile = path
	if _, err := New(cfg, logger); err != nil {
		t.Fatalf("New with secondary and verified file: %v", err)
	}
	if out := buf.String(); strings.Contains(out, "secondary source disabled") || strings.Contains(out, "no recent verified draws loaded") {
		t.Fatalf("unexpected coverage warnings: %s", out)
	}
}
