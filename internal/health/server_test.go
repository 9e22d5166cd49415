package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"bosstimer/internal/storage"
	"bosstimer/internal/telemetry"
	logx "bosstimer/pkg/logx"
)

func init() { gin.SetMode(gin.TestMode) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestBanner(t *testing.T) {
	s := New(Config{}, Deps{}, logx.Nop())
	w := get(t, s.Handler(), "/")
	if w.Code != http.StatusOK || w.Body.String() != Banner {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}
}

func TestHealthzReadiness(t *testing.T) {
	var ready atomic.Bool
	s := New(Config{}, Deps{
		Ready: ready.Load,
		State: func() (int, int) { return 3, 2 },
		Details: map[string]func() any{
			"notifier": func() any { return map[string]int{"backlog": 0} },
		},
	}, logx.Nop())

	w := get(t, s.Handler(), "/healthz")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"starting"`) {
		t.Fatalf("before ready = %d %s", w.Code, w.Body.String())
	}

	ready.Store(true)
	w = get(t, s.Handler(), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("after ready = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["bosses"] != float64(3) || body["event_series"] != float64(2) || body["notifier"] == nil {
		t.Fatalf("body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	telemetry.Init()
	telemetry.IncReminder("boss_spawn")
	s := New(Config{}, Deps{}, logx.Nop())
	w := get(t, s.Handler(), "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bosstimer_reminders_fired_total") {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
}

func TestAuditEndpoint(t *testing.T) {
	if w := get(t, New(Config{}, Deps{}, logx.Nop()).Handler(), "/audit"); w.Code != http.StatusNotFound {
		t.Fatalf("audit without storage = %d", w.Code)
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	for _, action := range []string{"boss.add", "event.add"} {
		_ = st.AppendAudit(context.Background(), storage.AuditEntry{Action: action, OK: true})
	}

	s := New(Config{}, Deps{Audit: st}, logx.Nop())
	w := get(t, s.Handler(), "/audit?n=1")
	var body struct {
		Entries []storage.AuditEntry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || len(body.Entries) != 1 || body.Entries[0].Action != "event.add" {
		t.Fatalf("audit = %d %+v", w.Code, body)
	}
	if w := get(t, s.Handler(), "/audit?n=zero"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad n = %d", w.Code)
	}
}

func TestStartServesAndStops(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, Deps{}, logx.Nop())
	s.Start(context.Background())
	s.Start(context.Background())
	if s.Supervisor() == nil {
		t.Fatal("supervisor not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Supervisor() != nil {
		t.Fatal("supervisor still set")
	}
}
