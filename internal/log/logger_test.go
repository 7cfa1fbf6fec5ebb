package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONCarriesComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFrom("debug", "json", ComponentLedger)
	cfg.Output = &buf
	logger := New(cfg)

	logger.Debug("hello", FieldUserID, "u1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[FieldComponent] != ComponentLedger {
		t.Errorf("component = %v, want %v", entry[FieldComponent], ComponentLedger)
	}
	if entry[FieldUserID] != "u1" {
		t.Errorf("user_id = %v", entry[FieldUserID])
	}
	if bytes.Count(buf.Bytes(), []byte(`"component"`)) != 1 {
		t.Errorf("component logged more than once: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFrom("warn", "text", "")
	cfg.Output = &buf
	logger := New(cfg)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn should be logged")
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("fallback component = %q", got.Component())
	}

	logger := Discard().WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFrom("info", "json", ComponentHTTP)
	cfg.Output = &buf
	logger := New(cfg)

	h := AccessLog(logger, func(*http.Request) string { return "10.0.0.1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions?year=2024", nil)
	req = req.WithContext(context.WithValue(req.Context(), RequestIDContextKey, "req_abc"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry[FieldStatusCode] != float64(404) {
		t.Errorf("status = %v", entry[FieldStatusCode])
	}
	if entry[FieldRequestID] != "req_abc" {
		t.Errorf("request_id = %v", entry[FieldRequestID])
	}
	if entry[FieldClientIP] != "10.0.0.1" {
		t.Errorf("client_ip = %v", entry[FieldClientIP])
	}
}
