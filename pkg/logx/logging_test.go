package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").Named("state").With(String("path", "data.json"))

	log.Warn("save failed", Err(errors.New("disk full")), Int("bosses", 2))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal log line: %v (%q)", err, buf.String())
	}
	want := map[string]any{
		"level":   "warn",
		"message": "save failed",
		"comp":    "state",
		"path":    "data.json",
		"err":     "disk full",
		"bosses":  float64(2),
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s = %v, want %v", k, m[k], v)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	if log.Enabled(LevelDebug) {
		t.Fatal("debug should not be enabled at warn level")
	}
	if !log.Enabled(LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Error("nothing happens")
}

func TestValidLevel(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"debug", true},
		{"WARNING", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := ValidLevel(tt.in); got != tt.want {
			t.Fatalf("ValidLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatChatLine(t *testing.T) {
	line := []byte(`{"level":"error","message":"send failed","time":"x","dest":"eventy","comp":"notifier"}`)
	got := formatChatLine(line)
	want := "[ERROR] send failed\n- comp=notifier\n- dest=eventy"
	if got != want {
		t.Fatalf("formatChatLine = %q, want %q", got, want)
	}

	if got := formatChatLine([]byte("  not json \n")); got != "not json" {
		t.Fatalf("raw fallback = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	s := strings.Repeat("a", 50)
	if got := truncate(s, 20); len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 20); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
}
