package commands

import (
	"reflect"
	"testing"
	"time"
)

func TestTokenizeCommandLine(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{`event "Rabbit Invasion" 15:23`, []string{"event", "Rabbit Invasion", "15:23"}},
		{`event 'Golden Invasion' 20:00`, []string{"event", "Golden Invasion", "20:00"}},
		{"boss  Kundun\tLorencia +1h", []string{"boss", "Kundun", "Lorencia", "+1h"}},
		{`delboss Red\ Dragon`, []string{"delboss", "Red Dragon"}},
		{`event "" 10:00`, []string{"event", "", "10:00"}},
	}
	for _, tt := range tests {
		if got := tokenizeCommandLine(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	cmd, args, ok := parseCommand("  !TIMER now ")
	if !ok || cmd != "timer" || len(args) != 1 || args[0] != "now" {
		t.Fatalf("parseCommand = %q %q %v", cmd, args, ok)
	}
	for _, s := range []string{"timer", "", "!", `!""`, "?boss"} {
		if _, _, ok := parseCommand(s); ok {
			t.Fatalf("parseCommand(%q) should fail", s)
		}
	}
}

func TestParseRespawnDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"+1h", time.Hour, true},
		{"+45m", 45 * time.Minute, true},
		{"+1h30m", 90 * time.Minute, true},
		{"+0h16m", 16 * time.Minute, true},
		{"+2H5M", 2*time.Hour + 5*time.Minute, true},
		{"+90m", 90 * time.Minute, true},
		{"1h", 0, false},
		{"+", 0, false},
		{"+0m", 0, false},
		{"+0h0m", 0, false},
		{"+30m1h", 0, false},
		{"+1.5h", 0, false},
		{"-5m", 0, false},
		{"+1000h", MaxRespawn, true},
		{"+999h60m", MaxRespawn, true},
		{"+1000h1m", 0, false},
		{"+1001h", 0, false},
		{"+60001m", 0, false},
		{"+5124096h", 0, false},
		{"+153722867281m", 0, false},
		{"+99999999999999999999h", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseRespawnDuration(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseRespawnDuration(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
