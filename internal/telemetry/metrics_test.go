package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := RemindersFired
	Init()
	if RemindersFired == nil || RemindersFired != first {
		t.Fatal("Init should register metrics exactly once")
	}
	if TickDuration == nil || ActiveBosses == nil {
		t.Fatal("metrics not initialized")
	}
}

func TestHelpersRecord(t *testing.T) {
	Init()

	before := testutil.ToFloat64(RemindersFired.WithLabelValues("boss_spawn"))
	IncReminder("boss_spawn")
	if got := testutil.ToFloat64(RemindersFired.WithLabelValues("boss_spawn")); got != before+1 {
		t.Fatalf("reminders = %v, want %v", got, before+1)
	}

	SetStateSize(3, 2)
	if got := testutil.ToFloat64(ActiveBosses); got != 3 {
		t.Fatalf("active bosses = %v, want 3", got)
	}
	if got := testutil.ToFloat64(EventSeries); got != 2 {
		t.Fatalf("event series = %v, want 2", got)
	}

	before = testutil.ToFloat64(StateWrites.WithLabelValues("error"))
	IncStateWrite(false)
	if got := testutil.ToFloat64(StateWrites.WithLabelValues("error")); got != before+1 {
		t.Fatalf("state write errors = %v, want %v", got, before+1)
	}

	ObserveTick(5 * time.Millisecond)
	AddBossesRemoved(0)
}
