package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bosstimer/internal/clock"
	"bosstimer/internal/state"
	kit "bosstimer/internal/transport"
	logx "bosstimer/pkg/logx"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []kit.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n kit.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) byKind(kind Kind) []kit.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []kit.Notification
	for _, n := range r.sent {
		if n.Kind == kind.String() {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

func warsaw(t *testing.T) *time.Location {
	t.Helper()
	loc, err := clock.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func newEngine(t *testing.T, loc *time.Location, n Notifier) (*Engine, *state.Store) {
	t.Helper()
	st := state.New(filepath.Join(t.TempDir(), "data.json"), logx.Nop())
	st.Load()
	e := New(Config{BossChannel: "resp-boss", EventChannel: "eventy", Location: loc}, st, n, logx.Nop(), nil)
	return e, st
}

func addBoss(st *state.Store, b state.BossTimer) {
	st.Mutate(func(d *state.Document) bool {
		d.Bosses = append(d.Bosses, b)
		return true
	})
}

func TestBossReminderAndSpawnScenario(t *testing.T) {
	loc := warsaw(t)
	rec := &recordingNotifier{}
	e, st := newEngine(t, loc, rec)

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, loc)
	addBoss(st, state.BossTimer{Name: "Kundun", Map: "Kalima", RespawnAt: t0.Add(16 * time.Minute), AddedBy: "ania"})

	e.Tick(context.Background(), t0)
	if len(rec.sent) != 0 {
		t.Fatalf("T+0 sent %d notifications", len(rec.sent))
	}

	e.Tick(context.Background(), t0.Add(time.Minute))
	e.Tick(context.Background(), t0.Add(time.Minute))
	e.Tick(context.Background(), t0.Add(time.Minute+30*time.Second))
	reminders := rec.byKind(KindBossReminder)
	if len(reminders) != 1 {
		t.Fatalf("reminders at T+1m = %d, want 1", len(reminders))
	}
	if reminders[0].Destination != "resp-boss" || !strings.Contains(reminders[0].Text, "<b>Kundun</b> na <b>Kalima</b> o 12:16") {
		t.Fatalf("reminder = %+v", reminders[0])
	}

	for m := 2; m <= 15; m++ {
		e.Tick(context.Background(), t0.Add(time.Duration(m)*time.Minute))
	}
	if len(rec.sent) != 1 {
		t.Fatalf("T+2..T+15 sent extra notifications: %d", len(rec.sent))
	}

	res := e.Tick(context.Background(), t0.Add(16*time.Minute))
	if spawns := rec.byKind(KindBossSpawn); len(spawns) != 1 {
		t.Fatalf("spawns = %d, want 1", len(spawns))
	}
	if res.Removed != 1 || len(st.Snapshot().Bosses) != 0 {
		t.Fatalf("boss not removed: %+v", res)
	}
	if reloaded := state.New(st.Path(), logx.Nop()).Load(); len(reloaded.Bosses) != 0 {
		t.Fatalf("removal not persisted: %+v", reloaded.Bosses)
	}

	e.Tick(context.Background(), t0.Add(17*time.Minute))
	if len(rec.sent) != 2 {
		t.Fatalf("total sent = %d, want 2", len(rec.sent))
	}
}

func TestColdStartOverdueBossFiresOnce(t *testing.T) {
	loc := warsaw(t)
	rec := &recordingNotifier{}
	e, st := newEngine(t, loc, rec)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, loc)
	addBoss(st, state.BossTimer{Name: "Medusa", Map: "Swamp", RespawnAt: now.Add(-3 * time.Hour), AddedBy: "x"})

	e.Tick(context.Background(), now)
	e.Tick(context.Background(), now.Add(time.Minute))
	if spawns := rec.byKind(KindBossSpawn); len(spawns) != 1 {
		t.Fatalf("spawns = %d, want 1", len(spawns))
	}
	if len(st.Snapshot().Bosses) != 0 {
		t.Fatal("overdue boss should be removed")
	}
}

func TestDeliveryFailureStillRemoves(t *testing.T) {
	loc := warsaw(t)
	rec := &recordingNotifier{err: errors.New("send failed")}
	e, st := newEngine(t, loc, rec)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, loc)
	addBoss(st, state.BossTimer{Name: "Selupan", Map: "Raklion", RespawnAt: now, AddedBy: "x"})

	res := e.Tick(context.Background(), now)
	if len(res.Fired) != 1 || res.Removed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(st.Snapshot().Bosses) != 0 {
		t.Fatal("boss should be removed even when delivery fails")
	}
}

func TestReaddedBossIsNewOccurrence(t *testing.T) {
	loc := warsaw(t)
	rec := &recordingNotifier{}
	e, st := newEngine(t, loc, rec)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, loc)
	addBoss(st, state.BossTimer{Name: "Kundun", Map: "Kalima", RespawnAt: now, AddedBy: "x"})
	e.Tick(context.Background(), now)

	addBoss(st, state.BossTimer{Name: "Kundun", Map: "Kalima", RespawnAt: now.Add(time.Hour), AddedBy: "x"})
	e.Tick(context.Background(), now.Add(time.Hour))
	if spawns := rec.byKind(KindBossSpawn); len(spawns) != 2 {
		t.Fatalf("spawns = %d, want 2", len(spawns))
	}
}

func TestEventsFireExactlyOncePerOccurrenceOver48h(t *testing.T) {
	loc := warsaw(t)
	rec := &recordingNotifier{}
	e, st := newEngine(t, loc, rec)
	st.Mutate(func(d *state.Document) bool {
		d.Events.Add("Rabbit Invasion", "15:23")
		d.Events.Add("Golden Invasion", "00:05")
		return true
	})

	start := time.Date(2024, 5, 1, 0, 0, 30, 0, loc)
	for m := 0; m < 48*60; m++ {
		now := start.Add(time.Duration(m) * time.Minute)
		e.Tick(context.Background(), now)
		e.Tick(context.Background(), now.Add(10*time.Second))
	}

	count := func(kind Kind, name string) int {
		n := 0
		for _, x := range rec.byKind(kind) {
			if strings.Contains(x.Text, "<b>"+name+"</b>") {
				n++
			}
		}
		return n
	}
	for _, name := range []string{"Rabbit Invasion", "Golden Invasion"} {
		if got := count(KindEventReminder, name); got != 2 {
			t.Fatalf("%s reminders = %d, want 2", name, got)
		}
		if got := count(KindEventStart, name); got != 2 {
			t.Fatalf("%s starts = %d, want 2", name, got)
		}
	}
	if len(st.Snapshot().Events) != 2 {
		t.Fatal("events must never be removed by evaluation")
	}
}

func TestEventReminderRollsOverMidnight(t *testing.T) {
	loc := warsaw(t)
	doc := state.Empty()
	doc.Events.Add("Golden Invasion", "00:05")

	now := time.Date(2024, 5, 1, 23, 50, 0, 0, loc)
	due := Plan(now, doc, NewLedger(ResetOnDateChange), Config{EventChannel: "eventy", Location: loc})
	if len(due) != 1 || due[0].Key.Kind != KindEventReminder {
		t.Fatalf("due = %+v", due)
	}
	if due[0].Key.Bucket != "2024-05-02" {
		t.Fatalf("bucket = %q, want next day", due[0].Key.Bucket)
	}
	if !strings.HasPrefix(due[0].Notification.Text, "💰 Event za 15 minut!") {
		t.Fatalf("text = %q", due[0].Notification.Text)
	}
}

func TestPlanSkipsMalformedAndDoesNotMutate(t *testing.T) {
	loc := warsaw(t)
	doc := state.Empty()
	doc.Events = state.Events{{Name: "Broken", Times: []string{"25:99", "ab"}}, {Name: "Death King", Times: []string{"12;00"}}}
	ledger := NewLedger(ResetOnDateChange)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, loc)
	due := Plan(now, doc, ledger, Config{Location: loc})
	if len(due) != 1 || due[0].Key.Kind != KindEventStart || due[0].Key.Attr != "12:00" {
		t.Fatalf("due = %+v", due)
	}
	if ledger.Len(KindEventStart) != 0 {
		t.Fatal("Plan must not mark the ledger")
	}
}

func TestEventMinuteIgnoresTickSeconds(t *testing.T) {
	loc := warsaw(t)
	doc := state.Empty()
	doc.Events.Add("Death King", "12:15")

	for _, sec := range []int{0, 30, 59} {
		now := time.Date(2024, 5, 1, 12, 0, sec, 0, loc)
		due := Plan(now, doc, nil, Config{EventChannel: "eventy", Location: loc})
		if len(due) != 1 || due[0].Key.Kind != KindEventReminder {
			t.Fatalf("at :%02d due = %+v", sec, due)
		}
	}
	if due := Plan(time.Date(2024, 5, 1, 12, 1, 0, 0, loc), doc, nil, Config{EventChannel: "eventy", Location: loc}); len(due) != 0 {
		t.Fatalf("next minute due = %+v", due)
	}
}

func TestCustomLead(t *testing.T) {
	loc := warsaw(t)
	doc := state.Empty()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, loc)
	doc.Bosses = []state.BossTimer{{Name: "Kundun", Map: "Kalima", RespawnAt: now.Add(10*time.Minute + 20*time.Second)}}

	due := Plan(now, doc, nil, Config{Location: loc, Lead: 10 * time.Minute})
	if len(due) != 1 || !strings.HasPrefix(due[0].Notification.Text, "⏳ Przypomnienie: boss za 10 minut") {
		t.Fatalf("due = %+v", due)
	}
}

func TestReport(t *testing.T) {
	loc := warsaw(t)
	rec := &recordingNotifier{}
	e, st := newEngine(t, loc, rec)
	now := time.Date(2024, 5, 1, 6, 0, 0, 0, loc)

	e.Report(context.Background(), now)
	if len(rec.sent) != 2 || !strings.Contains(rec.sent[0].Text, "Brak aktywnych bossów.") || !strings.Contains(rec.sent[1].Text, "Brak zapisanych eventów.") {
		t.Fatalf("empty report = %+v", rec.sent)
	}
	rec.reset()

	addBoss(st, state.BossTimer{Name: "Late", Map: "B", RespawnAt: now.Add(2 * time.Hour)})
	addBoss(st, state.BossTimer{Name: "Early", Map: "A", RespawnAt: now.Add(time.Hour)})
	st.Mutate(func(d *state.Document) bool { return d.Events.Add("Rabbit Invasion", "15:23") })

	e.Report(context.Background(), now)
	boss := rec.sent[0].Text
	if strings.Index(boss, "Early") > strings.Index(boss, "Late") {
		t.Fatalf("report not ordered by respawn: %q", boss)
	}
	if !strings.Contains(boss, "💀 <b>Early</b> (A) — 07:00") {
		t.Fatalf("boss report = %q", boss)
	}
	if !strings.Contains(rec.sent[1].Text, "🎯 <b>Rabbit Invasion</b> — 15:23") {
		t.Fatalf("event report = %q", rec.sent[1].Text)
	}
}
