package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	kit "bosstimer/internal/transport"
	logx "bosstimer/pkg/logx"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []kit.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n kit.Notification) error {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
	return nil
}

type fixture struct {
	dir  string
	live string
	now  time.Time
	m    *Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:  filepath.Join(dir, "backups"),
		live: filepath.Join(dir, "data.json"),
		now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]Option{WithNow(func() time.Time { return f.now })}, opts...)
	f.m = New(Config{LivePath: f.live, Dir: f.dir}, nil, logx.Nop(), opts...)
	return f
}

func (f *fixture) writeLive(t *testing.T, s string) {
	t.Helper()
	if err := os.WriteFile(f.live, []byte(s), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCreateBeforeRestoreIsNotReady(t *testing.T) {
	f := newFixture(t)
	if _, err := f.m.CreateBackup(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if _, err := f.m.RestoreLatestBackup(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !f.m.Ready() {
		t.Fatal("manager should be ready after restore")
	}
}

func TestSnapshotNameFormat(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 3, 4, 567_000_000, time.UTC)
	if got := snapshotName("data", at); got != "data_backup_2024-05-01T12-03-04-567Z.json" {
		t.Fatalf("name = %s", got)
	}
}

func TestRotationKeepsNewest(t *testing.T) {
	rec := &recordingNotifier{}
	f := newFixture(t, WithNotifier(rec))
	f.m.Apply(2, "guild-czat")
	f.writeLive(t, `{"bosses":[],"events":{}}`)
	if _, err := f.m.RestoreLatestBackup(context.Background()); err != nil {
		t.Fatal(err)
	}

	var paths []string
	for i := 0; i < 5; i++ {
		f.writeLive(t, `{"bosses":[],"events":{"e":["0`+string(rune('0'+i))+`:00"]}}`)
		p, err := f.m.CreateBackup(context.Background())
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		paths = append(paths, p)
		f.now = f.now.Add(time.Second)
	}

	snaps, err := f.m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("kept %d snapshots, want 2", len(snaps))
	}
	if snaps[0].Path != paths[4] || snaps[1].Path != paths[3] {
		t.Fatalf("kept %s, %s", snaps[0].Name, snaps[1].Name)
	}
	if len(rec.sent) != 5 || rec.sent[0].Destination != "guild-czat" {
		t.Fatalf("notices = %+v", rec.sent)
	}
}

func TestCreateSameInstantDoesNotOverwrite(t *testing.T) {
	f := newFixture(t)
	f.m.Apply(5, "")
	f.writeLive(t, `{"a":1}`)
	f.m.RestoreLatestBackup(context.Background())

	p1, err := f.m.CreateBackup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	p2, err := f.m.CreateBackup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Fatal("second backup overwrote the first")
	}
}

func TestCreateFailsOnUnusableSnapshotName(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "data.json")
	if err := os.WriteFile(live, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	var lock sync.Mutex
	m := New(Config{LivePath: live, Dir: filepath.Join(dir, "backups"), Prefix: strings.Repeat("p", 300)}, &lock, logx.Nop())
	if _, err := m.RestoreLatestBackup(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.CreateBackup(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("backup with an over-long name succeeded")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("CreateBackup did not return")
	}
	if !lock.TryLock() {
		t.Fatal("live-file lock still held after a failed backup")
	}
	lock.Unlock()
}

func TestCreateSelfHealsMissingLive(t *testing.T) {
	f := newFixture(t)
	f.m.RestoreLatestBackup(context.Background())

	p, err := f.m.CreateBackup(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, path := range []string{f.live, p} {
		b, err := os.ReadFile(path)
		if err != nil || string(b) != "{}" {
			t.Fatalf("%s = %q, %v", path, b, err)
		}
	}
}

func TestRestorePrecedence(t *testing.T) {
	newest := `{"bosses":[{"name":"Kundun","map":"Kalima","respawn":"2024-05-01T18:30:00.000Z","addedBy":"ania"}],"events":{}}` + "\n"
	seed := func(t *testing.T, f *fixture) {
		t.Helper()
		if err := os.MkdirAll(f.dir, 0o755); err != nil {
			t.Fatal(err)
		}
		old := filepath.Join(f.dir, "data_backup_2024-04-30T00-00-00-000Z.json")
		nw := filepath.Join(f.dir, "data_backup_2024-05-01T00-00-00-000Z.json")
		os.WriteFile(old, []byte(`{"old":true}`), 0o644)
		os.WriteFile(nw, []byte(newest), 0o644)
		os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("x"), 0o644)
		past := time.Now().Add(-time.Hour)
		os.Chtimes(old, past, past)
	}

	tests := []struct {
		name     string
		live     *string
		restored bool
	}{
		{"missing", nil, true},
		{"blank", ptr("  \n"), true},
		{"empty object", ptr("{ }"), true},
		{"empty document", ptr(`{"bosses":[],"events":{}}`), false},
		{"content", ptr(`{"bosses":[]}`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seed(t, f)
			if tt.live != nil {
				f.writeLive(t, *tt.live)
			}
			got, err := f.m.RestoreLatestBackup(context.Background())
			if err != nil {
				t.Fatalf("restore: %v", err)
			}
			if got != tt.restored {
				t.Fatalf("restored = %v, want %v", got, tt.restored)
			}
			b, _ := os.ReadFile(f.live)
			if tt.restored && string(b) != newest {
				t.Fatalf("live = %q, want verbatim copy of newest", b)
			}
			if !tt.restored && string(b) != *tt.live {
				t.Fatalf("live changed to %q", b)
			}
		})
	}
}

func TestRestoreWithoutBackups(t *testing.T) {
	f := newFixture(t)
	got, err := f.m.RestoreLatestBackup(context.Background())
	if err != nil || got {
		t.Fatalf("restore = %v, %v", got, err)
	}
	if _, err := os.Stat(f.live); !os.IsNotExist(err) {
		t.Fatal("restore without backups must not create the live file")
	}
}

func ptr(s string) *string { return &s }
