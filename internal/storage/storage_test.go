package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "bosstimer/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver should fail")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path should fail")
	}
}

func TestBackendsAppendAndRecent(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, "state", "bot.db")}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()

			ctx := context.Background()
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			entries := []AuditEntry{
				{At: base, ActorID: 1, ActorName: "ania", ChatID: -100, Channel: "resp-boss", Action: "boss.add", Target: "Kundun", OK: true},
				{At: base.Add(time.Minute), ActorID: 2, ChatID: -200, Channel: "eventy", Action: "event.add", Target: "Rabbit Invasion 15:23", OK: true},
				{At: base.Add(2 * time.Minute), ActorID: 2, ChatID: -200, Action: "event.delete", Target: "Nope", Error: "not found"},
			}
			for _, e := range entries {
				if err := st.AppendAudit(ctx, e); err != nil {
					t.Fatalf("AppendAudit: %v", err)
				}
			}

			got, err := st.Recent(ctx, 2)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("Recent returned %d entries", len(got))
			}
			if got[0].Action != "event.delete" || got[0].OK || got[0].Error != "not found" {
				t.Fatalf("newest = %+v", got[0])
			}
			if got[1].Target != "Rabbit Invasion 15:23" || !got[1].At.Equal(base.Add(time.Minute)) {
				t.Fatalf("second = %+v", got[1])
			}
		})
	}
}

func TestFileStoreWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.AppendAudit(context.Background(), AuditEntry{Action: "boss.clean", OK: true}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	b, err := os.ReadFile(filepath.Join(dir, "bot.audit.jsonl"))
	if err != nil {
		t.Fatalf("audit file: %v", err)
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		t.Fatalf("audit file = %q", b)
	}
	if err := st.AppendAudit(context.Background(), AuditEntry{}); err != ErrDisabled {
		t.Fatalf("append after close = %v, want ErrDisabled", err)
	}
}
