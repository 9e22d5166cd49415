package systemd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

type recorder struct {
	mu   sync.Mutex
	sent []string
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, state)
	return true, nil
}

func (r *recorder) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func withRecorder(t *testing.T) *recorder {
	t.Helper()
	rec := &recorder{}
	prev := notify
	notify = rec.notify
	t.Cleanup(func() { notify = prev })
	return rec
}

func TestLifecycleStates(t *testing.T) {
	rec := withRecorder(t)
	_, _ = Ready()
	_, _ = Status("3 bosses")
	_, _ = Stopping()

	want := []string{daemon.SdNotifyReady, "STATUS=3 bosses", daemon.SdNotifyStopping}
	got := rec.states()
	if len(got) != len(want) {
		t.Fatalf("states = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWatchdog(t *testing.T) {
	rec := withRecorder(t)
	if err := Watchdog(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if len(rec.states()) != 0 {
		t.Fatal("disabled watchdog pinged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = Watchdog(ctx, 5*time.Millisecond)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.states()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	got := rec.states()
	if len(got) == 0 || got[0] != daemon.SdNotifyWatchdog {
		t.Fatalf("states = %v", got)
	}
}
