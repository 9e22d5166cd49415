package supervisor

import (
	"context"
	"testing"
	"time"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()
	running := New(context.Background())
	defer running.Cancel()
	running.Go0("idle", func(ctx context.Context) { <-ctx.Done() })

	var stopped *Supervisor
	r.Register("worker", func() *Supervisor { return running })
	r.Register("stopped", func() *Supervisor { return stopped })

	if got := r.Names(); len(got) != 2 || got[0] != "stopped" || got[1] != "worker" {
		t.Fatalf("Names = %v", got)
	}

	deadline := time.Now().Add(time.Second)
	for running.Counters().Active != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c := r.Counters()
	if _, ok := c["stopped"]; ok {
		t.Fatal("stopped component reported")
	}
	if c["worker"].Started != 1 || c["worker"].Active != 1 {
		t.Fatalf("worker counters = %+v", c["worker"])
	}

	r.Register("worker", nil)
	if len(r.Names()) != 1 {
		t.Fatalf("Names after delete = %v", r.Names())
	}
}
