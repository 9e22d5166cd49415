// Package scheduler runs the bot's periodic jobs on robfig/cron.
//
// Jobs never overlap with themselves (SkipIfStillRunning), panics are
// recovered, and every run gets a timeout derived from the service context.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"bosstimer/internal/clock"
	"bosstimer/internal/eventbus"
	"bosstimer/internal/telemetry"
	logx "bosstimer/pkg/logx"
)

const TypeJobFailed = "scheduler.job_failed"

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	return &Service{
		cfg: cfg,
		log: log,
		bus: bus,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Add registers a named cron job. Names are unique; re-adding a name
// replaces its definition. Jobs added after Start are scheduled immediately.
func (s *Service) Add(name, spec string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	spec = strings.TrimSpace(spec)
	if name == "" {
		return errors.New("scheduler: job name is empty")
	}
	if job == nil {
		return fmt.Errorf("scheduler: job %q has no function", name)
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("scheduler: job %q spec %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	def := scheduleDef{name: name, spec: spec, timeout: timeout, job: job}
	for i := range s.defs {
		if s.defs[i].name == name {
			if s.c != nil && s.defs[i].entryID != 0 {
				s.c.Remove(s.defs[i].entryID)
			}
			s.defs[i] = def
			if s.c != nil {
				return s.addCronLocked(&s.defs[i])
			}
			return nil
		}
	}
	s.defs = append(s.defs, def)
	if s.c != nil {
		return s.addCronLocked(&s.defs[len(s.defs)-1])
	}
	return nil
}

// Remove drops a job by name.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.defs {
		if s.defs[i].name != name {
			continue
		}
		if s.c != nil && s.defs[i].entryID != 0 {
			s.c.Remove(s.defs[i].entryID)
		}
		s.defs = append(s.defs[:i], s.defs[i+1:]...)
		return true
	}
	return false
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	loc, err := clock.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	s.loc = loc
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for i := range s.defs {
		if err := s.addCronLocked(&s.defs[i]); err != nil {
			s.log.Error("schedule rejected", logx.String("job", s.defs[i].name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", loc.String()), logx.Int("schedules", len(s.defs)))
	return nil
}

// Stop halts activations and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	for i := range s.defs {
		s.defs[i].entryID = 0
	}
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop().Done()
	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		s.log.Info("service stopped")
		return nil
	case <-ctx.Done():
		// Running jobs observe cancellation through their context.
		if cancel != nil {
			cancel()
		}
		s.log.Warn("stop timed out; jobs cancelled", logx.Err(ctx.Err()))
		return ctx.Err()
	}
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var def *scheduleDef
	for i := range s.defs {
		if s.defs[i].name == name {
			d := s.defs[i]
			def = &d
			break
		}
	}
	s.mu.Unlock()
	if def == nil {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	return s.run(ctx, *def)
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	def := *d
	runCtx := s.runCtx
	id, err := s.c.AddFunc(def.spec, func() {
		_ = s.run(runCtx, def)
	})
	if err != nil {
		return err
	}
	d.entryID = id
	return nil
}

func (s *Service) run(ctx context.Context, def scheduleDef) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := def.timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	jctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := def.job(jctx)
	d := time.Since(start)

	telemetry.IncJob(def.name, err == nil)
	item := HistoryItem{Name: def.name, Started: start, Duration: d}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("job failed", logx.String("job", def.name), logx.Duration("dur", d), logx.Err(err))
		eventbus.Publish(s.bus, TypeJobFailed, item)
	} else {
		s.log.Debug("job ok", logx.String("job", def.name), logx.Duration("dur", d))
	}
	s.appendHistory(item)
	return err
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, it)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = append([]HistoryItem(nil), s.history[over:]...)
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defs := make([]scheduleDef, len(s.defs))
	copy(defs, s.defs)
	c := s.c
	tz := s.cfg.Timezone
	if s.loc != nil {
		tz = s.loc.String()
	}
	s.mu.Unlock()

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		items = append(items, it)
	}

	s.hmu.Lock()
	hist := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()

	return Snapshot{Running: c != nil, Timezone: tz, Schedules: items, History: hist}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
