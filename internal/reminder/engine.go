// Package reminder evaluates boss timers and daily events once per tick and
// emits each reminder occurrence at most once per process.
package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"bosstimer/internal/clock"
	"bosstimer/internal/eventbus"
	"bosstimer/internal/state"
	"bosstimer/internal/telemetry"
	kit "bosstimer/internal/transport"
	logx "bosstimer/pkg/logx"
)

const DefaultLead = 15 * time.Minute

// Notifier delivers a notification asynchronously. Errors are reported but
// the engine never retries.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

type Config struct {
	BossChannel  string
	EventChannel string
	Location     *time.Location
	Lead         time.Duration
	ResetPolicy  ResetPolicy
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Lead <= 0 {
		c.Lead = DefaultLead
	}
	if c.ResetPolicy == "" {
		c.ResetPolicy = ResetOnDateChange
	}
	return c
}

// Due is one notification decided by Plan.
type Due struct {
	Key          Key
	Notification kit.Notification
}

// Result summarizes one Tick.
type Result struct {
	Fired   []Key
	Removed int
	Reset   bool
}

type Engine struct {
	mu     sync.Mutex
	cfg    Config
	ledger *Ledger

	store    *state.Store
	notifier Notifier
	log      logx.Logger
	bus      eventbus.Bus
}

func New(cfg Config, store *state.Store, notifier Notifier, log logx.Logger, bus eventbus.Bus) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:      cfg,
		ledger:   NewLedger(cfg.ResetPolicy),
		store:    store,
		notifier: notifier,
		log:      log,
		bus:      bus,
	}
}

// SetChannels swaps destination names, e.g. after a config reload.
func (e *Engine) SetChannels(boss, event string) {
	e.mu.Lock()
	e.cfg.BossChannel = boss
	e.cfg.EventChannel = event
	e.mu.Unlock()
}

func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Tick evaluates the state at now. Ledger updates and boss removal happen
// under the store lock; notifications are queued after it is released.
func (e *Engine) Tick(ctx context.Context, now time.Time) Result {
	start := time.Now()
	defer func() { telemetry.ObserveTick(time.Since(start)) }()

	var res Result
	var due []Due

	e.mu.Lock()
	cfg := e.cfg
	res.Reset = e.ledger.MaybeReset(now, cfg.Location)
	e.store.Mutate(func(d *state.Document) bool {
		due = Plan(now, *d, e.ledger, cfg)
		for _, x := range due {
			e.ledger.Mark(x.Key)
		}
		res.Removed = d.RemoveTerminal(now)
		return res.Removed > 0
	})
	e.mu.Unlock()

	if res.Reset {
		telemetry.IncLedgerReset()
		eventbus.Publish(e.bus, eventbus.TypeLedgerReset, clock.DateKey(now, cfg.Location))
		e.log.Info("reminder ledger reset", logx.String("policy", string(cfg.ResetPolicy)))
	}
	if res.Removed > 0 {
		telemetry.AddBossesRemoved(res.Removed)
		eventbus.Publish(e.bus, eventbus.TypeBossRemoved, res.Removed)
		e.log.Info("respawned bosses removed", logx.Int("count", res.Removed))
	}

	for _, x := range due {
		res.Fired = append(res.Fired, x.Key)
		telemetry.IncReminder(x.Key.Kind.String())
		eventbus.Publish(e.bus, eventbus.TypeReminderFired, x.Key)
		e.log.Debug("reminder due", logx.String("key", x.Key.String()), logx.String("dest", x.Notification.Destination))
		e.send(ctx, x.Notification)
	}
	return res
}

func (e *Engine) send(ctx context.Context, n kit.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Warn("notify failed", logx.String("kind", n.Kind), logx.String("dest", n.Destination), logx.Err(err))
	}
}

// Plan decides which notifications are due at now without mutating anything.
// Keys already in the ledger are skipped, and duplicate keys within one plan
// are collapsed. Event times are matched against now truncated to the
// minute, so seconds within the tick minute do not matter.
func Plan(now time.Time, doc state.Document, ledger *Ledger, cfg Config) []Due {
	cfg = cfg.withDefaults()
	loc := cfg.Location
	leadMin := int64(cfg.Lead / time.Minute)
	opts := &kit.SendOptions{ParseMode: "HTML"}

	var out []Due
	planned := map[Key]struct{}{}
	add := func(k Key, dest, text string) {
		if ledger != nil && ledger.Seen(k) {
			return
		}
		if _, dup := planned[k]; dup {
			return
		}
		planned[k] = struct{}{}
		out = append(out, Due{Key: k, Notification: kit.Notification{
			Destination: dest,
			Kind:        k.Kind.String(),
			Text:        text,
			Options:     opts,
		}})
	}

	for _, boss := range doc.Bosses {
		remaining := boss.RespawnAt.Sub(now)
		if remaining <= 0 {
			add(BossKey(KindBossSpawn, boss, loc), cfg.BossChannel, RenderBossSpawn(boss))
			continue
		}
		if clock.FloorMinutes(remaining) == leadMin {
			add(BossKey(KindBossReminder, boss, loc), cfg.BossChannel, RenderBossReminder(boss, cfg.Lead, loc))
		}
	}

	local := now.In(loc)
	minute := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), 0, 0, loc)
	for _, s := range doc.Events {
		for _, raw := range s.Times {
			hhmm, ok := state.NormalizeTime(raw)
			if !ok {
				continue
			}
			h, m, _ := state.ParseHHMM(hhmm)
			occurrence := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
			diff := clock.FloorMinutes(occurrence.Sub(minute))
			if diff < 0 {
				diff += 24 * 60
				occurrence = occurrence.AddDate(0, 0, 1)
			}
			switch diff {
			case leadMin:
				add(EventKey(KindEventReminder, s.Name, hhmm, occurrence, loc), cfg.EventChannel, RenderEventReminder(s.Name, hhmm, cfg.Lead))
			case 0:
				add(EventKey(KindEventStart, s.Name, hhmm, occurrence, loc), cfg.EventChannel, RenderEventStart(s.Name, hhmm))
			}
		}
	}
	return out
}

// Report sends the periodic boss and event summaries.
func (e *Engine) Report(ctx context.Context, now time.Time) {
	cfg := e.Config()
	doc := e.store.Snapshot()
	bosses := doc.ActiveBosses(now)
	sort.SliceStable(bosses, func(i, j int) bool { return bosses[i].RespawnAt.Before(bosses[j].RespawnAt) })

	opts := &kit.SendOptions{ParseMode: "HTML"}
	e.send(ctx, kit.Notification{Destination: cfg.BossChannel, Kind: "boss_report", Text: RenderBossReport(bosses, cfg.Location), Options: opts})
	e.send(ctx, kit.Notification{Destination: cfg.EventChannel, Kind: "event_report", Text: RenderEventReport(doc.Events), Options: opts})
}
