package reminder

import (
	"fmt"
	"strings"
	"time"

	"bosstimer/internal/clock"
	"bosstimer/internal/state"
)

type Kind uint8

const (
	KindBossReminder Kind = iota + 1
	KindBossSpawn
	KindEventReminder
	KindEventStart
)

func (k Kind) String() string {
	switch k {
	case KindBossReminder:
		return "boss_reminder"
	case KindBossSpawn:
		return "boss_spawn"
	case KindEventReminder:
		return "event_reminder"
	case KindEventStart:
		return "event_start"
	default:
		return "unknown"
	}
}

// Key identifies one notification occurrence.
//
// Boss keys carry the lowercased map as Attr and the respawn minute as Bucket,
// so a boss re-added with a new respawn time is a new occurrence. Event keys
// carry HH:MM as Attr and the occurrence date as Bucket.
type Key struct {
	Kind   Kind
	Name   string
	Attr   string
	Bucket string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Kind, k.Name, k.Attr, k.Bucket)
}

func BossKey(kind Kind, b state.BossTimer, loc *time.Location) Key {
	return Key{
		Kind:   kind,
		Name:   strings.ToLower(b.Name),
		Attr:   strings.ToLower(b.Map),
		Bucket: clock.MinuteKey(b.RespawnAt, loc),
	}
}

func EventKey(kind Kind, name, hhmm string, occurrence time.Time, loc *time.Location) Key {
	return Key{
		Kind:   kind,
		Name:   strings.ToLower(name),
		Attr:   hhmm,
		Bucket: clock.DateKey(occurrence, loc),
	}
}

// ResetPolicy selects when the ledger is cleared.
type ResetPolicy string

const (
	// ResetOnDateChange clears whenever the local date differs from the date
	// of the previous reset.
	ResetOnDateChange ResetPolicy = "date_change"
	// ResetLegacyMinute clears when local time reads exactly 00:01.
	ResetLegacyMinute ResetPolicy = "legacy"
)

func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch ResetPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResetOnDateChange:
		return ResetOnDateChange, nil
	case ResetLegacyMinute:
		return ResetLegacyMinute, nil
	default:
		return "", fmt.Errorf("reminder: unknown ledger reset policy %q", s)
	}
}

// Ledger records which occurrences were already notified in this process.
// It is not safe for concurrent use; Engine serializes access.
type Ledger struct {
	policy    ResetPolicy
	sets      map[Kind]map[Key]struct{}
	lastReset string
}

func NewLedger(policy ResetPolicy) *Ledger {
	if policy == "" {
		policy = ResetOnDateChange
	}
	l := &Ledger{policy: policy}
	l.Reset()
	return l
}

func (l *Ledger) Seen(k Key) bool {
	_, ok := l.sets[k.Kind][k]
	return ok
}

// Mark records k and reports whether it was new.
func (l *Ledger) Mark(k Key) bool {
	set, ok := l.sets[k.Kind]
	if !ok {
		return false
	}
	if _, dup := set[k]; dup {
		return false
	}
	set[k] = struct{}{}
	return true
}

func (l *Ledger) Len(kind Kind) int { return len(l.sets[kind]) }

func (l *Ledger) Reset() {
	l.sets = map[Kind]map[Key]struct{}{
		KindBossReminder:  {},
		KindBossSpawn:     {},
		KindEventReminder: {},
		KindEventStart:    {},
	}
}

// MaybeReset applies the reset policy at now and reports whether the ledger
// was cleared.
func (l *Ledger) MaybeReset(now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	date := clock.DateKey(local, loc)
	switch l.policy {
	case ResetLegacyMinute:
		// Once per date, so a second tick inside 00:01 keeps its marks.
		if local.Hour() == 0 && local.Minute() == 1 && date != l.lastReset {
			l.Reset()
			l.lastReset = date
			return true
		}
		return false
	default:
		if l.lastReset == "" {
			l.lastReset = date
			return false
		}
		if date == l.lastReset {
			return false
		}
		l.Reset()
		l.lastReset = date
		return true
	}
}
