// Package telemetry holds the Prometheus metrics exported on /metrics.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	RemindersFired   *prometheus.CounterVec
	BossesRemoved    prometheus.Counter
	LedgerResets     prometheus.Counter
	NotifyResults    *prometheus.CounterVec
	CommandsHandled  *prometheus.CounterVec
	StateWrites      *prometheus.CounterVec
	BackupsCreated   prometheus.Counter
	BackupsFailed    prometheus.Counter
	BackupsRestored  prometheus.Counter
	JobRuns          *prometheus.CounterVec
	UpdatesDropped   prometheus.Counter

	// Histograms (seconds)
	TickDuration prometheus.Observer

	// Gauges
	ActiveBosses  prometheus.Gauge
	EventSeries   prometheus.Gauge
	NotifyBacklog prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RemindersFired = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bosstimer_reminders_fired_total", Help: "Reminders emitted by kind"}, []string{"kind"})
		BossesRemoved = promauto.NewCounter(prometheus.CounterOpts{Name: "bosstimer_bosses_removed_total", Help: "Bosses removed after respawn"})
		LedgerResets = promauto.NewCounter(prometheus.CounterOpts{Name: "bosstimer_ledger_resets_total", Help: "Reminder ledger resets"})
		NotifyResults = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bosstimer_notifications_total", Help: "Notification delivery results"}, []string{"result"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bosstimer_commands_total", Help: "Chat commands handled"}, []string{"command", "result"})
		StateWrites = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bosstimer_state_writes_total", Help: "Data file rewrites"}, []string{"result"})
		BackupsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "bosstimer_backups_created_total", Help: "Snapshots written"})
		BackupsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bosstimer_backups_failed_total", Help: "Snapshot attempts that failed"})
		BackupsRestored = promauto.NewCounter(prometheus.CounterOpts{Name: "bosstimer_backups_restored_total", Help: "Live file restores from a snapshot"})
		JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bosstimer_job_runs_total", Help: "Scheduled job runs"}, []string{"job", "result"})
		UpdatesDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "bosstimer_updates_dropped_total", Help: "Inbound updates dropped on a full queue"})
		TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bosstimer_tick_duration_seconds", Help: "Reminder tick duration seconds", Buckets: prometheus.DefBuckets})
		ActiveBosses = promauto.NewGauge(prometheus.GaugeOpts{Name: "bosstimer_active_bosses", Help: "Bosses waiting for respawn"})
		EventSeries = promauto.NewGauge(prometheus.GaugeOpts{Name: "bosstimer_event_series", Help: "Stored event series"})
		NotifyBacklog = promauto.NewGauge(prometheus.GaugeOpts{Name: "bosstimer_notify_backlog", Help: "Queued notifications"})
	})
}

// The helpers below are safe to call before Init; they record nothing then.

func IncReminder(kind string) {
	if RemindersFired != nil {
		RemindersFired.WithLabelValues(kind).Inc()
	}
}

func AddBossesRemoved(n int) {
	if BossesRemoved != nil && n > 0 {
		BossesRemoved.Add(float64(n))
	}
}

func IncLedgerReset() {
	if LedgerResets != nil {
		LedgerResets.Inc()
	}
}

func IncNotify(result string) {
	if NotifyResults != nil {
		NotifyResults.WithLabelValues(result).Inc()
	}
}

func IncCommand(command, result string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(command, result).Inc()
	}
}

func IncStateWrite(ok bool) {
	if StateWrites != nil {
		StateWrites.WithLabelValues(okLabel(ok)).Inc()
	}
}

func IncBackup(ok bool) {
	if ok && BackupsCreated != nil {
		BackupsCreated.Inc()
	}
	if !ok && BackupsFailed != nil {
		BackupsFailed.Inc()
	}
}

func IncRestore() {
	if BackupsRestored != nil {
		BackupsRestored.Inc()
	}
}

func IncJob(job string, ok bool) {
	if JobRuns != nil {
		JobRuns.WithLabelValues(job, okLabel(ok)).Inc()
	}
}

func IncUpdateDropped() {
	if UpdatesDropped != nil {
		UpdatesDropped.Inc()
	}
}

func ObserveTick(d time.Duration) {
	if TickDuration != nil {
		TickDuration.Observe(d.Seconds())
	}
}

// SetStateSize records the current document size.
func SetStateSize(bosses, series int) {
	if ActiveBosses != nil {
		ActiveBosses.Set(float64(bosses))
	}
	if EventSeries != nil {
		EventSeries.Set(float64(series))
	}
}

func SetNotifyBacklog(n int) {
	if NotifyBacklog != nil {
		NotifyBacklog.Set(float64(n))
	}
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
