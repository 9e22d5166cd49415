package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bosstimer/internal/clock"
	"bosstimer/internal/config"
	"bosstimer/internal/reminder"
	"bosstimer/internal/scheduler"
	kit "bosstimer/internal/transport"
)

const (
	jobTick    = "reminder.tick"
	jobBackup  = "backup"
	jobReports = "reports"
	jobVault   = "vault"
)

// Ticker is the reminder engine as seen by the tick and report jobs.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) reminder.Result
	Report(ctx context.Context, now time.Time)
}

// Backupper is the backup manager as seen by the backup job.
type Backupper interface {
	CreateBackup(ctx context.Context) (string, error)
}

type jobDeps struct {
	clock     clock.Clock
	engine    Ticker
	backup    Backupper
	notify    reminder.Notifier
	vault     func() string // current vault channel name
	afterTick func()
}

// registerJobs adds the periodic jobs described by cfg to s.
func registerJobs(s *scheduler.Service, cfg config.ScheduleConfig, d jobDeps) error {
	if err := s.Add(jobTick, cfg.Tick, 30*time.Second, func(ctx context.Context) error {
		d.engine.Tick(ctx, d.clock.Now())
		if d.afterTick != nil {
			d.afterTick()
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.Add(jobBackup, cfg.Backup, time.Minute, func(ctx context.Context) error {
		_, err := d.backup.CreateBackup(ctx)
		return err
	}); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Reports) != "" {
		if err := s.Add(jobReports, cfg.Reports, 30*time.Second, func(ctx context.Context) error {
			d.engine.Report(ctx, d.clock.Now())
			return nil
		}); err != nil {
			return err
		}
	}

	for i, spec := range cfg.Vault {
		name := fmt.Sprintf("%s.%d", jobVault, i+1)
		if err := s.Add(name, spec, 30*time.Second, func(ctx context.Context) error {
			return d.notify.Notify(ctx, kit.Notification{
				Destination: d.vault(),
				Kind:        "vault",
				Text:        reminder.VaultReminderText(),
				Options:     &kit.SendOptions{ParseMode: "HTML"},
			})
		}); err != nil {
			return err
		}
	}
	return nil
}
