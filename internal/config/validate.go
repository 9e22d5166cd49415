package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"bosstimer/internal/clock"
	logx "bosstimer/pkg/logx"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports every problem found in cfg, joined into one error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(fmt.Errorf("telegram.token is required (or set %s)", EnvToken))
	}
	_, err := Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	add(err)

	if strings.TrimSpace(cfg.Channels.Boss) == "" {
		add(errors.New("channels.boss is required"))
	}
	if strings.TrimSpace(cfg.Channels.Event) == "" {
		add(errors.New("channels.event is required"))
	}
	if cfg.Logging.Chat.Enabled && strings.TrimSpace(cfg.Channels.Log) == "" {
		add(errors.New("channels.log is required when logging.chat is enabled"))
	}

	if strings.TrimSpace(cfg.Data.File) == "" {
		add(errors.New("data.file is required"))
	}
	if strings.TrimSpace(cfg.Data.BackupDir) == "" {
		add(errors.New("data.backup_dir is required"))
	}
	if cfg.Data.MaxBackups < 1 {
		add(errors.New("data.max_backups must be >= 1"))
	}
	if strings.ContainsAny(cfg.Data.BackupPrefix, `/\`) {
		add(errors.New("data.backup_prefix must not contain path separators"))
	}

	if _, err := clock.LoadLocation(cfg.Reminder.Timezone); err != nil {
		add(fmt.Errorf("reminder.timezone: %w", err))
	}
	if d, err := Duration("reminder.lead_time", cfg.Reminder.LeadTime); err != nil {
		add(err)
	} else if d%time.Minute != 0 {
		add(errors.New("reminder.lead_time must be a whole number of minutes"))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Reminder.LedgerReset)) {
	case "", "date_change", "legacy":
	default:
		add(fmt.Errorf("reminder.ledger_reset: unknown policy %q", cfg.Reminder.LedgerReset))
	}

	checkCron := func(path, spec string, required bool) {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			if required {
				add(fmt.Errorf("%s is required", path))
			}
			return
		}
		if _, err := cronParser.Parse(spec); err != nil {
			add(fmt.Errorf("%s: %w", path, err))
		}
	}
	checkCron("schedule.tick", cfg.Schedule.Tick, true)
	checkCron("schedule.backup", cfg.Schedule.Backup, true)
	checkCron("schedule.reports", cfg.Schedule.Reports, false)
	for i, spec := range cfg.Schedule.Vault {
		checkCron(fmt.Sprintf("schedule.vault[%d]", i), spec, true)
	}

	if cfg.HTTP.Enabled && (cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535) {
		add(fmt.Errorf("http.port out of range: %d", cfg.HTTP.Port))
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path is required when file logging is enabled"))
	}

	_, err = Duration("notifier.send_timeout", cfg.Notifier.SendTimeout)
	add(err)
	if cfg.Notifier.RatePerSec < 0 || cfg.Notifier.Workers < 0 || cfg.Notifier.QueueSize < 0 {
		add(errors.New("notifier: workers, queue_size and rate_per_sec must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(errors.New("storage.path is required"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	_, err = Duration("storage.busy_timeout", cfg.Storage.BusyTimeout)
	add(err)

	_, err = Duration("commands.timeout", cfg.Commands.Timeout)
	add(err)

	return errors.Join(errs...)
}

// Location resolves reminder.timezone.
func (c *Config) Location() (*time.Location, error) {
	return clock.LoadLocation(c.Reminder.Timezone)
}

// LeadTime returns reminder.lead_time, 15m when unset.
func (c *Config) LeadTime() time.Duration {
	d, _ := DurationOr("reminder.lead_time", c.Reminder.LeadTime, 15*time.Minute)
	return d
}

// Addr is the health server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(c.HTTP.Host), c.HTTP.Port)
}
