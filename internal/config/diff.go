package config

import (
	"reflect"
	"strings"

	logx "bosstimer/pkg/logx"
)

// Sections that take effect without a restart.
var hotSections = map[string]bool{"logging": true, "channels": true, "data.max_backups": true}

// SummarizeConfigChange lists changed sections and safe log fields (the
// token is never logged). The third result names sections that need a
// restart to take effect.
func SummarizeConfigChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	mark := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
		if !hotSections[section] {
			restart = append(restart, section)
		}
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) || !reflect.DeepEqual(ot.ChatIDs, nt.ChatIDs) {
		mark("telegram",
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.String("telegram.poll_timeout", nt.PollTimeout),
			logx.Int("telegram.chat_ids", len(nt.ChatIDs)),
		)
	}
	if oldCfg.Channels != newCfg.Channels {
		c := newCfg.Channels
		mark("channels",
			logx.String("channels.boss", c.Boss),
			logx.String("channels.event", c.Event),
			logx.String("channels.vault", c.Vault),
			logx.String("channels.notice", c.Notice),
			logx.String("channels.log", c.Log),
		)
	}
	od, nd := oldCfg.Data, newCfg.Data
	if od.MaxBackups != nd.MaxBackups {
		mark("data.max_backups", logx.Int("data.max_backups", nd.MaxBackups))
	}
	od.MaxBackups, nd.MaxBackups = 0, 0
	if od != nd {
		mark("data", logx.String("data.file", nd.File), logx.String("data.backup_dir", nd.BackupDir))
	}
	if oldCfg.Reminder != newCfg.Reminder {
		r := newCfg.Reminder
		mark("reminder",
			logx.String("reminder.timezone", r.Timezone),
			logx.String("reminder.lead_time", r.LeadTime),
			logx.String("reminder.ledger_reset", r.LedgerReset),
		)
	}
	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		s := newCfg.Schedule
		mark("schedule",
			logx.String("schedule.tick", s.Tick),
			logx.String("schedule.backup", s.Backup),
			logx.String("schedule.reports", s.Reports),
			logx.Strings("schedule.vault", s.Vault),
		)
	}
	if oldCfg.HTTP != newCfg.HTTP {
		mark("http", logx.Bool("http.enabled", newCfg.HTTP.Enabled), logx.Int("http.port", newCfg.HTTP.Port))
	}
	if oldCfg.Logging != newCfg.Logging {
		l := newCfg.Logging
		mark("logging",
			logx.String("logging.level", l.Level),
			logx.Bool("logging.console", l.Console),
			logx.Bool("logging.file_enabled", l.File.Enabled),
			logx.Bool("logging.chat_enabled", l.Chat.Enabled),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		n := newCfg.Notifier
		mark("notifier",
			logx.Bool("notifier.enabled", n.Enabled),
			logx.Int("notifier.workers", n.Workers),
			logx.Int("notifier.rate_per_sec", n.RatePerSec),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Commands != newCfg.Commands {
		mark("commands", logx.Int("commands.workers", newCfg.Commands.Workers))
	}
	return changed, attrs, restart
}
