package app

import (
	"strings"
	"time"

	"bosstimer/internal/config"
	"bosstimer/internal/notifier"
	"bosstimer/internal/reminder"
	"bosstimer/internal/storage"
	logx "bosstimer/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    l.Chat.Enabled,
			MinLevel:   l.Chat.MinLevel,
			RatePerSec: l.Chat.RatePerSec,
		},
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	timeout, err := config.DurationOr("notifier.send_timeout", n.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:     n.Enabled,
		Workers:     n.Workers,
		QueueSize:   n.QueueSize,
		RatePerSec:  n.RatePerSec,
		SendTimeout: timeout,
	}, nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return reminder.Config{}, err
	}
	policy, err := reminder.ParseResetPolicy(cfg.Reminder.LedgerReset)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{
		BossChannel:  cfg.Channels.Boss,
		EventChannel: cfg.Channels.Event,
		Location:     loc,
		Lead:         cfg.LeadTime(),
		ResetPolicy:  policy,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.DurationOr("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}
