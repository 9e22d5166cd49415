package config

const (
	DefaultBossChannel   = "resp-boss"
	DefaultEventChannel  = "eventy"
	DefaultVaultChannel  = "skarbowka-piergow"
	DefaultNoticeChannel = "guild-czat"
	DefaultTimezone      = "Europe/Warsaw"
	DefaultDataFile      = "./data.json"
	DefaultBackupDir     = "./backups"
	DefaultPort          = 8000
)

// Default returns a fully populated configuration.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{PollTimeout: "10s"},
		Channels: ChannelsConfig{
			Boss:   DefaultBossChannel,
			Event:  DefaultEventChannel,
			Vault:  DefaultVaultChannel,
			Notice: DefaultNoticeChannel,
		},
		Data: DataConfig{
			File:         DefaultDataFile,
			BackupDir:    DefaultBackupDir,
			BackupPrefix: "data",
			MaxBackups:   2,
		},
		Reminder: ReminderConfig{
			Timezone:    DefaultTimezone,
			LeadTime:    "15m",
			LedgerReset: "date_change",
		},
		Schedule: ScheduleConfig{
			Tick:    "* * * * *",
			Backup:  "0 */12 * * *",
			Reports: "0 0,6,12,18 * * *",
			Vault:   []string{"0 9 * * 0,1", "0 21 * * 0,1"},
		},
		HTTP: HTTPConfig{Enabled: true, Port: DefaultPort},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Chat:    LoggingChat{MinLevel: "error", RatePerSec: 1},
		},
		Notifier: NotifierConfig{
			Enabled:     true,
			Workers:     2,
			QueueSize:   512,
			RatePerSec:  3,
			SendTimeout: "10s",
		},
		Storage:  StorageConfig{Driver: "file", Path: "./bosstimer_store"},
		Commands: CommandsConfig{Workers: 1, Timeout: "10s"},
	}
}
