package config

// Config is the bot configuration. Every field has a default; a config file
// is optional and environment variables override both.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "15m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Channels ChannelsConfig `json:"channels"`
	Data     DataConfig     `json:"data"`
	Reminder ReminderConfig `json:"reminder"`
	Schedule ScheduleConfig `json:"schedule"`
	HTTP     HTTPConfig     `json:"http"`
	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier"`
	Storage  StorageConfig  `json:"storage"`
	Commands CommandsConfig `json:"commands"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout (default "10s").
	PollTimeout string `json:"poll_timeout"`
	// ChatIDs pins channel names to chat ids. Names not listed here are
	// learned from chat titles of incoming messages.
	ChatIDs map[string]int64 `json:"chat_ids,omitempty"`
}

// ChannelsConfig names the destination channels.
type ChannelsConfig struct {
	Boss   string `json:"boss"`
	Event  string `json:"event"`
	Vault  string `json:"vault"`
	Notice string `json:"notice"` // backup notices; empty disables them
	Log    string `json:"log"`    // WARN+ log lines when logging.chat is enabled
}

type DataConfig struct {
	File         string `json:"file"`
	BackupDir    string `json:"backup_dir"`
	BackupPrefix string `json:"backup_prefix"`
	MaxBackups   int    `json:"max_backups"`
}

type ReminderConfig struct {
	Timezone string `json:"timezone"`
	LeadTime string `json:"lead_time"`
	// LedgerReset is "date_change" (default) or "legacy" (clear at 00:01 only).
	LedgerReset string `json:"ledger_reset"`
}

// ScheduleConfig holds cron specs (5 fields, or 6 with seconds).
type ScheduleConfig struct {
	Tick    string   `json:"tick"`
	Backup  string   `json:"backup"`
	Reports string   `json:"reports"` // empty disables periodic reports
	Vault   []string `json:"vault"`   // treasury reminders; empty disables them
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// NotifierConfig controls the async notification pipeline.
type NotifierConfig struct {
	Enabled     bool   `json:"enabled"`
	Workers     int    `json:"workers"`
	QueueSize   int    `json:"queue_size"`
	RatePerSec  int    `json:"rate_per_sec"`
	SendTimeout string `json:"send_timeout"`
}

// StorageConfig controls the operator audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./bosstimer.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // "file", "sqlite" or "none"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type CommandsConfig struct {
	Workers int    `json:"workers"`
	Timeout string `json:"timeout"`
}
