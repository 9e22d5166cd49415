package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables recognized on top of the config file.
const (
	EnvToken         = "TOKEN"
	EnvPort          = "PORT"
	EnvBossChannel   = "CHANNEL_RESP"
	EnvEventChannel  = "CHANNEL_EVENT"
	EnvVaultChannel  = "CHANNEL_VAULT"
	EnvNoticeChannel = "CHANNEL_NOTICE"
	EnvTimezone      = "TZ_TARGET"
	EnvDataFile      = "DATA_FILE"
	EnvBackupDir     = "BACKUP_DIR"
	EnvLogLevel      = "LOG_LEVEL"
	EnvConfigPath    = "CONFIG"
)

// LoadDotEnv loads .env style files into the process environment. Variables
// already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with non-empty environment variables.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, EnvToken)
	set(&cfg.Channels.Boss, EnvBossChannel)
	set(&cfg.Channels.Event, EnvEventChannel)
	set(&cfg.Channels.Vault, EnvVaultChannel)
	set(&cfg.Channels.Notice, EnvNoticeChannel)
	set(&cfg.Reminder.Timezone, EnvTimezone)
	set(&cfg.Data.File, EnvDataFile)
	set(&cfg.Data.BackupDir, EnvBackupDir)
	set(&cfg.Logging.Level, EnvLogLevel)

	if v := strings.TrimSpace(getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		cfg.HTTP.Port = port
	}
	return nil
}
