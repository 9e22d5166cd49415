// Package backup keeps a bounded set of snapshots of the live data file and
// restores the newest one when the live file is missing or empty.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bosstimer/internal/eventbus"
	"bosstimer/internal/telemetry"
	kit "bosstimer/internal/transport"
	logx "bosstimer/pkg/logx"
)

// ErrNotReady is returned by CreateBackup until RestoreLatestBackup has run.
var ErrNotReady = errors.New("backup: manager not initialized")

const (
	DefaultPrefix     = "data"
	DefaultMaxBackups = 2

	stampLayout = "2006-01-02T15:04:05.000Z"

	maxNameAttempts = 1000
	emptyDoc    = "{}"
)

type Config struct {
	LivePath      string
	Dir           string
	Prefix        string
	MaxBackups    int
	NoticeChannel string
}

// Notifier is the subset of the notifier used for the backup notice.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

type Snapshot struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

type Option func(*Manager)

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }
func WithBus(b eventbus.Bus) Option { return func(m *Manager) { m.bus = b } }
func WithNow(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

type Manager struct {
	mu  sync.Mutex
	cfg Config

	log      logx.Logger
	lock     sync.Locker
	now      func() time.Time
	notifier Notifier
	bus      eventbus.Bus

	ready atomic.Bool
}

// New builds a manager. lock guards the live file and must be the same lock
// the state store writes under; nil uses a private mutex.
func New(cfg Config, lock sync.Locker, log logx.Logger, opts ...Option) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}
	m := &Manager{cfg: withDefaults(cfg), log: log, lock: lock, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func withDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	return cfg
}

// Apply updates retention and the notice channel. Paths are fixed at start.
func (m *Manager) Apply(maxBackups int, noticeChannel string) {
	m.mu.Lock()
	if maxBackups > 0 {
		m.cfg.MaxBackups = maxBackups
	}
	m.cfg.NoticeChannel = noticeChannel
	m.mu.Unlock()
}

func (m *Manager) config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *Manager) Ready() bool { return m.ready.Load() }

// CreateBackup copies the live file into a new snapshot and prunes the
// oldest ones beyond MaxBackups. A missing live file is first recreated as
// "{}". Pruning failures are logged and do not fail the call.
func (m *Manager) CreateBackup(ctx context.Context) (string, error) {
	if !m.ready.Load() {
		return "", ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cfg := m.config()

	path, err := m.snapshot(cfg)
	if err != nil {
		telemetry.IncBackup(false)
		m.log.Error("backup failed", logx.String("dir", cfg.Dir), logx.Err(err))
		return "", err
	}
	telemetry.IncBackup(true)
	m.log.Info("backup created", logx.String("path", path))
	eventbus.Publish(m.bus, eventbus.TypeBackupCreated, path)

	m.prune(cfg)

	if m.notifier != nil && cfg.NoticeChannel != "" {
		n := kit.Notification{Destination: cfg.NoticeChannel, Kind: "backup_notice", Text: "💾 Backup został wykonany pomyślnie"}
		if err := m.notifier.Notify(ctx, n); err != nil {
			m.log.Warn("backup notice failed", logx.String("dest", cfg.NoticeChannel), logx.Err(err))
		}
	}
	return path, nil
}

func (m *Manager) snapshot(cfg Config) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, err := os.Stat(cfg.LivePath); errors.Is(err, fs.ErrNotExist) {
		m.log.Warn("live file missing; recreating empty document", logx.String("path", cfg.LivePath))
		if err := writeAtomic(cfg.LivePath, []byte(emptyDoc)); err != nil {
			return "", fmt.Errorf("recreate live file: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	data, err := os.ReadFile(cfg.LivePath)
	if err != nil {
		return "", fmt.Errorf("read live file: %w", err)
	}

	at := m.now().UTC()
	dst := filepath.Join(cfg.Dir, snapshotName(cfg.Prefix, at))
	for attempt := 0; ; attempt++ {
		_, err := os.Stat(dst)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stat snapshot: %w", err)
		}
		if attempt >= maxNameAttempts {
			return "", fmt.Errorf("no free snapshot name after %d attempts", maxNameAttempts)
		}
		at = at.Add(time.Millisecond)
		dst = filepath.Join(cfg.Dir, snapshotName(cfg.Prefix, at))
	}
	if err := writeAtomic(dst, data); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return dst, nil
}

func (m *Manager) prune(cfg Config) {
	snaps, err := list(cfg)
	if err != nil {
		m.log.Warn("backup list failed", logx.String("dir", cfg.Dir), logx.Err(err))
		return
	}
	if len(snaps) <= cfg.MaxBackups {
		return
	}
	for _, s := range snaps[cfg.MaxBackups:] {
		if err := os.Remove(s.Path); err != nil {
			m.log.Warn("backup prune failed", logx.String("path", s.Path), logx.Err(err))
			continue
		}
		m.log.Debug("backup pruned", logx.String("path", s.Path))
	}
}

// RestoreLatestBackup copies the newest snapshot over the live file when the
// live file is missing, blank or "{}". It reports whether a restore happened.
// The manager becomes ready whatever the outcome.
func (m *Manager) RestoreLatestBackup(ctx context.Context) (bool, error) {
	defer m.ready.Store(true)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cfg := m.config()

	m.lock.Lock()
	defer m.lock.Unlock()

	if b, err := os.ReadFile(cfg.LivePath); err == nil && !isEmptyDocument(b) {
		m.log.Debug("live file present; restore skipped", logx.String("path", cfg.LivePath))
		return false, nil
	}

	snaps, err := list(cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("list backups: %w", err)
	}
	if len(snaps) == 0 {
		m.log.Info("no backups to restore", logx.String("dir", cfg.Dir))
		return false, nil
	}
	newest := snaps[0]
	data, err := os.ReadFile(newest.Path)
	if err != nil {
		return false, fmt.Errorf("read backup: %w", err)
	}
	if err := writeAtomic(cfg.LivePath, data); err != nil {
		return false, fmt.Errorf("restore live file: %w", err)
	}
	telemetry.IncRestore()
	eventbus.Publish(m.bus, eventbus.TypeBackupRestored, newest.Path)
	m.log.Info("live file restored from backup", logx.String("from", newest.Path), logx.String("to", cfg.LivePath))
	return true, nil
}

// List returns snapshots newest first.
func (m *Manager) List() ([]Snapshot, error) {
	return list(m.config())
}

func list(cfg Config) ([]Snapshot, error) {
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, err
	}
	prefix := cfg.Prefix + "_backup_"
	var out []Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Name: name, Path: filepath.Join(cfg.Dir, name), ModTime: info.ModTime(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func snapshotName(prefix string, at time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format(stampLayout))
	return prefix + "_backup_" + stamp + ".json"
}

func isEmptyDocument(b []byte) bool {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return false
	}
	return buf.String() == emptyDoc
}

func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
