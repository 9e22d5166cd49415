// Package state owns the persisted bot document: active boss timers and
// recurring event series.
//
// All reads and writes of the in-memory document and of the data file go
// through one Store mutex. Each mutation is followed by a full rewrite of the
// file (temp file + rename), so the file always holds a complete document.
package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"bosstimer/internal/telemetry"
	logx "bosstimer/pkg/logx"
)

type Store struct {
	path string
	log  logx.Logger

	mu  sync.Mutex
	doc Document
}

func New(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log, doc: Empty()}
}

func (s *Store) Path() string { return s.path }

// Locker exposes the file lock so callers copying the data file never observe
// a partial write.
func (s *Store) Locker() sync.Locker { return &s.mu }

// Load reads the data file into memory. A missing or unparsable file yields
// an empty document; the error is logged, never returned.
func (s *Store) Load() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = s.readLocked()
	telemetry.SetStateSize(len(s.doc.Bosses), len(s.doc.Events))
	return s.doc.Clone()
}

func (s *Store) readLocked() Document {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("state read failed; starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return Empty()
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		s.log.Warn("state parse failed; starting empty", logx.String("path", s.path), logx.Err(err))
		return Empty()
	}
	if dropped := doc.normalize(); dropped > 0 {
		s.log.Warn("state entries dropped on load", logx.String("path", s.path), logx.Int("dropped", dropped))
	}
	return doc
}

// Save replaces the in-memory document and rewrites the file.
func (s *Store) Save(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone()
	s.writeLocked()
}

// Mutate runs fn with exclusive access to the document. When fn reports a
// change the file is rewritten before the lock is released.
func (s *Store) Mutate(fn func(*Document) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(&s.doc) {
		return false
	}
	s.writeLocked()
	return true
}

// View runs fn against the current document under the lock. fn must not
// retain or modify it.
func (s *Store) View(fn func(Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *Store) writeLocked() {
	telemetry.SetStateSize(len(s.doc.Bosses), len(s.doc.Events))
	if err := writeAtomic(s.path, s.doc); err != nil {
		telemetry.IncStateWrite(false)
		s.log.Error("state write failed", logx.String("path", s.path), logx.Err(err))
		return
	}
	telemetry.IncStateWrite(true)
}

func writeAtomic(path string, doc Document) error {
	if doc.Bosses == nil {
		doc.Bosses = []BossTimer{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
