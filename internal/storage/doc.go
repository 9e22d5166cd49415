// Package storage records operator actions (the audit log).
//
// Two backends are available: an append-only JSON Lines file and a SQLite
// database (modernc.org/sqlite, pure Go). The reminder state itself lives in
// the data file owned by package state, not here.
package storage
