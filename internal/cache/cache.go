// Package cache stores raw engine reports in sqlite, keyed by the identity
// of the analysed file and the options it was analysed with.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/jmoiron/sqlx"
	"github.com/jxskiss/base62"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no report is stored under a key.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one stored report.
type Entry struct {
	Key     string    `db:"key"`
	Source  string    `db:"source"`
	Engine  string    `db:"engine"`
	Report  string    `db:"report"`
	Created time.Time `db:"created"`
}

// Store is a sqlite backed report cache.
type Store struct {
	// Read db handle
	read *sqlx.DB
	// Handle specifically for writes
	write *sqlx.DB
}

// Open opens or creates the cache database at filename.
func Open(filename string) (*Store, error) {
	if filename == "" {
		return nil, fmt.Errorf("cache filename not set")
	}

	read, err := sqlx.Connect("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", filename, err)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))

	write, err := sqlx.Connect("sqlite3", filename)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("open cache %s: %w", filename, err)
	}
	// sqlite needs to have a single writer
	write.SetMaxOpenConns(1)

	if err := initSchema(write); err != nil {
		read.Close()
		write.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &Store{read: read, write: write}, nil
}

func initSchema(db *sqlx.DB) error {
	schema := []string{
		`PRAGMA journal_mode = WAL;`,

		`CREATE TABLE IF NOT EXISTS reports (
key TEXT NOT NULL PRIMARY KEY,
source TEXT NOT NULL,
engine TEXT NOT NULL,
report TEXT NOT NULL,
created DATETIME NOT NULL);`,

		`CREATE INDEX IF NOT EXISTS reports_source_idx ON reports (source);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes both database handles.
func (s *Store) Close() error {
	return errors.Join(s.read.Close(), s.write.Close())
}

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, key string) (Entry, error) {
	const query = `SELECT key, source, engine, report, created FROM reports WHERE key = ?`
	var e Entry
	err := s.read.GetContext(ctx, &e, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Put stores an entry, replacing any entry with the same key. A zero
// Created is set to the current time.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if e.Created.IsZero() {
		e.Created = time.Now()
	}
	e.Created = e.Created.UTC()
	const query = `REPLACE INTO reports (key, source, engine, report, created) VALUES (:key, :source, :engine, :report, :created)`
	_, err := s.write.NamedExecContext(ctx, query, e)
	return err
}

// Delete removes the entry stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM reports WHERE key = ?`
	_, err := s.write.ExecContext(ctx, query, key)
	return err
}

// Forget removes every entry recorded for source.
func (s *Store) Forget(ctx context.Context, source string) (int64, error) {
	const query = `DELETE FROM reports WHERE source = ?`
	res, err := s.write.ExecContext(ctx, query, source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Purge removes entries created before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM reports WHERE created < ?`
	res, err := s.write.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.read.GetContext(ctx, &n, `SELECT COUNT(*) FROM reports`)
	return n, err
}

// Key identifies a local file as it is now: its absolute path, size,
// modification time and, where the platform records it, change time,
// combined with an options fingerprint. Any change to the file or the
// options yields a different key.
func Key(path, fingerprint string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	ts, err := times.Stat(abs)
	if err != nil {
		return "", err
	}

	parts := []string{
		abs,
		strconv.FormatInt(fi.Size(), 10),
		strconv.FormatInt(ts.ModTime().UnixNano(), 10),
	}
	if ts.HasChangeTime() {
		parts = append(parts, strconv.FormatInt(ts.ChangeTime().UnixNano(), 10))
	}
	parts = append(parts, fingerprint)

	return hash(strings.Join(parts, "\x00")), nil
}

// hash returns a base62-encoded id, based upon sha256 of s.
func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base62.StdEncoding.EncodeToString(sum[:16])
}
