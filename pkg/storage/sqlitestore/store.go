// Package sqlitestore provides a durable storage.Store on top of the pure-Go
// modernc.org/sqlite driver. Several areas (for example "local" and
// "session") can share one database file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formstate/pkg/storage"

	_ "modernc.org/sqlite"
)

// DefaultArea is used when no area is configured.
const DefaultArea = "local"

const schema = `
CREATE TABLE IF NOT EXISTS formstate_items (
	area       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (area, key)
);
`

// Store keeps items of one area in a SQLite table.
type Store struct {
	db    *sql.DB
	area  string
	owned bool
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithArea selects the namespace rows are kept under.
func WithArea(area string) Option {
	return func(s *Store) {
		if area = strings.TrimSpace(area); area != "" {
			s.area = area
		}
	}
}

// WithClock overrides the clock used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the database at path. Use ":memory:" for a private
// in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlitestore: path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// one connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	store, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// New wraps an existing handle and creates the table when missing. The
// caller keeps ownership of db.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlitestore: db is required")
	}
	s := &Store{db: db, area: DefaultArea, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}
	return s, nil
}

// Area returns a Store sharing the same database under another namespace.
func (s *Store) Area(area string) *Store {
	return &Store{db: s.db, area: area, now: s.now}
}

// Name reports the area this store reads and writes.
func (s *Store) Name() string { return s.area }

func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM formstate_items WHERE area = ? AND key = ?`, s.area, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlitestore: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return storage.ErrEmptyKey
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO formstate_items (area, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(area, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.area, key, value, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM formstate_items WHERE area = ? AND key = ?`, s.area, key,
	); err != nil {
		return fmt.Errorf("sqlitestore: remove %q: %w", key, err)
	}
	return nil
}

// Keys lists the area's keys ordered by key.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM formstate_items WHERE area = ? ORDER BY key`, s.area,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// UpdatedAt reports when key was last written.
func (s *Store) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM formstate_items WHERE area = ? AND key = ?`, s.area, key,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlitestore: updated_at %q: %w", key, err)
	}
	return time.UnixMilli(ms), true, nil
}

// Close releases the database when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

var _ storage.Store = (*Store)(nil)
