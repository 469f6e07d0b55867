// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Versioned schema: missing collections are created on upgrade, never dropped

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Driver names accepted by WithDriver.
const (
	DriverModernc = "sqlite"  // pure Go, always available
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3, only in cgo builds
)

// migrations[v-1] creates the collections introduced by schema version v.
// Every statement must be idempotent.
var migrations = []string{
	// v1: settings and post markers
	`
		CREATE TABLE IF NOT EXISTS options (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY,
			op INTEGER NOT NULL DEFAULT 0,
			hidden INTEGER NOT NULL DEFAULT 0,
			seen INTEGER NOT NULL DEFAULT 0,
			mine INTEGER NOT NULL DEFAULT 0,
			expires INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_posts_op ON posts(op);
		CREATE INDEX IF NOT EXISTS idx_posts_expires ON posts(expires);
	`,
	// v2: thread and board caches
	`
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`,
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db      *sql.DB
	version int
	logger  *slog.Logger
}

type openOptions struct {
	driver string
	logger *slog.Logger
}

// Option customizes NewSQLiteStore.
type Option func(*openOptions)

// WithDriver selects the database/sql driver. Defaults to DriverModernc.
func WithDriver(name string) Option {
	return func(o *openOptions) {
		if name != "" {
			o.driver = name
		}
	}
}

// WithLogger sets the parent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewSQLiteStore opens the store at path, upgrading the schema when the stored
// version is older than SchemaVersion. Parent directories are created if
// needed. Use ":memory:" for a throwaway store.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := openOptions{driver: DriverModernc, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &Error{Op: "open", Err: fmt.Errorf("%w: creating database directory: %w", ErrUnavailable, err)}
		}
	}

	db, err := sql.Open(o.driver, path)
	if err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}

	// One connection: an in-memory database is per-connection, and every
	// caller is serialized through it anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("enabling WAL mode: %w", err)}
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.upgrade(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized", "path", path, "driver", o.driver, "version", s.version)
	return s, nil
}

// upgrade brings the schema to SchemaVersion. Same-version opens touch nothing.
func (s *SQLiteStore) upgrade(ctx context.Context) error {
	var stored int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&stored); err != nil {
		return &Error{Op: "open", Err: fmt.Errorf("reading schema version: %w", err)}
	}

	if stored > SchemaVersion {
		return &Error{Op: "open", Err: fmt.Errorf("%w: stored %d, supported %d", ErrBlocked, stored, SchemaVersion)}
	}
	if stored == SchemaVersion {
		s.version = stored
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: "upgrade", Err: err}
	}
	defer tx.Rollback()

	for v := stored + 1; v <= SchemaVersion; v++ {
		if _, err := tx.ExecContext(ctx, migrations[v-1]); err != nil {
			return &Error{Op: "upgrade", Err: fmt.Errorf("applying version %d: %w", v, err)}
		}
		s.logger.Info("applied schema migration", "version", v)
	}

	// PRAGMA does not accept bound parameters
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return &Error{Op: "upgrade", Err: fmt.Errorf("writing schema version: %w", err)}
	}
	if err := tx.Commit(); err != nil {
		return &Error{Op: "upgrade", Err: err}
	}

	s.version = SchemaVersion
	return nil
}

// Version returns the schema version the store was opened at.
func (s *SQLiteStore) Version() int {
	return s.version
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Get returns the record stored under key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, c Collection, key string) ([]byte, error) {
	if !c.Valid() {
		return nil, &Error{Op: "get", Collection: c, Key: key, Err: ErrUnknownCollection}
	}
	if c == CollectionPosts {
		id, err := parsePostKey(key)
		if err != nil {
			return nil, &Error{Op: "get", Collection: c, Key: key, Err: err}
		}
		m, err := s.GetPost(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(m)
	}

	var data []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", c)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Op: "get", Collection: c, Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "get", Collection: c, Key: key, Err: err}
	}
	return data, nil
}

// Put upserts data under key.
func (s *SQLiteStore) Put(ctx context.Context, c Collection, key string, data []byte) error {
	if !c.Valid() {
		return &Error{Op: "put", Collection: c, Key: key, Err: ErrUnknownCollection}
	}
	if c == CollectionPosts {
		var m PostMarker
		if err := json.Unmarshal(data, &m); err != nil {
			return &Error{Op: "put", Collection: c, Key: key, Err: fmt.Errorf("decoding post marker: %w", err)}
		}
		return s.PutPost(ctx, &m)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, c)
	_, err := s.db.ExecContext(ctx, query, key, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return &Error{Op: "put", Collection: c, Key: key, Err: err}
	}
	s.logger.Debug("put record", "collection", c, "key", key)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, c Collection, key string) error {
	if !c.Valid() {
		return &Error{Op: "delete", Collection: c, Key: key, Err: ErrUnknownCollection}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", c), key); err != nil {
		return &Error{Op: "delete", Collection: c, Key: key, Err: err}
	}
	return nil
}

// Keys lists every key in c in ascending order.
func (s *SQLiteStore) Keys(ctx context.Context, c Collection) ([]string, error) {
	if !c.Valid() {
		return nil, &Error{Op: "keys", Collection: c, Err: ErrUnknownCollection}
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY id", c))
	if err != nil {
		return nil, &Error{Op: "keys", Collection: c, Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, &Error{Op: "keys", Collection: c, Err: err}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "keys", Collection: c, Err: err}
	}
	return keys, nil
}

// Clear removes every record in c.
func (s *SQLiteStore) Clear(ctx context.Context, c Collection) error {
	if !c.Valid() {
		return &Error{Op: "clear", Collection: c, Err: ErrUnknownCollection}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c)); err != nil {
		return &Error{Op: "clear", Collection: c, Err: err}
	}
	s.logger.Debug("cleared collection", "collection", c)
	return nil
}

// PutPost upserts a post marker.
func (s *SQLiteStore) PutPost(ctx context.Context, m *PostMarker) error {
	query := `
		INSERT INTO posts (id, op, hidden, seen, mine, expires) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			op = excluded.op,
			hidden = excluded.hidden,
			seen = excluded.seen,
			mine = excluded.mine,
			expires = excluded.expires
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.OP,
		boolInt(m.Hidden),
		boolInt(m.Seen),
		boolInt(m.Mine),
		nullMillis(m.Expires),
	)
	if err != nil {
		return &Error{Op: "put", Collection: CollectionPosts, Key: m.Key(), Err: err}
	}
	return nil
}

// GetPost returns the marker for id, or ErrNotFound.
func (s *SQLiteStore) GetPost(ctx context.Context, id uint64) (*PostMarker, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, op, hidden, seen, mine, expires FROM posts WHERE id = ?`, id)
	m, err := scanMarker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Op: "get", Collection: CollectionPosts, Key: PostKey(id), Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "get", Collection: CollectionPosts, Key: PostKey(id), Err: err}
	}
	return m, nil
}

// HiddenPosts returns every marker with the hidden flag set, ordered by ID.
func (s *SQLiteStore) HiddenPosts(ctx context.Context) ([]*PostMarker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, op, hidden, seen, mine, expires FROM posts WHERE hidden = 1 ORDER BY id`)
	if err != nil {
		return nil, &Error{Op: "list", Collection: CollectionPosts, Err: err}
	}
	defer rows.Close()

	var markers []*PostMarker
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, &Error{Op: "list", Collection: CollectionPosts, Err: err}
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list", Collection: CollectionPosts, Err: err}
	}
	return markers, nil
}

// ClearHidden drops the hidden flag from every marker. Markers left without
// any flag are deleted; seen and mine markers are kept.
func (s *SQLiteStore) ClearHidden(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: "clear hidden", Collection: CollectionPosts, Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM posts WHERE hidden = 1 AND seen = 0 AND mine = 0`); err != nil {
		return &Error{Op: "clear hidden", Collection: CollectionPosts, Err: err}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE posts SET hidden = 0 WHERE hidden = 1`); err != nil {
		return &Error{Op: "clear hidden", Collection: CollectionPosts, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &Error{Op: "clear hidden", Collection: CollectionPosts, Err: err}
	}
	return nil
}

// PruneExpired deletes markers whose expiry is at or before now.
func (s *SQLiteStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM posts WHERE expires IS NOT NULL AND expires <= ?`, now.UnixMilli())
	if err != nil {
		return 0, &Error{Op: "prune", Collection: CollectionPosts, Err: err}
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug("pruned expired post markers", "count", n)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarker(row rowScanner) (*PostMarker, error) {
	var m PostMarker
	var hidden, seen, mine int
	var expires sql.NullInt64
	if err := row.Scan(&m.ID, &m.OP, &hidden, &seen, &mine, &expires); err != nil {
		return nil, err
	}
	m.Hidden = hidden != 0
	m.Seen = seen != 0
	m.Mine = mine != 0
	if expires.Valid {
		m.Expires = time.UnixMilli(expires.Int64)
	}
	return &m, nil
}

func parsePostKey(key string) (uint64, error) {
	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q", key)
	}
	return id, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullMillis stores a zero time as NULL (never expires).
func nullMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
