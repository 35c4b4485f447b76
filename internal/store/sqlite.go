package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

// SQLiteStore is the single-file SQLite implementation of Store. Timestamps are
// stored as UTC unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureSchema applies schema_sqlite.sql. Safe to run multiple times.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchemaSQL)
	return err
}

// Ping validates the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertEvent persists an event and returns inserted=false when it is a duplicate.
func (s *SQLiteStore) InsertEvent(ctx context.Context, e Event) (bool, error) {
	if err := e.validate(); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events(tenant_id, event_id, event_name, distinct_id, ts, properties, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (tenant_id, event_id) DO NOTHING
	`, e.TenantID, e.EventID, e.EventName, e.DistinctID, toMillis(e.Timestamp),
		string(e.propertiesJSON()), toMillis(time.Now()))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountEvents returns the number of events for (tenantID, eventName) in [from,to).
func (s *SQLiteStore) CountEvents(ctx context.Context, tenantID, eventName string, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM events
		WHERE tenant_id=?
		  AND event_name=?
		  AND ts >= ?
		  AND ts <  ?
	`, tenantID, eventName, toMillis(from), toMillis(to)).Scan(&count)

	return count, err
}

// GetValue reads a plugin storage value.
func (s *SQLiteStore) GetValue(ctx context.Context, plugin, key string) (json.RawMessage, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM plugin_storage WHERE plugin=? AND key=?`,
		plugin, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

// SetValue upserts a plugin storage value.
func (s *SQLiteStore) SetValue(ctx context.Context, plugin, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plugin_storage(plugin, key, value, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT (plugin, key) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at
	`, plugin, key, string(value), toMillis(time.Now()))
	return err
}
