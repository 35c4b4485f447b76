package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the Postgres implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// InsertEvent persists an event and returns inserted=false when it is a duplicate.
//
// Duplicate detection is enforced by the database constraint on (tenant_id, event_id),
// which is compatible with retries and at-least-once delivery.
func (p *PostgresStore) InsertEvent(ctx context.Context, e Event) (bool, error) {
	if err := e.validate(); err != nil {
		return false, err
	}

	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err := p.pool.QueryRow(ctx, `
		INSERT INTO events(tenant_id, event_id, event_name, distinct_id, ts, properties)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (tenant_id, event_id) DO NOTHING
		RETURNING 1
	`, e.TenantID, e.EventID, e.EventName, e.DistinctID, e.Timestamp.UTC(), e.propertiesJSON()).Scan(&one)

	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// CountEvents returns the number of events for (tenantID, eventName) in the time window [from,to).
func (p *PostgresStore) CountEvents(ctx context.Context, tenantID, eventName string, from, to time.Time) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM events
		WHERE tenant_id=$1
		  AND event_name=$2
		  AND ts >= $3
		  AND ts <  $4
	`, tenantID, eventName, from, to).Scan(&count)

	return count, err
}

// GetValue reads a plugin storage value.
func (p *PostgresStore) GetValue(ctx context.Context, plugin, key string) (json.RawMessage, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM plugin_storage WHERE plugin=$1 AND key=$2`,
		plugin, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

// SetValue upserts a plugin storage value.
func (p *PostgresStore) SetValue(ctx context.Context, plugin, key string, value json.RawMessage) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO plugin_storage(plugin, key, value, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (plugin, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, plugin, key, []byte(value))
	return err
}
