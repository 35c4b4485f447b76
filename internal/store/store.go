package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is the durable persistence layer: ingested events plus the
// per-plugin key-value storage exposed to event hooks.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	InsertEvent(ctx context.Context, e Event) (bool, error)
	CountEvents(ctx context.Context, tenantID, eventName string, from, to time.Time) (int64, error)

	KV
}

// KV stores JSON values under (plugin, key).
type KV interface {
	// GetValue returns found=false when no value is stored.
	GetValue(ctx context.Context, plugin, key string) (value json.RawMessage, found bool, err error)
	SetValue(ctx context.Context, plugin, key string, value json.RawMessage) error
}

// Event is one persisted ingestion record.
type Event struct {
	TenantID   string
	EventID    string
	EventName  string
	DistinctID string
	Timestamp  time.Time
	Properties json.RawMessage
}

func (e Event) validate() error {
	if e.TenantID == "" || e.EventID == "" || e.EventName == "" {
		return fmt.Errorf("tenantID/eventID/eventName required")
	}
	return nil
}

func (e Event) propertiesJSON() []byte {
	if len(e.Properties) == 0 || string(e.Properties) == "null" {
		return []byte("{}")
	}
	return e.Properties
}

// Open connects to the backend named by driver ("postgres" or "sqlite").
// dsn is a Postgres URL or a SQLite file path.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		st, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite":
		st, err := NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
