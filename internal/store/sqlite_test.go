package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cohorts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func TestSQLite_EnsureSchemaIsIdempotent(t *testing.T) {
	st := openTestSQLite(t)
	require.NoError(t, st.EnsureSchema(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	require.Error(t, err)
}

func TestSQLite_InsertEventDetectsDuplicates(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	e := Event{
		TenantID:   "tenant1",
		EventID:    "evt-1",
		EventName:  "signup",
		Timestamp:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Properties: json.RawMessage(`{"$set":{"plan":"pro"}}`),
	}

	inserted, err := st.InsertEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = st.InsertEvent(ctx, e)
	require.NoError(t, err)
	assert.False(t, inserted)

	e.TenantID = "tenant2"
	inserted, err = st.InsertEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted, "event ids are scoped per tenant")
}

func TestSQLite_InsertEventValidates(t *testing.T) {
	st := openTestSQLite(t)
	_, err := st.InsertEvent(context.Background(), Event{TenantID: "t", EventName: "x"})
	require.Error(t, err)
}

func TestSQLite_CountEventsUsesHalfOpenWindow(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{base, base.Add(30 * time.Minute), base.Add(time.Hour)} {
		_, err := st.InsertEvent(ctx, Event{
			TenantID:  "tenant1",
			EventID:   string(rune('a' + i)),
			EventName: "login",
			Timestamp: ts,
		})
		require.NoError(t, err)
	}

	count, err := st.CountEvents(ctx, "tenant1", "login", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = st.CountEvents(ctx, "tenant2", "login", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLite_KeyValue(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	_, found, err := st.GetValue(ctx, "automatic-cohorts", "plan_pro")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, st.SetValue(ctx, "automatic-cohorts", "plan_pro", json.RawMessage(`false`)))
	require.NoError(t, st.SetValue(ctx, "automatic-cohorts", "plan_pro", json.RawMessage(`true`)))

	v, found, err := st.GetValue(ctx, "automatic-cohorts", "plan_pro")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `true`, string(v))

	_, found, err = st.GetValue(ctx, "other-plugin", "plan_pro")
	require.NoError(t, err)
	assert.False(t, found, "values are scoped per plugin")
}

func TestOpen_SelectsDriver(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	assert.IsType(t, &SQLiteStore{}, st)

	_, err = Open(context.Background(), "mysql", "whatever")
	require.Error(t, err)
}
