package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// PluginStorage scopes a KV to a single plugin and speaks in decoded values:
// Get returns the default on a miss, Set JSON-encodes the value.
type PluginStorage struct {
	kv     KV
	plugin string
}

// NewPluginStorage returns the storage accessor for plugin.
func NewPluginStorage(kv KV, plugin string) *PluginStorage {
	return &PluginStorage{kv: kv, plugin: plugin}
}

// Get returns the stored value for key or defaultValue when absent.
func (p *PluginStorage) Get(ctx context.Context, key string, defaultValue any) (any, error) {
	raw, found, err := p.kv.GetValue(ctx, p.plugin, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return defaultValue, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode storage value %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (p *PluginStorage) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode storage value %s: %w", key, err)
	}
	return p.kv.SetValue(ctx, p.plugin, key, raw)
}
