package models

import "encoding/json"

// EventIngestRequest is the POST /events payload.
// event_id is optional; best practice is to pass Idempotency-Key header for retries.
//
// properties, $set and $set_once are kept as raw JSON so the cohort hook can
// walk their keys in the order the client sent them.
type EventIngestRequest struct {
	EventID    string          `json:"event_id,omitempty"`
	EventName  string          `json:"event_name"`
	DistinctID string          `json:"distinct_id,omitempty"`
	Timestamp  string          `json:"timestamp"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Set        json.RawMessage `json:"$set,omitempty"`
	SetOnce    json.RawMessage `json:"$set_once,omitempty"`
}

// EventIngestResponse is returned by POST /events.
// Duplicate indicates idempotent success (the event already existed).
type EventIngestResponse struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// PluginEvent is the view of an ingested event handed to event hooks.
type PluginEvent struct {
	UUID       string
	Event      string
	DistinctID string
	TenantID   string
	Properties json.RawMessage
	Set        json.RawMessage
	SetOnce    json.RawMessage
}

// PluginEvent builds the hook view of the request once the event ID is known.
func (r EventIngestRequest) PluginEvent(tenantID, eventID string) PluginEvent {
	return PluginEvent{
		UUID:       eventID,
		Event:      r.EventName,
		DistinctID: r.DistinctID,
		TenantID:   tenantID,
		Properties: r.Properties,
		Set:        r.Set,
		SetOnce:    r.SetOnce,
	}
}

// CohortStatusResponse is returned by GET /cohorts/status.
type CohortStatusResponse struct {
	Property string `json:"property"`
	Value    string `json:"value"`
	Key      string `json:"key"`
	Created  bool   `json:"created"`
}

// MetricsResponse is returned by GET /metrics.
type MetricsResponse struct {
	EventName string `json:"event_name"`
	Count     int64  `json:"count"`
}
