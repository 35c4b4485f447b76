package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/PratikDhanave/cohort-sync-service/internal/auth"
	"github.com/PratikDhanave/cohort-sync-service/internal/cohortsync"
	"github.com/PratikDhanave/cohort-sync-service/internal/models"
	"github.com/PratikDhanave/cohort-sync-service/internal/store"
)

// EventHook runs for every ingested event after it is persisted.
type EventHook interface {
	OnEvent(ctx context.Context, ev models.PluginEvent) error
}

// parseRFC3339 parses an RFC3339 timestamp and normalizes it to UTC.
func parseRFC3339(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// objectOrAbsent reports whether raw is missing, null, or a JSON object.
func objectOrAbsent(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	r := gjson.ParseBytes(raw)
	return r.Type == gjson.Null || r.IsObject()
}

// RegisterEventRoutes registers the ingestion-path endpoint.
//
// POST /events
// - Requires X-API-Key (tenant context)
// - Durable: the event is written before the hook runs
// - Idempotent: duplicates detected via (tenant_id, event_id) uniqueness
// - The hook runs for duplicates too; it keeps its own dedup records
// - Hook failures: 502 for a rejected cohort request, 500 otherwise
func RegisterEventRoutes(r gin.IRoutes, st store.Store, hook EventHook) {
	r.POST("/events", func(c *gin.Context) {
		tenantID := auth.TenantID(c)
		if tenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req models.EventIngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		// Required fields per contract.
		if req.EventName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_name required"})
			return
		}
		if req.Timestamp == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp required"})
			return
		}
		if !objectOrAbsent(req.Properties) || !objectOrAbsent(req.Set) || !objectOrAbsent(req.SetOnce) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "properties, $set and $set_once must be objects"})
			return
		}

		ts, err := parseRFC3339(req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
			return
		}

		// Idempotency precedence:
		// 1) Idempotency-Key header (recommended for retries)
		// 2) event_id in payload
		// 3) generated UUID (fallback; cannot dedupe client retries)
		eventID := c.GetHeader("Idempotency-Key")
		if eventID == "" {
			eventID = req.EventID
		}
		if eventID == "" {
			eventID = uuid.New().String()
		}

		inserted, err := st.InsertEvent(c.Request.Context(), store.Event{
			TenantID:   tenantID,
			EventID:    eventID,
			EventName:  req.EventName,
			DistinctID: req.DistinctID,
			Timestamp:  ts,
			Properties: req.Properties,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db insert failed"})
			return
		}

		if hook != nil {
			if err := hook.OnEvent(c.Request.Context(), req.PluginEvent(tenantID, eventID)); err != nil {
				log.Printf("ERROR: event hook failed for %s/%s: %v", tenantID, eventID, err)

				var cerr *cohortsync.CreationError
				if errors.As(err, &cerr) {
					c.JSON(http.StatusBadGateway, gin.H{
						"error":    "cohort creation failed",
						"status":   cerr.Status,
						"event_id": eventID,
					})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "event hook failed", "event_id": eventID})
				return
			}
		}

		// 201 for new events, 200 for duplicates (idempotent success).
		status := http.StatusCreated
		dup := false
		if !inserted {
			status = http.StatusOK
			dup = true
		}

		c.JSON(status, models.EventIngestResponse{
			EventID:   eventID,
			Duplicate: dup,
		})
	})
}
