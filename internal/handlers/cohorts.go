package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/cohort-sync-service/internal/cohortsync"
	"github.com/PratikDhanave/cohort-sync-service/internal/jobs"
	"github.com/PratikDhanave/cohort-sync-service/internal/models"
)

// RegisterCohortRoutes exposes the hook's bookkeeping.
//
// GET /cohorts/status?property=...&value=...  dedup record for one pair
// GET /cohorts/retries                        retries waiting on their delay
func RegisterCohortRoutes(r gin.IRoutes, storage cohortsync.Storage, queue *jobs.Queue) {
	r.GET("/cohorts/status", func(c *gin.Context) {
		property := c.Query("property")
		value, hasValue := c.GetQuery("value")
		if property == "" || !hasValue {
			c.JSON(http.StatusBadRequest, gin.H{"error": "property and value are required"})
			return
		}

		key := cohortsync.DedupKey(property, value)
		v, err := storage.Get(c.Request.Context(), key, false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage read failed"})
			return
		}
		created, _ := v.(bool)

		c.JSON(http.StatusOK, models.CohortStatusResponse{
			Property: property,
			Value:    value,
			Key:      key,
			Created:  created,
		})
	})

	r.GET("/cohorts/retries", func(c *gin.Context) {
		type retry struct {
			ID      string              `json:"id"`
			RunAt   string              `json:"run_at"`
			Payload cohortsync.RetryJob `json:"payload"`
		}

		out := []retry{}
		if queue != nil {
			for _, t := range queue.Pending() {
				if t.Name != cohortsync.RetryJobName {
					continue
				}
				var job cohortsync.RetryJob
				if err := json.Unmarshal(t.Payload, &job); err != nil {
					continue
				}
				out = append(out, retry{
					ID:      t.ID.String(),
					RunAt:   t.RunAt.UTC().Format(time.RFC3339),
					Payload: job,
				})
			}
		}

		c.JSON(http.StatusOK, gin.H{"retries": out})
	})
}
