package cohortsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/PratikDhanave/cohort-sync-service/internal/models"
	"github.com/PratikDhanave/cohort-sync-service/internal/posthog"
)

// RetryJobName is the job name retries are dispatched under.
const RetryJobName = "retryCreateCohort"

// retryBaseDelay is the wait before the first retry; each retry doubles it.
const retryBaseDelay = 3 * time.Second

// Storage is the persisted key-value store used for dedup records.
type Storage interface {
	Get(ctx context.Context, key string, defaultValue any) (any, error)
	Set(ctx context.Context, key string, value any) error
}

// CohortCreator issues the remote cohort creation call.
type CohortCreator interface {
	CreateCohort(ctx context.Context, req posthog.CohortRequest) (*posthog.Response, error)
}

// Dispatcher schedules a named job to run after a delay.
type Dispatcher interface {
	RunIn(name string, payload any, delay time.Duration) error
}

// RetryJob is the payload of a cohort creation attempt.
type RetryJob struct {
	Property              string `json:"property"`
	Value                 any    `json:"value"`
	RetriesPerformedSoFar int    `json:"retriesPerformedSoFar"`
}

// CreationError reports a non-retryable response from the cohort API.
type CreationError struct {
	Status int
	Body   string
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("Failed to create cohort. Response status: %d", e.Status)
}

// RetryDelay is the wait before the retry following retriesPerformedSoFar
// failed attempts: 3s, 6s, 12s, ... There is no cap; delays that would
// overflow time.Duration saturate at its maximum.
func RetryDelay(retriesPerformedSoFar int) time.Duration {
	if retriesPerformedSoFar < 0 {
		retriesPerformedSoFar = 0
	}
	if retriesPerformedSoFar >= 62 || retryBaseDelay > math.MaxInt64>>retriesPerformedSoFar {
		return time.Duration(math.MaxInt64)
	}
	return retryBaseDelay << retriesPerformedSoFar
}

// CohortSync is the per-event hook. It holds no mutable state of its own.
type CohortSync struct {
	settings *Settings
	storage  Storage
	creator  CohortCreator
	jobs     Dispatcher
}

// New wires the hook. jobs may be nil, in which case 5xx responses are
// reported as a CreationError instead of being retried.
func New(settings *Settings, storage Storage, creator CohortCreator, jobs Dispatcher) *CohortSync {
	return &CohortSync{
		settings: settings,
		storage:  storage,
		creator:  creator,
		jobs:     jobs,
	}
}

// Settings returns the settings the hook was built with.
func (s *CohortSync) Settings() *Settings { return s.settings }

// OnEvent creates a cohort for the first tracked property of ev, if any.
func (s *CohortSync) OnEvent(ctx context.Context, ev models.PluginEvent) error {
	prop, ok := SelectTrackedProperty(ev, s.settings.Tracks)
	if !ok {
		return nil
	}
	return s.CreateCohortFromProperty(ctx, RetryJob{Property: prop.Name, Value: prop.Value})
}

// HandleRetryJob decodes a RetryJob payload and runs the attempt. Its signature
// matches jobs.HandlerFunc.
func (s *CohortSync) HandleRetryJob(ctx context.Context, payload json.RawMessage) error {
	var job RetryJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode %s payload: %w", RetryJobName, err)
	}
	return s.CreateCohortFromProperty(ctx, job)
}

// CreateCohortFromProperty runs one creation attempt for the pair in job.
//
//   - dedup record already true: nothing to do
//   - 2xx: the dedup record is set
//   - 5xx: a retry is scheduled after RetryDelay; the dedup record is untouched
//   - anything else: *CreationError
func (s *CohortSync) CreateCohortFromProperty(ctx context.Context, job RetryJob) error {
	key := DedupKey(job.Property, job.Value)

	created, err := s.storage.Get(ctx, key, false)
	if err != nil {
		return fmt.Errorf("read dedup record %s: %w", key, err)
	}
	if done, _ := created.(bool); done {
		return nil
	}

	name := s.settings.CohortName(job.Property, job.Value)
	resp, err := s.creator.CreateCohort(ctx, posthog.NewPropertyCohort(name, job.Property, job.Value))
	if err != nil {
		return fmt.Errorf("create cohort %q: %w", name, err)
	}

	switch {
	case resp.OK():
		if err := s.storage.Set(ctx, key, true); err != nil {
			return fmt.Errorf("write dedup record %s: %w", key, err)
		}
		log.Printf("created cohort %q (%s)", name, key)
		return nil

	case resp.ServerError() && s.jobs != nil:
		next := job
		next.RetriesPerformedSoFar++
		delay := RetryDelay(job.RetriesPerformedSoFar)
		if err := s.jobs.RunIn(RetryJobName, next, delay); err != nil {
			return fmt.Errorf("schedule cohort retry for %s: %w", key, err)
		}
		log.Printf("cohort %q: HTTP %d, retry %d in %s", name, resp.StatusCode, next.RetriesPerformedSoFar, delay)
		return nil
	}

	return &CreationError{Status: resp.StatusCode, Body: resp.Body}
}
