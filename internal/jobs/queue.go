// Package jobs runs named tasks after a delay on a single worker goroutine.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueStopped is returned when scheduling on a stopped queue.
var ErrQueueStopped = errors.New("job queue stopped")

// HandlerFunc consumes the JSON payload of a task.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Task is one scheduled invocation of a named job.
type Task struct {
	ID      uuid.UUID
	Name    string
	Payload json.RawMessage
	RunAt   time.Time
}

// Queue holds delayed tasks in memory. Tasks fire onto a channel when their
// delay elapses and are executed one at a time by the worker started with Start.
// Nothing is persisted; stopping the queue drops every pending task.
type Queue struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	pending  map[uuid.UUID]pendingTask
	stopped  bool

	ready    chan Task
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type pendingTask struct {
	task  Task
	timer *time.Timer
}

// NewQueue returns an idle queue. buffer sizes the channel of due tasks.
func NewQueue(buffer int) *Queue {
	if buffer < 1 {
		buffer = 64
	}
	return &Queue{
		handlers: map[string]HandlerFunc{},
		pending:  map[uuid.UUID]pendingTask{},
		ready:    make(chan Task, buffer),
		done:     make(chan struct{}),
	}
}

// Register binds a handler to a job name, replacing any previous one.
func (q *Queue) Register(name string, h HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

// RunIn schedules the named job to run with payload once delay has elapsed.
func (q *Queue) RunIn(name string, payload any, delay time.Duration) error {
	_, err := q.Schedule(name, payload, delay)
	return err
}

// Schedule is RunIn returning the scheduled task.
func (q *Queue) Schedule(name string, payload any, delay time.Duration) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return Task{}, ErrQueueStopped
	}
	if _, ok := q.handlers[name]; !ok {
		return Task{}, fmt.Errorf("unknown job %q", name)
	}

	task := Task{
		ID:      uuid.New(),
		Name:    name,
		Payload: raw,
		RunAt:   time.Now().Add(delay),
	}
	timer := time.AfterFunc(delay, func() { q.fire(task) })
	q.pending[task.ID] = pendingTask{task: task, timer: timer}

	return task, nil
}

// Pending returns the tasks whose delay has not elapsed yet, soonest first.
func (q *Queue) Pending() []Task {
	q.mu.Lock()
	out := make([]Task, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p.task)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out
}

// Start launches the worker. It returns immediately; the worker exits when ctx
// is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.run(ctx)
	log.Println("job queue started")
}

// Stop halts the worker and drops pending tasks. Safe to call more than once.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		for id, p := range q.pending {
			p.timer.Stop()
			delete(q.pending, id)
		}
		q.mu.Unlock()

		close(q.done)
	})
	q.wg.Wait()
}

func (q *Queue) fire(task Task) {
	q.mu.Lock()
	if _, ok := q.pending[task.ID]; !ok {
		q.mu.Unlock()
		return
	}
	delete(q.pending, task.ID)
	q.mu.Unlock()

	select {
	case q.ready <- task:
	case <-q.done:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case task := <-q.ready:
			q.execute(ctx, task)
		}
	}
}

func (q *Queue) execute(ctx context.Context, task Task) {
	q.mu.Lock()
	h := q.handlers[task.Name]
	q.mu.Unlock()

	if h == nil {
		log.Printf("ERROR: job %s (%s) has no handler", task.Name, task.ID)
		return
	}
	if err := h(ctx, task.Payload); err != nil {
		log.Printf("ERROR: job %s (%s) failed: %v", task.Name, task.ID, err)
	}
}
