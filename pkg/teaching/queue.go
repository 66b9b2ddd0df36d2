package teaching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"preset-teaching-be/internal/pkg/logger"
)

// Job is one serialized unit of work.
type Job func(ctx context.Context) error

type queuedJob struct {
	name   string
	job    Job
	result chan error
}

// Queue runs jobs one at a time in submission order across every caller.
// A failing or panicking job is logged and does not stop later jobs.
type Queue struct {
	mu      sync.Mutex
	pending []queuedJob
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
	once    sync.Once
	logger  logger.ILogger
}

func NewQueue(log logger.ILogger) *Queue {
	return &Queue{
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: log,
	}
}

// Start launches the single worker. Calling it again has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	go q.run(ctx)
}

// Enqueue appends a job. The returned channel receives the job's error (nil
// on success) once it has finished, and is then closed.
func (q *Queue) Enqueue(name string, job Job) <-chan error {
	result := make(chan error, 1)

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		result <- ErrQueueStopped
		close(result)
		return result
	}
	q.pending = append(q.pending, queuedJob{name: name, job: job, result: result})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return result
}

// Len counts jobs waiting to run, excluding the one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop lets the running job finish, fails the rest with ErrQueueStopped and
// waits for the worker to exit.
func (q *Queue) Stop() {
	q.once.Do(func() {
		q.mu.Lock()
		q.stopped = true
		started := q.started
		close(q.quit)
		q.mu.Unlock()

		if started {
			<-q.done
		}
		q.failPending(ErrQueueStopped)
	})
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			return
		case <-ctx.Done():
			q.failPending(ctx.Err())
			return
		default:
		}

		next, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
			case <-q.quit:
				return
			case <-ctx.Done():
				q.failPending(ctx.Err())
				return
			}
			continue
		}

		err := q.execute(ctx, next)
		next.result <- err
		close(next.result)
	}
}

func (q *Queue) pop() (queuedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return queuedJob{}, false
	}
	next := q.pending[0]
	q.pending[0] = queuedJob{}
	q.pending = q.pending[1:]
	return next, true
}

func (q *Queue) execute(ctx context.Context, j queuedJob) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		if err != nil && q.logger != nil {
			q.logger.Error("TEACHING_QUEUE", "Queued job failed", map[string]interface{}{
				"job":         j.name,
				"error":       err.Error(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
		}
	}()
	return j.job(ctx)
}

func (q *Queue) failPending(err error) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.stopped = true
	q.mu.Unlock()

	for _, j := range pending {
		j.result <- err
		close(j.result)
	}
}
