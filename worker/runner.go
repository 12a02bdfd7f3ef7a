// Package worker runs the fire-and-forget side effects of deal
// activation (pinning, erasure coding, replication broadcast) as an
// explicit task queue, so failures are observable and retried instead
// of silently lost.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/photon-storage/go-common/log"
)

// Task is one unit of asynchronous work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// DeadLetter records a task that exhausted its retries.
type DeadLetter struct {
	Task     string    `json:"task"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// Runner executes submitted tasks on a single worker goroutine with
// bounded retries and a dead-letter record for exhausted tasks.
type Runner struct {
	queue       chan Task
	maxAttempts int
	retryDelay  time.Duration
	taskTimeout time.Duration
	quit        chan struct{}
	done        chan struct{}

	mu          sync.Mutex
	deadLetters []DeadLetter
}

// NewRunner returns a stopped runner.
func NewRunner(
	queueSize int,
	maxAttempts int,
	retryDelay time.Duration,
	taskTimeout time.Duration,
) *Runner {
	return &Runner{
		queue:       make(chan Task, queueSize),
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		taskTimeout: taskTimeout,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (r *Runner) Start() {
	go r.loop()
}

// Stop drains nothing: queued tasks not yet started are dropped. The
// in-flight task finishes its current attempt.
func (r *Runner) Stop() {
	close(r.quit)
	<-r.done
}

// Submit enqueues a task without blocking. It reports false when the
// queue is full; callers treat that as a best-effort failure.
func (r *Runner) Submit(t Task) bool {
	select {
	case r.queue <- t:
		return true
	default:
		log.Warn("task queue full, dropping task", "task", t.Name)
		return false
	}
}

// DeadLetters snapshots the exhausted tasks.
func (r *Runner) DeadLetters() []DeadLetter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DeadLetter, len(r.deadLetters))
	copy(out, r.deadLetters)
	return out
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return

		case t := <-r.queue:
			r.execute(t)
		}
	}
}

func (r *Runner) execute(t Task) {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), r.taskTimeout)
		err = t.Run(ctx)
		cancel()
		if err == nil {
			return
		}

		log.Warn("task attempt failed",
			"task", t.Name,
			"attempt", attempt,
			"error", err,
		)

		if attempt < r.maxAttempts {
			select {
			case <-r.quit:
				return
			case <-time.After(time.Duration(attempt) * r.retryDelay):
			}
		}
	}

	log.Error("task exhausted retries", "task", t.Name, "error", err)
	r.mu.Lock()
	r.deadLetters = append(r.deadLetters, DeadLetter{
		Task:     t.Name,
		Error:    err.Error(),
		Attempts: r.maxAttempts,
		FailedAt: time.Now().UTC(),
	})
	r.mu.Unlock()
}
