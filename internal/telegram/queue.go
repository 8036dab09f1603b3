package telegram

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("too many pending messages for this user")
)

// Queue runs jobs for one user strictly in arrival order while different users
// proceed in parallel. Each active user gets its own worker goroutine, which
// exits after sitting idle.
type Queue struct {
	mu      sync.Mutex
	workers map[int64]*worker
	closed  bool

	backlog int
	idle    time.Duration
	// caps jobs running at once across all users
	sem  chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup

	logger logger.ILogger
}

type worker struct {
	jobs chan func()
}

func NewQueue(maxConcurrent, backlog int, idle time.Duration, log logger.ILogger) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	if backlog <= 0 {
		backlog = 32
	}
	if idle <= 0 {
		idle = time.Minute
	}
	return &Queue{
		workers: make(map[int64]*worker),
		backlog: backlog,
		idle:    idle,
		sem:     make(chan struct{}, maxConcurrent),
		quit:    make(chan struct{}),
		logger:  log,
	}
}

// Submit enqueues job behind the user's earlier jobs. It never blocks.
func (q *Queue) Submit(userID int64, job func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	w, ok := q.workers[userID]
	if !ok {
		w = &worker{jobs: make(chan func(), q.backlog)}
		q.workers[userID] = w
		q.wg.Add(1)
		go q.run(userID, w)
	}

	// Sending under mu keeps an idle worker from retiring between lookup and send.
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Active reports the number of live per-user workers.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.workers)
}

// Close stops accepting jobs and waits for running jobs to finish. Pending jobs are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) run(userID int64, w *worker) {
	defer q.wg.Done()

	timer := time.NewTimer(q.idle)
	defer timer.Stop()

	for {
		select {
		case <-q.quit:
			return
		case job := <-w.jobs:
			q.exec(userID, job)
			timer.Reset(q.idle)
		case <-timer.C:
			q.mu.Lock()
			if len(w.jobs) == 0 {
				delete(q.workers, userID)
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			timer.Reset(q.idle)
		}
	}
}

func (q *Queue) exec(userID int64, job func()) {
	select {
	case q.sem <- struct{}{}:
	case <-q.quit:
		return
	}
	defer func() { <-q.sem }()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("TELEGRAM", "Job panicked", map[string]interface{}{
				"user_id": userID,
				"kind":    "panic",
				"error":   fmt.Sprint(r),
			})
		}
	}()
	job()
}
