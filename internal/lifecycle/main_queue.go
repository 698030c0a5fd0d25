package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/personal/ad-lifecycle/pkg/logger"
)

// MainQueue is a Scheduler backed by one goroutine draining an unbounded
// task list. Every controller and the dispatcher's shared state are confined
// to it.
type MainQueue struct {
	mu       sync.Mutex
	tasks    []func()
	wake     chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *logger.Logger
}

// NewMainQueue creates a MainQueue. Call Start before posting work that
// must run.
func NewMainQueue(log *logger.Logger) *MainQueue {
	return &MainQueue{
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		logger:   log,
	}
}

// Start starts the queue goroutine
func (q *MainQueue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.run(ctx)
}

// Stop stops the queue and waits for the running task to finish.
// Tasks still queued are dropped.
func (q *MainQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
	})
	q.wg.Wait()
}

// Post enqueues a task
func (q *MainQueue) Post(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// AfterFunc posts task onto the queue once d has elapsed
func (q *MainQueue) AfterFunc(d time.Duration, task func()) Timer {
	return time.AfterFunc(d, func() {
		q.Post(task)
	})
}

// Now returns the wall clock time
func (q *MainQueue) Now() time.Time {
	return time.Now()
}

// Call runs fn on the queue and waits for it. It must not be called from a
// task running on the queue.
func (q *MainQueue) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	q.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopChan:
		return context.Canceled
	}
}

func (q *MainQueue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-q.wake:
			q.drain()
		}
	}
}

func (q *MainQueue) drain() {
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, task := range batch {
			q.runTask(task)
		}
	}
}

func (q *MainQueue) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.WithField("panic", r).Error("Main queue task panicked")
		}
	}()
	task()
}
