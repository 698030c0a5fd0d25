package lifecycle

import (
	"sync"
	"time"
)

// ManualScheduler is a deterministic Scheduler with virtual time. Tasks only
// run when RunPending or Advance is called, on the calling goroutine. It is
// meant for tests and offline simulations.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	tasks  []func()
	timers []*manualTimer
	seq    int
}

type manualTimer struct {
	s       *ManualScheduler
	due     time.Time
	seq     int
	task    func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates a ManualScheduler whose clock starts at start
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Post enqueues a task
func (s *ManualScheduler) Post(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// AfterFunc schedules task at Now()+d
func (s *ManualScheduler) AfterFunc(d time.Duration, task func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTimer{s: s, due: s.now.Add(d), seq: s.seq, task: task}
	s.timers = append(s.timers, t)
	return t
}

// Now returns the virtual time
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// RunPending runs posted tasks until none are left and returns how many ran
func (s *ManualScheduler) RunPending() int {
	ran := 0
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return ran
		}
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		task()
		ran++
	}
}

// Advance moves the clock forward by d, firing due timers in order and
// running the tasks they post.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.RunPending()

	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			break
		}
		s.now = next.due
		next.fired = true
		s.mu.Unlock()

		next.task()
		s.RunPending()
	}
	s.RunPending()
}

// PendingTimers returns the number of timers that have neither fired nor
// been stopped
func (s *ManualScheduler) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}

func (s *ManualScheduler) nextDueLocked(limit time.Time) *manualTimer {
	var next *manualTimer
	live := s.timers[:0]
	for _, t := range s.timers {
		if t.stopped || t.fired {
			continue
		}
		live = append(live, t)
		if t.due.After(limit) {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
			next = t
		}
	}
	s.timers = live
	return next
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
