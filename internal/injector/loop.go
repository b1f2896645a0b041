package injector

import (
	"sync"
	"sync/atomic"
)

// Task is a handle on deferred work.
type Task interface {
	// Cancel prevents the task from running. It reports false when the task
	// already ran or was already cancelled.
	Cancel() bool
}

// Scheduler defers work to a later turn.
type Scheduler interface {
	Schedule(fn func()) Task
}

const (
	taskPending int32 = iota
	taskCancelled
	taskDone
)

type loopTask struct {
	fn    func()
	state atomic.Int32
}

func (t *loopTask) Cancel() bool {
	return t.state.CompareAndSwap(taskPending, taskCancelled)
}

// Loop is a cooperative single-threaded task queue. Scheduled functions run
// only inside RunPending, on the caller's goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []*loopTask
}

func NewLoop() *Loop { return &Loop{} }

func (l *Loop) Schedule(fn func()) Task {
	t := &loopTask{fn: fn}
	l.mu.Lock()
	l.queue = append(l.queue, t)
	l.mu.Unlock()
	return t
}

// RunPending runs one turn: every task queued before the call that has not
// been cancelled. Tasks scheduled while the turn runs wait for the next one.
// It returns the number of tasks run.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	ran := 0
	for _, t := range batch {
		if t.state.CompareAndSwap(taskPending, taskDone) {
			t.fn()
			ran++
		}
	}
	return ran
}

// Pending returns the number of queued tasks that are still runnable.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.queue {
		if t.state.Load() == taskPending {
			n++
		}
	}
	return n
}
