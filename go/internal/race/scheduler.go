package race

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// task is a one-shot timer owned by a race. The callback receives the task
// itself so it can confirm, under the race lock, that it is still current.
type task struct {
	timer clockwork.Timer
	stop  chan struct{}
	once  sync.Once
}

// schedule starts a one-shot timer that runs fn on its own goroutine when it fires.
func schedule(clock clockwork.Clock, d time.Duration, fn func(t *task)) *task {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	t := &task{
		timer: clock.NewTimer(d),
		stop:  make(chan struct{}),
	}

	go func() {
		select {
		case <-t.timer.Chan():
			fn(t)
		case <-t.stop:
			stopAndDrainTimer(t.timer)
		}
	}()

	return t
}

// cancel stops the task. Safe to call more than once and after it fired.
func (t *task) cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.timer.Stop()
		close(t.stop)
	})
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
