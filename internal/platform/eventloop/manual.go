package eventloop

import (
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by the caller. Nothing runs until
// RunPending or Advance is called, and virtual time only moves on Advance.
// It is meant for tests. Post may be called from any goroutine; everything
// else belongs to the goroutine driving the scheduler.
type Manual struct {
	now    time.Time
	mu     sync.Mutex
	queue  []func()
	timers []*manualTimer
	seq    uint64
}

// NewManual returns a Manual scheduler whose clock starts at the Unix epoch.
func NewManual() *Manual {
	return &Manual{now: time.Unix(0, 0).UTC()}
}

// Post implements Scheduler.Post.
func (m *Manual) Post(task func()) {
	m.mu.Lock()
	m.queue = append(m.queue, task)
	m.mu.Unlock()
}

// AfterFunc implements Scheduler.AfterFunc.
func (m *Manual) AfterFunc(d time.Duration, task func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{due: m.now.Add(d), seq: m.seq, task: task}
	m.timers = append(m.timers, t)
	return t
}

// Now implements Scheduler.Now.
func (m *Manual) Now() time.Time {
	return m.now
}

// RunPending runs queued tasks, including ones queued while running, until
// the queue is empty.
func (m *Manual) RunPending() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		task := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		task()
	}
}

// Advance moves virtual time forward by d, firing due timers in order of due
// time and creation. Queued tasks are drained before each timer fires.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		m.RunPending()
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.due
		t.fired = true
		t.task()
	}
	m.now = target
	m.RunPending()
}

// PendingTimers returns the number of timers that have neither fired nor been
// stopped.
func (m *Manual) PendingTimers() int {
	n := 0
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	var next *manualTimer
	live := m.timers[:0]
	for _, t := range m.timers {
		if t.fired || t.stopped {
			continue
		}
		live = append(live, t)
		if t.due.After(target) {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
			next = t
		}
	}
	m.timers = live
	return next
}

type manualTimer struct {
	due     time.Time
	seq     uint64
	task    func()
	fired   bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
