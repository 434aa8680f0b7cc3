package notify

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultDuration is how long a notification stays visible.
const DefaultDuration = 3000 * time.Millisecond

// Severity tags a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is the single live message. Seq increases with every call to
// Notify so consumers can tell a replacement from a repeat.
type Notification struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Visible  bool      `json:"visible"`
	Seq      uint64    `json:"seq"`
	ShownAt  time.Time `json:"shown_at"`
}

// Timer is the part of *time.Timer the queue needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. It exists so tests can drive expiry.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Queue holds at most one visible notification. A new one replaces the
// current one immediately and restarts the visibility countdown.
type Queue struct {
	mu          sync.Mutex
	ttl         time.Duration
	afterFunc   AfterFunc
	current     Notification
	seq         uint64
	timer       Timer
	subscribers []chan Notification
	closed      bool
	logger      *log.Logger
}

// NewQueue creates a queue whose notifications stay visible for ttl.
func NewQueue(ttl time.Duration, logger *log.Logger) *Queue {
	if ttl <= 0 {
		ttl = DefaultDuration
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Queue{ttl: ttl, afterFunc: realAfterFunc, logger: logger}
}

// SetAfterFunc replaces the timer factory (useful for testing).
func (q *Queue) SetAfterFunc(f AfterFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.afterFunc = f
}

// Notify shows message, superseding whatever is currently visible.
func (q *Queue) Notify(message string, severity Severity) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.timer != nil {
		q.timer.Stop()
	}
	q.seq++
	seq := q.seq
	q.current = Notification{
		Message:  message,
		Severity: severity,
		Visible:  true,
		Seq:      seq,
		ShownAt:  time.Now(),
	}
	q.timer = q.afterFunc(q.ttl, func() { q.expire(seq) })
	q.logger.Debug("notification shown", "severity", severity, "message", message, "seq", seq)
	q.publish(q.current)
}

// Success is shorthand for Notify(message, SeveritySuccess).
func (q *Queue) Success(message string) { q.Notify(message, SeveritySuccess) }

// Error is shorthand for Notify(message, SeverityError).
func (q *Queue) Error(message string) { q.Notify(message, SeverityError) }

func (q *Queue) expire(seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	// A superseded timer may still fire if Stop lost the race.
	if q.closed || q.current.Seq != seq || !q.current.Visible {
		return
	}
	q.current.Visible = false
	q.timer = nil
	q.publish(q.current)
}

// Current returns the visible notification, if any.
func (q *Queue) Current() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.current.Visible {
		return Notification{}, false
	}
	return q.current, true
}

// Subscribe returns a channel receiving every show and hide transition.
func (q *Queue) Subscribe() chan Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch := make(chan Notification, 16)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (q *Queue) Unsubscribe(ch chan Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// must be called with q.mu held
func (q *Queue) publish(n Notification) {
	for _, sub := range q.subscribers {
		select {
		case sub <- n:
		default:
			q.logger.Warn("notification subscriber is full, dropping", "seq", n.Seq)
		}
	}
}

// Close stops the pending timer and closes all subscriber channels.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	for _, sub := range q.subscribers {
		close(sub)
	}
	q.subscribers = nil
}
