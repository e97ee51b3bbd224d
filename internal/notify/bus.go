// Package notify provides the in-process notification bus: transient,
// self-expiring notifications fanned out to subscribers.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// DefaultTTL is how long a notification is retained before it expires.
const DefaultTTL = 5 * time.Second

// Severity classifies a notification.
type Severity string

// Notification severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityInfo, SeverityWarning, SeverityError, SeveritySuccess:
		return sev, nil
	default:
		return "", anchorerr.WithSuggestion(
			anchorerr.WithDetails(anchorerr.ErrInvalidInput, map[string]string{"severity": s}),
			"use one of: info, warning, error, success",
		)
	}
}

// Notification is a single transient message. Subscribers receive copies.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Logger is the logging surface the bus uses.
type Logger interface {
	Error(format string, args ...any)
}

// Recorder counts published notifications.
type Recorder interface {
	RecordNotification(severity string)
}

type subscriber struct {
	id uint64
	fn func(Notification)
}

// Bus is a publish/subscribe channel for notifications.
// Create one per application with New and share it.
type Bus struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	items   []Notification
	timers  map[string]*clock.Timer
	subs    []subscriber
	nextSub uint64
	closed  bool

	logger   Logger
	recorder Recorder
	newID    func() string
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock sets the clock used for timestamps and expiry.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) { b.clock = c }
}

// WithTTL sets how long notifications are retained.
func WithTTL(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.ttl = d
		}
	}
}

// WithLogger sets the logger used to report subscriber panics.
func WithLogger(l Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Bus) { b.recorder = r }
}

// New creates a bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		clock:  clock.New(),
		ttl:    DefaultTTL,
		timers: make(map[string]*clock.Timer),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TTL returns the retention period.
func (b *Bus) TTL() time.Duration {
	return b.ttl
}

// Subscribe registers fn for every notification published after this call.
// History is not replayed.
func (b *Bus) Subscribe(fn func(Notification)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSub++
	b.subs = append(b.subs, subscriber{id: b.nextSub, fn: fn})
	return &Subscription{bus: b, id: b.nextSub}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Notify publishes a notification and returns its ID. Subscribers are called
// synchronously, in subscription order, with the set registered at call time.
// The notification is removed after the TTL. Notify on a closed bus returns "".
func (b *Bus) Notify(sev Severity, message string) string {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ""
	}

	n := Notification{
		ID:        b.newID(),
		Severity:  sev,
		Message:   message,
		CreatedAt: b.clock.Now(),
	}
	b.items = append(b.items, n)

	id := n.ID
	b.timers[id] = b.clock.AfterFunc(b.ttl, func() { b.expire(id) })

	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	if b.recorder != nil {
		b.recorder.RecordNotification(string(sev))
	}

	for _, s := range subs {
		b.deliver(s, n)
	}
	return id
}

func (b *Bus) deliver(s subscriber, n Notification) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error("notification subscriber %d panicked: %v", s.id, r)
		}
	}()
	s.fn(n)
}

func (b *Bus) expire(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.timers, id)
	b.removeLocked(id)
}

// Remove drops a notification and cancels its expiry. Unknown IDs are ignored.
func (b *Bus) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	b.removeLocked(id)
}

func (b *Bus) removeLocked(id string) {
	for i, n := range b.items {
		if n.ID == id {
			b.items = append(b.items[:i:i], b.items[i+1:]...)
			return
		}
	}
}

// Notifications returns a copy of the retained notifications in creation order.
func (b *Bus) Notifications() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Close cancels every pending expiry and drops all state.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.items = nil
	b.subs = nil
	b.closed = true
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// ID returns the subscription's registry key.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Unsubscribe removes exactly this registration. Later calls are no-ops.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.unsubscribe(s.id) })
}
