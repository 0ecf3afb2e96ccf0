// Package notifier fans out session change events to in-process subscribers
// and reconciles against the store so writes made by other processes are
// promoted to local events.
package notifier

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/gridlock/internal/game"
	"github.com/louisbranch/gridlock/internal/storage"
)

// DefaultReconcileInterval is the polling cadence when none is configured.
const DefaultReconcileInterval = 250 * time.Millisecond

const subscriberBuffer = 16

// Kind labels an event on the change feed.
type Kind string

const (
	KindSession         Kind = "session"
	KindMessage         Kind = "message"
	KindActivityStarted Kind = "activity_started"
	KindActivityEnded   Kind = "activity_ended"
)

// Event is one change-feed entry. Session is set for session snapshots,
// Message for side-channel messages, Method for activity brackets.
type Event struct {
	Kind    Kind          `json:"kind"`
	Session *game.Session `json:"session,omitempty"`
	Message *game.Message `json:"message,omitempty"`
	Method  string        `json:"method,omitempty"`
}

// Subscription is one subscriber's view of the feed. Close releases it.
type Subscription struct {
	C     <-chan Event
	close func()
}

// Close detaches the subscription from the feed.
func (s *Subscription) Close() {
	if s == nil || s.close == nil {
		return
	}
	s.close()
}

// StateReader is the slice of the store the reconciliation loop needs.
type StateReader interface {
	CurrentPointer(ctx context.Context) (string, error)
	SessionVersion(ctx context.Context, id string) (int64, error)
	GetSession(ctx context.Context, id string) (game.Session, error)
}

// Notifier broadcasts events to subscribers and polls the store for session
// versions this process has not announced yet.
type Notifier struct {
	reader   StateReader
	interval time.Duration

	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	seen        map[string]int64
}

// New builds a notifier over the given reader. A non-positive interval
// falls back to DefaultReconcileInterval.
func New(reader StateReader, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Notifier{
		reader:      reader,
		interval:    interval,
		subscribers: make(map[int]chan Event),
		seen:        make(map[string]int64),
	}
}

// Subscribe registers a new feed subscriber. Slow subscribers drop events
// rather than block publishers.
func (n *Notifier) Subscribe() *Subscription {
	if n == nil {
		return &Subscription{C: make(chan Event)}
	}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	ch := make(chan Event, subscriberBuffer)
	n.subscribers[id] = ch
	n.mu.Unlock()

	return &Subscription{
		C: ch,
		close: func() {
			n.mu.Lock()
			if existing, ok := n.subscribers[id]; ok {
				delete(n.subscribers, id)
				close(existing)
			}
			n.mu.Unlock()
		},
	}
}

// Publish fans out one event. A session event marks its version as announced
// under the same lock that gates the reconciliation loop; a version that was
// already announced is dropped, so each version reaches subscribers once no
// matter whether the local publisher or the poller gets there first.
func (n *Notifier) Publish(ev Event) {
	if n == nil {
		return
	}

	n.mu.Lock()
	if ev.Session != nil && ev.Session.ID != "" {
		if ev.Session.Version <= n.seen[ev.Session.ID] {
			n.mu.Unlock()
			return
		}
		n.seen[ev.Session.ID] = ev.Session.Version
	}
	channels := make([]chan Event, 0, len(n.subscribers))
	for _, ch := range n.subscribers {
		channels = append(channels, ch)
	}
	n.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ActivityStarted announces the start of a mutating operation.
func (n *Notifier) ActivityStarted(method string) {
	n.Publish(Event{Kind: KindActivityStarted, Method: method})
}

// ActivityEnded announces the end of a mutating operation.
func (n *Notifier) ActivityEnded(method string) {
	n.Publish(Event{Kind: KindActivityEnded, Method: method})
}

// Run polls the store until ctx is cancelled, promoting version bumps made
// outside this process into session events.
func (n *Notifier) Run(ctx context.Context) {
	if n == nil || n.reader == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.reconcile(ctx)
		}
	}
}

func (n *Notifier) reconcile(ctx context.Context) {
	id, err := n.reader.CurrentPointer(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && ctx.Err() == nil {
			log.Printf("notifier: read current pointer: %v", err)
		}
		return
	}

	version, err := n.reader.SessionVersion(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && ctx.Err() == nil {
			log.Printf("notifier: read session version: %v", err)
		}
		return
	}

	n.mu.Lock()
	lastSeen := n.seen[id]
	n.mu.Unlock()
	if version <= lastSeen {
		return
	}

	sess, err := n.reader.GetSession(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("notifier: load session %s: %v", id, err)
		}
		return
	}
	n.Publish(Event{Kind: KindSession, Session: &sess})
}
