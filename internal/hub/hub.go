package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// sendBufferSize is the per-connection event buffer. A connection that falls
// this far behind is considered dead and dropped.
const sendBufferSize = 64

type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
	EventError   EventType = "error"
)

// Event is the wire envelope pushed to clients.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Conn is one live client connection. The websocket adapter lives in the
// API layer; tests plug in fakes.
type Conn interface {
	Send(Event) error
	Close() error
}

type subscriber struct {
	conn Conn
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// stop signals the writer goroutine to exit. The event channel is never
// closed, so a concurrent Publish can race with removal without panicking.
func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub tracks zero-or-more live connections per user and fans events out to
// all of them. Delivery is best-effort: a slow or closed connection is
// dropped from the registry and publishing proceeds to the rest. Within one
// connection, events are delivered in submission order.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[string]*subscriber // userID -> connID -> sub
	log   *logrus.Entry
}

func New(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		users: make(map[string]map[string]*subscriber),
		log:   log,
	}
}

// Register adds a connection for userID and returns its id for Unregister.
func (h *Hub) Register(userID string, c Conn) string {
	id := uuid.NewString()
	sub := &subscriber{
		conn: c,
		ch:   make(chan Event, sendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[string]*subscriber)
	}
	h.users[userID][id] = sub
	h.mu.Unlock()

	// one writer goroutine per connection keeps per-connection ordering
	go func() {
		for {
			select {
			case <-sub.done:
				return
			case ev := <-sub.ch:
				if err := sub.conn.Send(ev); err != nil {
					h.log.WithError(err).WithField("user_id", userID).Debug("dropping dead connection")
					h.Unregister(userID, id)
					return
				}
			}
		}
	}()

	h.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": id}).Debug("connection registered")
	return id
}

// Unregister removes a connection and closes it. Safe to call twice.
func (h *Hub) Unregister(userID, connID string) {
	h.mu.Lock()
	subs, ok := h.users[userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	sub, ok := subs[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.users, userID)
	}
	h.mu.Unlock()

	sub.stop()
	_ = sub.conn.Close()
	h.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": connID}).Debug("connection removed")
}

// Publish delivers ev to every registered connection for userID.
// Never blocks the caller: a connection whose buffer is full is dropped.
func (h *Hub) Publish(userID string, ev Event) {
	h.mu.RLock()
	subs, ok := h.users[userID]
	if !ok || len(subs) == 0 {
		h.mu.RUnlock()
		return
	}
	type target struct {
		id  string
		sub *subscriber
	}
	targets := make([]target, 0, len(subs))
	for id, sub := range subs {
		targets = append(targets, target{id, sub})
	}
	h.mu.RUnlock()

	for _, t := range targets {
		select {
		case t.sub.ch <- ev:
		default:
			h.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": t.id}).Warn("connection too slow, dropping")
			go h.Unregister(userID, t.id)
		}
	}
}

// ConnectionCount reports live connections across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, subs := range h.users {
		n += len(subs)
	}
	return n
}

// UserCount reports users with at least one live connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	users := h.users
	h.users = make(map[string]map[string]*subscriber)
	h.mu.Unlock()

	for _, subs := range users {
		for _, sub := range subs {
			sub.stop()
			_ = sub.conn.Close()
		}
	}
}
