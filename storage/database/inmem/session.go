package inmemdb

import (
	"context"
	"sync"

	"github.com/cbc-edu/eduplatform/core/identity"
)

type sessionStore struct {
	db *sessionTable
}

var _ identity.SessionStore = (*sessionStore)(nil) // interface compliance check

func NewSessionStore(db *DB) *sessionStore {
	return &sessionStore{db: db.sessions}
}

func (store *sessionStore) SaveSession(_ context.Context, sess identity.Session) error {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	store.db.t[sess.ID] = sess
	return nil
}

// GetSession evicts the session once it expired.
func (store *sessionStore) GetSession(_ context.Context, id string) (identity.Session, error) {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	sess, ok := store.db.t[id]
	if !ok {
		return identity.Session{}, identity.ErrSessionNotFound
	}
	if sess.Expired(identity.NowFunc()) {
		delete(store.db.t, id)
		return identity.Session{}, identity.ErrSessionNotFound
	}
	return sess, nil
}

func (store *sessionStore) DeleteSession(_ context.Context, id string) error {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	if _, ok := store.db.t[id]; !ok {
		return identity.ErrSessionNotFound
	}
	delete(store.db.t, id)
	return nil
}

// EventBus delivers auth events synchronously to the subscribers of this process.
// Handlers run on the publishing goroutine, so they must not publish in turn while holding locks.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[int]func(identity.Event)
	next     int
}

var _ identity.EventBus = (*EventBus)(nil) // interface compliance check

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[int]func(identity.Event))}
}

func (bus *EventBus) Publish(_ context.Context, ev identity.Event) error {
	bus.mu.RLock()
	handlers := make([]func(identity.Event), 0, len(bus.handlers))
	for _, h := range bus.handlers {
		handlers = append(handlers, h)
	}
	bus.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (bus *EventBus) Subscribe(_ context.Context, handler func(identity.Event)) (identity.Subscription, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	id := bus.next
	bus.next++
	bus.handlers[id] = handler
	return &subscription{bus: bus, id: id}, nil
}

type subscription struct {
	bus  *EventBus
	id   int
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.handlers, s.id)
		s.bus.mu.Unlock()
	})
}
