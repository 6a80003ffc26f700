package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
)

const (
	sessionKeyPrefix = "session:"
	eventsChannel    = "auth:events"
	pingTimeout      = 3 * time.Second
)

// Open connects to the redis server of conf and checks it answers.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// SessionStore keeps sessions as JSON values that redis expires along with them.
type SessionStore struct {
	client *redis.Client
}

var _ identity.SessionStore = (*SessionStore)(nil) // interface compliance check

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (store *SessionStore) SaveSession(ctx context.Context, sess identity.Session) error {
	ttl := sess.ExpiresAt.Sub(identity.NowFunc())
	if ttl <= 0 {
		return errors.Wrap(identity.ErrSessionNotFound, "session already expired")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return errors.Wrap(store.client.Set(ctx, sessionKey(sess.ID), data, ttl).Err(), "setting session")
}

func (store *SessionStore) GetSession(ctx context.Context, id string) (identity.Session, error) {
	data, err := store.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return identity.Session{}, identity.ErrSessionNotFound
	}
	if err != nil {
		return identity.Session{}, errors.Wrap(err, "getting session")
	}

	var sess identity.Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return identity.Session{}, errors.Wrap(err, "decoding session")
	}
	if sess.Expired(identity.NowFunc()) {
		return identity.Session{}, identity.ErrSessionNotFound
	}
	return sess, nil
}

func (store *SessionStore) DeleteSession(ctx context.Context, id string) error {
	n, err := store.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n == 0 {
		return identity.ErrSessionNotFound
	}
	return nil
}

// EventBus fans auth events out to every process subscribed to the same redis server.
type EventBus struct {
	client *redis.Client
	logger core.Logger
}

var _ identity.EventBus = (*EventBus)(nil) // interface compliance check

func NewEventBus(client *redis.Client, logger core.Logger) *EventBus {
	return &EventBus{client: client, logger: logger}
}

func (bus *EventBus) Publish(ctx context.Context, ev identity.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	return errors.Wrap(bus.client.Publish(ctx, eventsChannel, data).Err(), "publishing event")
}

// Subscribe delivers events to handler from a dedicated goroutine, in publication order.
func (bus *EventBus) Subscribe(ctx context.Context, handler func(identity.Event)) (identity.Subscription, error) {
	ps := bus.client.Subscribe(ctx, eventsChannel)
	// wait for the subscription to be confirmed so that no event published after Subscribe is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "subscribing to auth events")
	}

	sub := &subscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			var ev identity.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				bus.logger.Warn("decoding auth event", err)
				continue
			}
			handler(ev)
		}
	}()
	return sub, nil
}

type subscription struct {
	ps   *redis.PubSub
	done chan struct{}
}

// Unsubscribe closes the subscription and waits for the delivery goroutine to return.
func (s *subscription) Unsubscribe() {
	_ = s.ps.Close()
	<-s.done
}
