package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	logsvc "github.com/cbc-edu/eduplatform/services/logger"
	redisstore "github.com/cbc-edu/eduplatform/storage/redis"
)

// These tests need a live server: TEST_REDIS_ADDR=localhost:6379 go test ./storage/redis/...
func setup(t *testing.T) (*redisstore.SessionStore, *redisstore.EventBus) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	conf := core.NewTestConfig()
	conf.Redis.Address = addr
	client, err := redisstore.Open(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.NewSessionStore(client), redisstore.NewEventBus(client, logsvc.NewNopLogger())
}

func newSession(ttl time.Duration) identity.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return identity.Session{
		ID:         uuid.NewString(),
		IdentityID: uuid.NewString(),
		ClientID:   "web",
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func TestSessionStore(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		_, err := store.GetSession(ctx, uuid.NewString())
		assert.Equal(t, identity.ErrSessionNotFound, err)
		assert.Equal(t, identity.ErrSessionNotFound, store.DeleteSession(ctx, uuid.NewString()))
	})

	t.Run("save get delete", func(t *testing.T) {
		sess := newSession(time.Minute)
		require.NoError(t, store.SaveSession(ctx, sess))

		got, err := store.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))
		assert.Equal(t, sess.IdentityID, got.IdentityID)
		assert.Equal(t, sess.ClientID, got.ClientID)

		require.NoError(t, store.DeleteSession(ctx, sess.ID))
		_, err = store.GetSession(ctx, sess.ID)
		assert.Equal(t, identity.ErrSessionNotFound, err)
	})

	t.Run("already expired", func(t *testing.T) {
		sess := newSession(-time.Minute)
		assert.Error(t, store.SaveSession(ctx, sess))
	})

	t.Run("expired by redis", func(t *testing.T) {
		sess := newSession(time.Second)
		require.NoError(t, store.SaveSession(ctx, sess))
		time.Sleep(1500 * time.Millisecond)
		_, err := store.GetSession(ctx, sess.ID)
		assert.Equal(t, identity.ErrSessionNotFound, err)
	})
}

func TestEventBus(t *testing.T) {
	_, bus := setup(t)
	ctx := context.Background()

	received := make(chan identity.Event, 1)
	sub, err := bus.Subscribe(ctx, func(ev identity.Event) { received <- ev })
	require.NoError(t, err)

	ev := identity.Event{
		Type:       identity.SignedOut,
		IdentityID: uuid.NewString(),
		SessionID:  uuid.NewString(),
		ClientID:   "web",
		At:         time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, bus.Publish(ctx, ev))

	select {
	case got := <-received:
		assert.Equal(t, ev.Type, got.Type)
		assert.Equal(t, ev.SessionID, got.SessionID)
		assert.Equal(t, ev.ClientID, got.ClientID)
		assert.True(t, ev.At.Equal(got.At))
	case <-time.After(3 * time.Second):
		t.Fatal("event never delivered")
	}

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(ctx, ev))
	select {
	case <-received:
		t.Fatal("event delivered after Unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}
