package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbc-edu/eduplatform/core/identity"
)

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(Open())
	ctx := context.Background()
	now := time.Now().UTC()

	live := identity.Session{ID: "live", IdentityID: "1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := identity.Session{ID: "stale", IdentityID: "1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, store.SaveSession(ctx, live))
	require.NoError(t, store.SaveSession(ctx, stale))

	got, err := store.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, live, got)

	_, err = store.GetSession(ctx, "stale")
	assert.Equal(t, identity.ErrSessionNotFound, err)
	assert.Equal(t, identity.ErrSessionNotFound, store.DeleteSession(ctx, "stale"), "expired sessions are evicted on read")

	require.NoError(t, store.DeleteSession(ctx, "live"))
	assert.Equal(t, identity.ErrSessionNotFound, store.DeleteSession(ctx, "live"))
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	ctx := context.Background()

	var first, second []identity.EventType
	sub1, err := bus.Subscribe(ctx, func(ev identity.Event) { first = append(first, ev.Type) })
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, func(ev identity.Event) { second = append(second, ev.Type) })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, identity.Event{Type: identity.SignedIn}))
	sub1.Unsubscribe()
	sub1.Unsubscribe()
	require.NoError(t, bus.Publish(ctx, identity.Event{Type: identity.SignedOut}))

	assert.Equal(t, []identity.EventType{identity.SignedIn}, first)
	assert.Equal(t, []identity.EventType{identity.SignedIn, identity.SignedOut}, second)
}

func TestEventBus_HandlerMaySubscribe(t *testing.T) {
	bus := NewEventBus()
	ctx := context.Background()

	var calls int
	_, err := bus.Subscribe(ctx, func(identity.Event) {
		calls++
		_, _ = bus.Subscribe(ctx, func(identity.Event) {})
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, identity.Event{Type: identity.SignedIn}))
	assert.Equal(t, 1, calls)
}
