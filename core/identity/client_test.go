package identity_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbc-edu/eduplatform/core/identity"
)

func TestClient(t *testing.T) {
	svc, usr, _ := setup(t)
	ctx := context.Background()

	web := identity.NewClient(svc)
	phone := identity.NewClient(svc)
	require.NotEqual(t, web.ID(), phone.ID())

	var webEvents, phoneEvents []identity.Event
	webSub, err := web.OnAuthStateChange(ctx, func(ev identity.Event) { webEvents = append(webEvents, ev) })
	require.NoError(t, err)
	defer webSub.Unsubscribe()
	phoneSub, err := phone.OnAuthStateChange(ctx, func(ev identity.Event) { phoneEvents = append(phoneEvents, ev) })
	require.NoError(t, err)
	defer phoneSub.Unsubscribe()

	t.Run("signed out", func(t *testing.T) {
		id, err := web.CurrentIdentity(ctx)
		require.NoError(t, err)
		assert.Empty(t, id)
		assert.NoError(t, web.SignOut(ctx))
	})

	t.Run("bad credentials", func(t *testing.T) {
		assert.Equal(t, identity.ErrInvalidCredentials, web.SignIn(ctx, usr.Email, "nope"))
		assert.Empty(t, web.Token())
		assert.Empty(t, webEvents)
	})

	t.Run("sign in", func(t *testing.T) {
		require.NoError(t, web.SignIn(ctx, usr.Email, "password"))
		require.NoError(t, phone.SignIn(ctx, usr.Email, "password"))
		assert.NotEmpty(t, web.Token())

		id, err := web.CurrentIdentity(ctx)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, id)

		require.Len(t, webEvents, 1, "only the events of its own sessions")
		assert.Equal(t, identity.SignedIn, webEvents[0].Type)
		assert.Equal(t, web.ID(), webEvents[0].ClientID)
		require.Len(t, phoneEvents, 1)
	})

	t.Run("sign out", func(t *testing.T) {
		require.NoError(t, web.SignOut(ctx))
		assert.Empty(t, web.Token())
		require.Len(t, webEvents, 2)
		assert.Equal(t, identity.SignedOut, webEvents[1].Type)

		id, err := phone.CurrentIdentity(ctx)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, id, "the other client stays signed in")
		assert.Len(t, phoneEvents, 1)
	})

	t.Run("revoked session", func(t *testing.T) {
		sess, err := svc.Authenticate(ctx, phone.Token())
		require.NoError(t, err)
		require.NoError(t, svc.EndSession(ctx, sess))

		assert.Empty(t, phone.Token(), "the token is dropped on SIGNED_OUT")
		require.Len(t, phoneEvents, 2)
		assert.Equal(t, identity.SignedOut, phoneEvents[1].Type)

		id, err := phone.CurrentIdentity(ctx)
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}

func TestClient_SignInAgain(t *testing.T) {
	svc, usr, _ := setup(t)
	ctx := context.Background()
	web := identity.NewClient(svc)

	var events []identity.Event
	sub, err := web.OnAuthStateChange(ctx, func(ev identity.Event) { events = append(events, ev) })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, web.SignIn(ctx, usr.Email, "password"))
	first := web.Token()
	firstSess, err := svc.Authenticate(ctx, first)
	require.NoError(t, err)

	t.Run("failed sign in keeps the session", func(t *testing.T) {
		assert.Equal(t, identity.ErrInvalidCredentials, web.SignIn(ctx, usr.Email, "nope"))
		assert.Equal(t, first, web.Token())
		_, err := svc.Authenticate(ctx, first)
		assert.NoError(t, err)
	})

	t.Run("replaced session is ended", func(t *testing.T) {
		require.NoError(t, web.SignIn(ctx, usr.Email, "password"))
		second := web.Token()
		require.NotEqual(t, first, second)

		types := make([]identity.EventType, 0, len(events))
		for _, ev := range events {
			types = append(types, ev.Type)
		}
		require.Equal(t, []identity.EventType{identity.SignedIn, identity.SignedIn, identity.SignedOut}, types)
		assert.Equal(t, firstSess.ID, events[2].SessionID)

		_, err := svc.Authenticate(ctx, first)
		assert.Equal(t, identity.ErrSessionNotFound, errors.Cause(err))
		_, err = svc.Authenticate(ctx, second)
		assert.NoError(t, err)
		assert.Equal(t, second, web.Token(), "ending the old session keeps the new token")

		id, err := web.CurrentIdentity(ctx)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, id)
	})
}
