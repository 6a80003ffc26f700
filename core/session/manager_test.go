package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/session"
	"github.com/cbc-edu/eduplatform/core/user"
	logsvc "github.com/cbc-edu/eduplatform/services/logger"
	inmemdb "github.com/cbc-edu/eduplatform/storage/database/inmem"
	"github.com/cbc-edu/eduplatform/testutil"
)

var errBackend = errors.New("backend unreachable")

// fakeBackend signs in whoever is in passwords. SignIn blocks while block is set.
type fakeBackend struct {
	mu         sync.Mutex
	passwords  map[string]string // email: password
	ids        map[string]string // email: identity ID
	current    string
	signOutErr error
	block      chan struct{}
	entered    chan struct{}
	handler    func(identity.Event)
	unsubbed   bool
}

var _ session.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		passwords: map[string]string{"jane@example.com": "password"},
		ids:       map[string]string{"jane@example.com": "1"},
	}
}

func (b *fakeBackend) SignIn(_ context.Context, email, pwd string) error {
	b.mu.Lock()
	block, entered := b.block, b.entered
	b.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		<-block
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.passwords[email]; !ok || p != pwd {
		return identity.ErrInvalidCredentials
	}
	b.current = b.ids[email]
	return nil
}

func (b *fakeBackend) SignOut(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signOutErr != nil {
		return b.signOutErr
	}
	b.current = ""
	return nil
}

func (b *fakeBackend) CurrentIdentity(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, nil
}

func (b *fakeBackend) OnAuthStateChange(_ context.Context, fn func(identity.Event)) (identity.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = fn
	return b, nil
}

func (b *fakeBackend) Unsubscribe() {
	b.mu.Lock()
	b.unsubbed = true
	b.mu.Unlock()
}

func (b *fakeBackend) emit(typ identity.EventType) {
	b.mu.Lock()
	fn := b.handler
	b.mu.Unlock()
	fn(identity.Event{Type: typ, IdentityID: "1"})
}

type fakeProfiles map[string]user.User

func (p fakeProfiles) GetByID(_ context.Context, id string) (user.User, error) {
	if usr, ok := p[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

var jane = user.User{ID: "1", Name: "Jane", Email: "jane@example.com", Role: user.RoleStudent}

func newManager(t *testing.T, backend session.Backend, profiles session.ProfileLoader) *session.Manager {
	t.Helper()
	m, err := session.NewManager(backend, profiles, logsvc.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)
	return m
}

func TestNewManager(t *testing.T) {
	_, err := session.NewManager(nil, fakeProfiles{}, logsvc.NewNopLogger())
	assert.Error(t, err)
	_, err = session.NewManager(newFakeBackend(), nil, logsvc.NewNopLogger())
	assert.Error(t, err)
}

func TestManager_Start(t *testing.T) {
	t.Run("nobody signed in", func(t *testing.T) {
		m := newManager(t, newFakeBackend(), fakeProfiles{})
		assert.Nil(t, m.User())
		assert.Equal(t, session.StateIdle, m.State())
	})

	t.Run("restores the current user", func(t *testing.T) {
		backend := newFakeBackend()
		backend.current = "1"
		m := newManager(t, backend, fakeProfiles{"1": jane})
		require.NotNil(t, m.User())
		assert.Equal(t, jane, *m.User())
		assert.Equal(t, session.StateAuthenticated, m.State())
	})
}

func TestManager_Login(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		pwd       string
		profiles  fakeProfiles
		want      bool
		wantUser  *user.User
		wantState session.State
	}{
		{"success", "jane@example.com", "password", fakeProfiles{"1": jane}, true, &jane, session.StateAuthenticated},
		{"bad password", "jane@example.com", "nope", fakeProfiles{"1": jane}, false, nil, session.StateFailed},
		{"unknown email", "john@example.com", "password", fakeProfiles{"1": jane}, false, nil, session.StateFailed},
		{"no profile", "jane@example.com", "password", fakeProfiles{}, false, nil, session.StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			m := newManager(t, backend, tt.profiles)
			var notified []*user.User
			m.Subscribe(func(usr *user.User) { notified = append(notified, usr) })

			got := m.Login(context.Background(), tt.email, tt.pwd)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantUser, m.User())
			assert.Equal(t, tt.wantState, m.State())
			require.Len(t, notified, 1)
			assert.Equal(t, tt.wantUser, notified[0])

			id, err := backend.CurrentIdentity(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, id != "", "backend signed in only with a loaded user")
		})
	}
}

func TestManager_Login_KeepsUserOnFailure(t *testing.T) {
	m := newManager(t, newFakeBackend(), fakeProfiles{"1": jane})
	require.True(t, m.Login(context.Background(), "jane@example.com", "password"))

	assert.False(t, m.Login(context.Background(), "jane@example.com", "nope"))
	assert.Equal(t, &jane, m.User())
	assert.Equal(t, session.StateFailed, m.State())
}

func TestManager_OverlappingTransitions(t *testing.T) {
	backend := newFakeBackend()
	m := newManager(t, backend, fakeProfiles{"1": jane})

	block := make(chan struct{})
	backend.mu.Lock()
	backend.block = block
	backend.entered = make(chan struct{}, 1)
	backend.mu.Unlock()

	done := make(chan bool)
	go func() { done <- m.Login(context.Background(), "jane@example.com", "password") }()
	<-backend.entered
	assert.Equal(t, session.StateAuthenticating, m.State())

	backend.mu.Lock()
	backend.block = nil
	backend.mu.Unlock()

	assert.False(t, m.Login(context.Background(), "jane@example.com", "password"), "second login is rejected")
	err := m.Logout(context.Background())
	assert.Equal(t, session.ErrBusy, errors.Cause(err))
	m.RefreshUser(context.Background())
	backend.emit(identity.SignedOut)
	assert.Equal(t, session.StateAuthenticating, m.State())

	close(block)
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("first login never returned")
	}
	assert.Equal(t, &jane, m.User())
	assert.Equal(t, session.StateAuthenticated, m.State())
}

func TestManager_Logout(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		backend := newFakeBackend()
		m := newManager(t, backend, fakeProfiles{"1": jane})
		require.True(t, m.Login(context.Background(), "jane@example.com", "password"))

		require.NoError(t, m.Logout(context.Background()))
		assert.Nil(t, m.User())
		assert.Equal(t, session.StateIdle, m.State())
		assert.Empty(t, backend.current)
	})

	t.Run("backend failure still clears the user", func(t *testing.T) {
		backend := newFakeBackend()
		m := newManager(t, backend, fakeProfiles{"1": jane})
		require.True(t, m.Login(context.Background(), "jane@example.com", "password"))
		backend.signOutErr = errBackend

		var notified []*user.User
		m.Subscribe(func(usr *user.User) { notified = append(notified, usr) })

		err := m.Logout(context.Background())
		assert.Equal(t, errBackend, errors.Cause(err))
		assert.Nil(t, m.User())
		assert.Equal(t, session.StateIdle, m.State())
		assert.Equal(t, []*user.User{nil}, notified)
	})
}

func TestManager_AuthEvents(t *testing.T) {
	backend := newFakeBackend()
	m := newManager(t, backend, fakeProfiles{"1": jane})

	// signed in from elsewhere
	backend.current = "1"
	backend.emit(identity.SignedIn)
	assert.Equal(t, &jane, m.User())
	assert.Equal(t, session.StateAuthenticated, m.State())

	// session revoked
	backend.emit(identity.SignedOut)
	assert.Nil(t, m.User())
	assert.Equal(t, session.StateIdle, m.State())
}

func TestManager_Subscribe(t *testing.T) {
	m := newManager(t, newFakeBackend(), fakeProfiles{"1": jane})

	var first, second int
	unsubscribe := m.Subscribe(func(*user.User) { first++ })
	m.Subscribe(func(*user.User) { second++ })

	require.True(t, m.Login(context.Background(), "jane@example.com", "password"))
	unsubscribe()
	require.NoError(t, m.Logout(context.Background()))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestManager_UserIsACopy(t *testing.T) {
	m := newManager(t, newFakeBackend(), fakeProfiles{"1": jane})
	require.True(t, m.Login(context.Background(), "jane@example.com", "password"))

	usr := m.User()
	usr.Name = "Mallory"
	assert.Equal(t, "Jane", m.User().Name)
}

func TestManager_Close(t *testing.T) {
	backend := newFakeBackend()
	m, err := session.NewManager(backend, fakeProfiles{}, logsvc.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	m.Close()
	assert.True(t, backend.unsubbed)
	m.Close()
}

// TestManager_IdentityClients runs two clients of the same identity service side by side.
func TestManager_IdentityClients(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	identitySvc := identity.NewService(
		inmemdb.NewIdentityRepository(db), inmemdb.NewSessionStore(db), inmemdb.NewEventBus(), logger, conf)
	usr := testutil.CreateAccount(t, usrRepo, "Jane", "jane@example.com", "password", user.RoleStudent)
	profiles := fakeProfiles{usr.ID: usr}

	laptopClient := identity.NewClient(identitySvc)
	phoneClient := identity.NewClient(identitySvc)
	laptop := newManager(t, laptopClient, profiles)
	phone := newManager(t, phoneClient, profiles)
	ctx := context.Background()

	require.True(t, laptop.Login(ctx, "jane@example.com", "password"))
	require.True(t, phone.Login(ctx, "jane@example.com", "password"))

	// signing out on one client leaves the other one alone
	require.NoError(t, phone.Logout(ctx))
	assert.Nil(t, phone.User())
	assert.Empty(t, phoneClient.Token())
	require.NotNil(t, laptop.User())

	// revoking the laptop session server side signs the laptop out
	sess, err := identitySvc.Authenticate(ctx, laptopClient.Token())
	require.NoError(t, err)
	require.NoError(t, identitySvc.EndSession(ctx, sess))
	assert.Nil(t, laptop.User())
	assert.Equal(t, session.StateIdle, laptop.State())
	assert.Empty(t, laptopClient.Token())
}
