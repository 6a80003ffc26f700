package session

import (
	"context"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/user"
)

var ErrBusy = errors.New("another session operation is in progress")

type (
	// Backend is the identity provider as seen by one client.
	Backend interface {
		SignIn(ctx context.Context, email, pwd string) error
		SignOut(ctx context.Context) error
		// CurrentIdentity returns "" when nobody is signed in.
		CurrentIdentity(ctx context.Context) (string, error)
		OnAuthStateChange(ctx context.Context, fn func(identity.Event)) (identity.Subscription, error)
	}

	ProfileLoader interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// Manager holds the signed-in User of one client and keeps it in sync with the Backend.
	// Mutations go through Login, Logout, RefreshUser and auth events only, one at a time.
	Manager struct {
		backend  Backend
		profiles ProfileLoader
		logger   core.Logger

		mu        sync.Mutex
		ctx       context.Context
		state     State
		usr       *user.User
		observers map[int]func(*user.User)
		nextObs   int
		sub       identity.Subscription
	}
)

func NewManager(backend Backend, profiles ProfileLoader, logger core.Logger) (*Manager, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(backend, "backend"),
		vala.IsNotNil(profiles, "profiles"),
		vala.IsNotNil(logger, "logger"),
	).Check()
	if err != nil {
		return nil, err
	}
	return &Manager{
		backend:   backend,
		profiles:  profiles,
		logger:    logger,
		ctx:       context.Background(),
		observers: make(map[int]func(*user.User)),
	}, nil
}

// Start subscribes to the Backend auth events then loads the current user.
func (m *Manager) Start(ctx context.Context) error {
	sub, err := m.backend.OnAuthStateChange(ctx, m.onAuthStateChange)
	if err != nil {
		return errors.Wrap(err, "subscribing to auth state changes")
	}
	m.mu.Lock()
	m.ctx = ctx
	m.sub = sub
	m.mu.Unlock()

	m.RefreshUser(ctx)
	return nil
}

// Close releases the auth events subscription and the observers.
func (m *Manager) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.observers = make(map[int]func(*user.User))
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// User is a copy of the signed-in user, nil when there is none.
func (m *Manager) User() *user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usr == nil {
		return nil
	}
	usr := *m.usr
	return &usr
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe calls fn with the user after every change. The returned func removes fn.
func (m *Manager) Subscribe(fn func(*user.User)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Login signs in and loads the matching user. It never fails loudly: errors are logged and reported as false.
func (m *Manager) Login(ctx context.Context, email, pwd string) bool {
	if err := m.begin(StateAuthenticating); err != nil {
		m.logger.Warn("login rejected", err)
		return false
	}

	if err := m.backend.SignIn(ctx, email, pwd); err != nil {
		m.logger.Error("login failed", errors.Wrap(err, "signing in"))
		m.end(StateFailed, m.User())
		return false
	}

	usr, err := m.loadUser(ctx)
	if err != nil || usr == nil {
		if err == nil {
			err = errors.New("no identity after sign in")
		}
		m.logger.Error("login failed", errors.Wrap(err, "loading user"))
		// no user to go with the backend session
		if err := m.backend.SignOut(ctx); err != nil {
			m.logger.Error("login failed", errors.Wrap(err, "signing out"))
		}
		m.end(StateFailed, nil)
		return false
	}

	m.end(StateAuthenticated, usr)
	return true
}

// Logout signs out from the Backend and always clears the local user, even when signing out failed.
// The Backend error, if any, is returned.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.begin(StateSigningOut); err != nil {
		return err
	}

	err := m.backend.SignOut(ctx)
	if err != nil {
		m.logger.Error("logout failed", errors.Wrap(err, "signing out"))
	}
	m.end(StateIdle, nil)
	return errors.Wrap(err, "signing out")
}

// RefreshUser reloads the user from the Backend current identity.
// Any failure leaves no user rather than a stale one.
func (m *Manager) RefreshUser(ctx context.Context) {
	if err := m.begin(StateRefreshing); err != nil {
		m.logger.Debug("refresh skipped", err)
		return
	}

	usr, err := m.loadUser(ctx)
	if err != nil {
		m.logger.Error("refreshing user", err)
	}
	m.end(settledState(usr), usr)
}

func (m *Manager) clear() {
	if err := m.begin(StateSigningOut); err != nil {
		m.logger.Debug("clear skipped", err)
		return
	}
	m.end(StateIdle, nil)
}

func (m *Manager) onAuthStateChange(ev identity.Event) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	switch ev.Type {
	case identity.SignedIn:
		m.RefreshUser(ctx)
	case identity.SignedOut:
		m.clear()
	}
}

func (m *Manager) loadUser(ctx context.Context) (*user.User, error) {
	id, err := m.backend.CurrentIdentity(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting current identity")
	}
	if id == "" {
		return nil, nil
	}
	usr, err := m.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "finding user by ID")
	}
	return &usr, nil
}

// begin moves into a transitional state, unless another transition is running.
func (m *Manager) begin(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.transitional() {
		return errors.Wrapf(ErrBusy, "%s while %s", next, m.state)
	}
	m.state = next
	return nil
}

// end settles the state, sets the user and notifies the observers.
func (m *Manager) end(next State, usr *user.User) {
	m.mu.Lock()
	m.state = next
	m.usr = usr
	observers := make([]func(*user.User), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		var cp *user.User
		if usr != nil {
			u := *usr
			cp = &u
		}
		fn(cp)
	}
}
