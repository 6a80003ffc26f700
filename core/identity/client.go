package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Client is one caller of the Service: it holds that caller's access token
// and only hears about the auth events of its own sessions.
type Client struct {
	id  string
	svc *Service

	mu    sync.RWMutex
	token string
}

func NewClient(svc *Service) *Client {
	return &Client{id: uuid.NewString(), svc: svc}
}

func (c *Client) ID() string { return c.id }

// Token is the current access token, empty when signed out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SignIn starts a new session and ends the one it replaces, if any.
// A failed sign in leaves the current session alone.
func (c *Client) SignIn(ctx context.Context, email, pwd string) error {
	_, token, err := c.svc.SignIn(ctx, email, pwd, c.id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.token
	c.token = token
	c.mu.Unlock()

	if old != "" {
		// the old session expires on its own when it cannot be ended now
		_ = c.svc.SignOut(ctx, old)
	}
	return nil
}

// SignOut ends the current session. The token is kept when the Service could not end it.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return nil
	}
	err := c.svc.SignOut(ctx, token)
	switch errors.Cause(err) {
	case nil, ErrSessionNotFound, ErrInvalidToken:
		c.setToken("")
		return nil
	default:
		return err
	}
}

// CurrentIdentity returns the ID of the signed-in Identity, or "" when there is none.
func (c *Client) CurrentIdentity(ctx context.Context) (string, error) {
	token := c.Token()
	if token == "" {
		return "", nil
	}
	sess, err := c.svc.Authenticate(ctx, token)
	switch errors.Cause(err) {
	case nil:
		return sess.IdentityID, nil
	case ErrSessionNotFound, ErrInvalidToken:
		c.setToken("")
		return "", nil
	default:
		return "", err
	}
}

// OnAuthStateChange calls fn for every event about this client's sessions.
func (c *Client) OnAuthStateChange(ctx context.Context, fn func(Event)) (Subscription, error) {
	return c.svc.Subscribe(ctx, func(ev Event) {
		if ev.ClientID != c.id {
			return
		}
		if ev.Type == SignedOut {
			c.mu.Lock()
			if c.token != "" {
				if claims, err := parseToken(c.svc.key, c.token); err != nil || claims.Id == ev.SessionID {
					c.token = ""
				}
			}
			c.mu.Unlock()
		}
		fn(ev)
	})
}
