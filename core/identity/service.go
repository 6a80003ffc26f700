package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionNotFound    = errors.New("session not found")
)

type (
	Repository interface {
		GetIdentityByID(ctx context.Context, id string) (Identity, error)
		GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
		UpdatePassword(ctx context.Context, id string, hash []byte) error
	}

	// SessionStore keeps live sessions. GetSession returns ErrSessionNotFound once a session expired.
	SessionStore interface {
		SaveSession(ctx context.Context, sess Session) error
		GetSession(ctx context.Context, id string) (Session, error)
		DeleteSession(ctx context.Context, id string) error
	}

	EventBus interface {
		Publish(ctx context.Context, ev Event) error
		Subscribe(ctx context.Context, handler func(Event)) (Subscription, error)
	}

	Service struct {
		repo     Repository
		sessions SessionStore
		events   EventBus
		logger   core.Logger
		issuer   string
		key      []byte
		ttl      time.Duration
	}
)

func NewService(repo Repository, sessions SessionStore, events EventBus, logger core.Logger, conf *core.Config) *Service {
	ttl := conf.Session.TTL
	if ttl <= 0 {
		ttl = conf.Server.JWTExpirationDelta
	}
	return &Service{
		repo:     repo,
		sessions: sessions,
		events:   events,
		logger:   logger,
		issuer:   conf.AppName,
		key:      []byte(conf.SecretKey),
		ttl:      ttl,
	}
}

// SigningKey is the key access tokens are signed with.
func (svc *Service) SigningKey() []byte {
	return svc.key
}

// SignIn checks the credentials and opens a session for clientID.
// It returns the session and its signed access token.
func (svc *Service) SignIn(ctx context.Context, email, pwd, clientID string) (Session, string, error) {
	ident, err := svc.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Session{}, "", ErrInvalidCredentials
		}
		return Session{}, "", errors.Wrap(err, "finding identity by email")
	}
	if err = ident.CheckPassword(pwd); err != nil {
		return Session{}, "", ErrInvalidCredentials
	}

	if clientID == "" {
		clientID = uuid.NewString()
	}
	now := NowFunc().UTC().Truncate(time.Second)
	sess := Session{
		ID:         uuid.NewString(),
		IdentityID: ident.ID,
		ClientID:   clientID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(svc.ttl),
	}
	token, err := generateToken(svc.key, newClaims(svc.issuer, ident, sess))
	if err != nil {
		return Session{}, "", err
	}
	if err = svc.sessions.SaveSession(ctx, sess); err != nil {
		return Session{}, "", errors.Wrap(err, "saving session")
	}

	svc.publish(ctx, SignedIn, sess)
	return sess, token, nil
}

// Authenticate resolves an access token into its live session.
func (svc *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := parseToken(svc.key, token)
	if err != nil {
		return Session{}, err
	}
	return svc.SessionOf(ctx, claims)
}

// SessionOf returns the live session behind already verified claims.
// A session that is gone while its token is still valid was revoked or expired out-of-band:
// its client is told with a SIGNED_OUT event.
func (svc *Service) SessionOf(ctx context.Context, claims *Claims) (Session, error) {
	sess, err := svc.sessions.GetSession(ctx, claims.Id)
	if err != nil {
		if errors.Cause(err) == ErrSessionNotFound {
			svc.publish(ctx, SignedOut, Session{
				ID:         claims.Id,
				IdentityID: claims.Subject,
				ClientID:   claims.ClientID,
			})
			return Session{}, ErrSessionNotFound
		}
		return Session{}, errors.Wrap(err, "getting session")
	}
	if sess.IdentityID != claims.Subject || sess.Expired(NowFunc()) {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// SignOut ends the session of the given access token.
func (svc *Service) SignOut(ctx context.Context, token string) error {
	sess, err := svc.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	return svc.EndSession(ctx, sess)
}

// EndSession deletes sess and notifies its client.
func (svc *Service) EndSession(ctx context.Context, sess Session) error {
	if err := svc.sessions.DeleteSession(ctx, sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	svc.publish(ctx, SignedOut, sess)
	return nil
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Identity, error) {
	return svc.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
}

// ChangePassword sets a new password on the identity registered with email.
func (svc *Service) ChangePassword(ctx context.Context, email, pwd string) error {
	ident, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = ident.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdatePassword(ctx, ident.ID, ident.PasswordHash)
}

// Subscribe registers handler for every auth event.
func (svc *Service) Subscribe(ctx context.Context, handler func(Event)) (Subscription, error) {
	return svc.events.Subscribe(ctx, handler)
}

func (svc *Service) publish(ctx context.Context, typ EventType, sess Session) {
	ev := Event{
		Type:       typ,
		IdentityID: sess.IdentityID,
		SessionID:  sess.ID,
		ClientID:   sess.ClientID,
		At:         NowFunc().UTC(),
	}
	if err := svc.events.Publish(ctx, ev); err != nil {
		svc.logger.Error("publishing auth event", errors.Wrap(err, string(typ)))
	}
}
