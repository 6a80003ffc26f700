package identity

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cbc-edu/eduplatform/core"
)

// Identity is the authentication record behind a user profile. It outlives sign-out.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

func NewIdentity(email, phone, pwd string) (Identity, error) {
	ident := Identity{
		ID:        uuid.NewString(),
		Email:     core.CleanString(email, true /* lower */),
		Phone:     core.CleanString(phone),
		CreatedAt: NowFunc().UTC(),
	}
	if err := ident.SetPassword(pwd); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

func (i *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	i.PasswordHash = hash
	return nil
}

func (i *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(i.PasswordHash, []byte(pwd))
}

// Session is one signed-in client of an Identity.
type Session struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	ClientID   string    `json:"client_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

// Event notifies subscribers that a session started or ended.
type Event struct {
	Type       EventType `json:"type"`
	IdentityID string    `json:"identity_id"`
	SessionID  string    `json:"session_id"`
	ClientID   string    `json:"client_id"`
	At         time.Time `json:"at"`
}

// Subscription is returned by EventBus.Subscribe; Unsubscribe stops the delivery of events.
type Subscription interface {
	Unsubscribe()
}
