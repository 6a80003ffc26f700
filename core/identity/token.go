package identity

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

const (
	audience = "EduPlatform"

	// SigningMethod is the algorithm access tokens are signed with.
	SigningMethod = "HS256"
)

// Claims represents the authorization claims transmitted via a JWT.
// StandardClaims.Subject is the Identity ID and StandardClaims.Id the Session ID.
type Claims struct {
	jwt.StandardClaims
	Email    string `json:"email,omitempty"`
	ClientID string `json:"cid,omitempty"`
}

func newClaims(issuer string, ident Identity, sess Session) *Claims {
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    issuer,
			Subject:   ident.ID,
			Audience:  audience,
			ExpiresAt: sess.ExpiresAt.Unix(),
			IssuedAt:  sess.CreatedAt.Unix(),
		},
		Email:    ident.Email,
		ClientID: sess.ClientID,
	}
}

// generateToken generates a signed JWT token string representing the Claims.
func generateToken(key []byte, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(SigningMethod), claims)
	ss, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken verifies the token signature and expiry.
func parseToken(key []byte, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Id == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
