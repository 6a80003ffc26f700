package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/user"
)

const (
	contextTokenKey   = "userToken"
	contextSessionKey = "session"
	contextUserKey    = "user"
)

func jwtMiddleware(svc *identity.Service) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    svc.SigningKey(),
		SigningMethod: identity.SigningMethod,
		ContextKey:    contextTokenKey,
		Claims:        new(identity.Claims),
	})
}

// sessionMiddleware rejects tokens whose session was signed out or expired.
func sessionMiddleware(svc *identity.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			sess, err := svc.SessionOf(ctx.Request().Context(), &claims)
			if err != nil {
				return errors.Wrap(err, "getting session")
			}
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (identity.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*identity.Claims); ok {
			return *claims, nil
		}
	}
	return identity.Claims{}, errUnauthorized
}

func getContextSession(ctx echo.Context) (identity.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(identity.Session); ok {
		return sess, nil
	}
	return identity.Session{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	sess, err := getContextSession(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), sess.IdentityID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
