package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/user"
)

type userApi struct {
	identitySvc *identity.Service
	usrSvc      *user.Service
	validate    *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	identitySvc *identity.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := userApi{
		identitySvc: identitySvc,
		usrSvc:      usrSvc,
		validate:    validate,
	}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)

	// authed endpoints
	ag.POST("/logout", api.logout, authed...)
	g.GET("/users/me", api.me, authed...)
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}

	usr, err := api.usrSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, SignupResponse{User: usr, Message: user.MsgAccountCreated})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	clientID := ctx.Request().Header.Get(clientIDHeader)
	_, token, err := api.identitySvc.SignIn(ctx.Request().Context(), data.Email, data.Password, clientID)
	if err != nil {
		return errors.Wrap(err, "signing in")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) logout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.identitySvc.EndSession(ctx.Request().Context(), sess); err != nil {
		return errors.Wrap(err, "ending session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) me(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	prof, err := api.usrSvc.GetProfile(ctx.Request().Context(), sess.IdentityID)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}
