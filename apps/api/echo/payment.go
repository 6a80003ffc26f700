package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
)

type paymentApi struct {
	usrSvc *user.Service
	svc    *payment.Service
}

func registerPaymentAPI(g *echo.Group, authed []echo.MiddlewareFunc, usrSvc *user.Service, svc *payment.Service) {
	api := paymentApi{usrSvc: usrSvc, svc: svc}

	pg := g.Group("/payments", authed...)
	pg.GET("/plans", api.plans)
	pg.POST("/checkout", api.checkout)
	pg.GET("/:id/status", api.status)
}

// Handlers

func (api *paymentApi) plans(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cards, err := api.svc.ListCards(ctx.Request().Context(), usr.ID, payment.NowFunc())
	if err != nil {
		return errors.Wrap(err, "listing payment cards")
	}
	return ctx.JSON(http.StatusOK, cards)
}

func (api *paymentApi) checkout(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data payment.NewCheckout
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCheckout")
	}

	p, co, err := api.svc.Checkout(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "checking out")
	}
	return ctx.JSON(http.StatusCreated, CheckoutResponse{Payment: p, Checkout: co})
}

func (api *paymentApi) status(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.svc.RefreshStatus(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "refreshing payment status")
	}
	return ctx.JSON(http.StatusOK, p)
}
