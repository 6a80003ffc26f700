package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
)

// httpError maps the errors of the core packages to their HTTP counterpart. It returns nil for any other error.
func httpError(err error) *echo.HTTPError {
	switch cause := errors.Cause(err); cause {
	case identity.ErrInvalidCredentials:
		return errAuthenticationFailed
	case identity.ErrSessionNotFound, identity.ErrInvalidToken:
		return errUnauthorized
	case identity.ErrNotFound, user.ErrNotFound, payment.ErrPlanNotFound, payment.ErrPaymentNotFound:
		return echo.NewHTTPError(http.StatusNotFound, cause.Error())
	}

	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		return echo.NewHTTPError(http.StatusBadGateway, gwErr.Error())
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if herr := httpError(err); herr != nil {
			err = herr
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		default:
			if msgs := core.ValidationMessages(err, translator); msgs != nil {
				code = http.StatusBadRequest
				message = msgs
				break
			}
			if core.IsValidationError(err) {
				code = http.StatusBadRequest
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var person core.Person
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				person.ID = claims.Subject
				person.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), person)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
