package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
)

// clientIDHeader lets a device keep the same client ID across sign-ins.
const clientIDHeader = "X-Client-ID"

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SignupResponse struct {
		User    user.User `json:"user"`
		Message string    `json:"message"`
	}

	CheckoutResponse struct {
		Payment  payment.Payment  `json:"payment"`
		Checkout payment.Checkout `json:"checkout"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
