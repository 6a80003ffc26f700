package payment

import (
	"context"
	"encoding/json"
	"fmt"
)

// Mobile money method & provider of every checkout
const MethodMPesa = "M-PESA"

type (
	// Gateway is a payment provider's checkout API.
	Gateway interface {
		InitiatePayment(ctx context.Context, req CheckoutRequest) (Checkout, error)
		CheckPaymentStatus(ctx context.Context, checkoutID string) (CheckoutStatus, error)
	}

	CheckoutRequest struct {
		Amount      float64 `json:"amount"`
		Currency    string  `json:"currency"`
		Email       string  `json:"email"`
		PhoneNumber string  `json:"phone_number"`
		APIRef      string  `json:"api_ref"`
		RedirectURL string  `json:"redirect_url,omitempty"`
		Comment     string  `json:"comment,omitempty"`
	}

	// Checkout describes a checkout session created by the gateway.
	Checkout struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		Signature  string `json:"signature"`
		APIRef     string `json:"api_ref"`
		CheckoutID string `json:"checkout_id"`
	}

	// CheckoutStatus is the gateway view of a checkout. Raw is the payload as received,
	// State the invoice state found in it, if any.
	CheckoutStatus struct {
		State string          `json:"state,omitempty"`
		Raw   json.RawMessage `json:"raw"`
	}
)

// GatewayError is returned when the gateway answers with a non-success status.
type GatewayError struct {
	Op         string // "Payment initiation" | "Status check"
	StatusCode int
	StatusText string
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.StatusText)
}
