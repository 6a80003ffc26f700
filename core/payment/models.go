package payment

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cbc-edu/eduplatform/core"
)

// DateLayout is the layout of plan due dates.
const DateLayout = "2006-01-02"

// Payment states, as reported by the gateway
const (
	StatePending    = "PENDING"
	StateProcessing = "PROCESSING"
	StateComplete   = "COMPLETE"
	StateFailed     = "FAILED"
)

// Plan is a fee owed by every user of the institution by DueDate.
type Plan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Term        string    `json:"term"`
	DueDate     time.Time `json:"due_date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Payment is one checkout attempt of a user for a Plan.
type Payment struct {
	ID          string    `json:"id"`
	PlanID      string    `json:"plan_id"`
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	APIRef      string    `json:"api_ref"`
	CheckoutID  string    `json:"checkout_id,omitempty"`
	CheckoutURL string    `json:"checkout_url,omitempty"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (p Payment) IsComplete() bool { return p.State == StateComplete }

// IsSettled reports whether the gateway will no longer change the state.
func (p Payment) IsSettled() bool { return p.State == StateComplete || p.State == StateFailed }

// NewPlan contains information needed to create a new Plan.
type NewPlan struct {
	Name        string  `json:"name" validate:"required,notblank"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3,alpha"`
	Term        string  `json:"term"`
	DueDate     string  `json:"due_date" validate:"required,datetime=2006-01-02"`
	Description string  `json:"description"`
}

func (np *NewPlan) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Currency = strings.ToUpper(core.CleanString(np.Currency))
	np.Term = core.CleanString(np.Term)
	np.DueDate = core.CleanString(np.DueDate)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

// NewCheckout asks for a checkout of a Plan. PhoneNumber defaults to the user's phone.
type NewCheckout struct {
	PlanID      string `json:"plan_id" validate:"required"`
	PhoneNumber string `json:"phone_number"`
}
