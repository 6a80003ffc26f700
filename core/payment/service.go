package payment

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrPlanNotFound    = errors.New("payment plan not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAlreadyPaid     = errors.New("this plan is already paid")
	ErrNoPhoneNumber   = errors.New("a phone number is required to pay with M-PESA")
)

type (
	Repository interface {
		CreatePlan(ctx context.Context, plan Plan) (Plan, error)
		QueryPlans(ctx context.Context) ([]Plan, error) // by due date
		GetPlan(ctx context.Context, id string) (Plan, error)
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		QueryPaymentsByUser(ctx context.Context, userID string) ([]Payment, error)
	}

	Service struct {
		repo        Repository
		gateway     Gateway
		mailSvc     core.EmailService
		validate    *validator.Validate
		logger      core.Logger
		redirectURL string
	}
)

func NewService(
	repo Repository,
	gateway Gateway,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:        repo,
		gateway:     gateway,
		mailSvc:     mailSvc,
		validate:    validate,
		logger:      logger,
		redirectURL: conf.IntaSend.RedirectURL,
	}
}

func (svc *Service) CreatePlan(ctx context.Context, np NewPlan) (Plan, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Plan{}, err
	}
	due, err := time.Parse(DateLayout, np.DueDate)
	if err != nil {
		return Plan{}, core.NewFieldError("due_date", "due date must be formatted as YYYY-MM-DD")
	}
	return svc.repo.CreatePlan(ctx, Plan{
		ID:          uuid.NewString(),
		Name:        np.Name,
		Amount:      np.Amount,
		Currency:    np.Currency,
		Term:        np.Term,
		DueDate:     due,
		Description: np.Description,
		CreatedAt:   NowFunc().UTC(),
	})
}

func (svc *Service) QueryPlans(ctx context.Context) ([]Plan, error) {
	return svc.repo.QueryPlans(ctx)
}

// ListCards presents every Plan to userID. A Plan is paid once one of the user's payments for it is complete.
func (svc *Service) ListCards(ctx context.Context, userID string, now time.Time) ([]Card, error) {
	plans, err := svc.repo.QueryPlans(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying plans")
	}
	paid, err := svc.paidPlans(ctx, userID)
	if err != nil {
		return nil, err
	}

	cards := make([]Card, 0, len(plans))
	for _, plan := range plans {
		cards = append(cards, NewCard(plan, paid[plan.ID], now))
	}
	return cards, nil
}

func (svc *Service) paidPlans(ctx context.Context, userID string) (map[string]bool, error) {
	payments, err := svc.repo.QueryPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	paid := make(map[string]bool, len(payments))
	for _, p := range payments {
		if p.IsComplete() {
			paid[p.PlanID] = true
		}
	}
	return paid, nil
}

// Checkout records a pending Payment of usr for a Plan and opens an M-PESA checkout for it.
// The Payment is marked failed when the gateway refuses the checkout.
func (svc *Service) Checkout(ctx context.Context, usr user.User, nc NewCheckout) (Payment, Checkout, error) {
	if err := svc.validate.Struct(nc); err != nil {
		return Payment{}, Checkout{}, err
	}
	plan, err := svc.repo.GetPlan(ctx, nc.PlanID)
	if err != nil {
		return Payment{}, Checkout{}, err
	}
	paid, err := svc.paidPlans(ctx, usr.ID)
	if err != nil {
		return Payment{}, Checkout{}, err
	}
	if paid[plan.ID] {
		return Payment{}, Checkout{}, core.NewValidationError(ErrAlreadyPaid)
	}

	phone := core.CleanString(nc.PhoneNumber)
	if phone == "" {
		phone = usr.Phone
	}
	if phone == "" {
		return Payment{}, Checkout{}, core.NewFieldError("phone_number", ErrNoPhoneNumber.Error())
	}

	now := NowFunc().UTC()
	p, err := svc.repo.CreatePayment(ctx, Payment{
		ID:        uuid.NewString(),
		PlanID:    plan.ID,
		UserID:    usr.ID,
		Amount:    plan.Amount,
		Currency:  plan.Currency,
		APIRef:    newAPIRef(),
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Payment{}, Checkout{}, errors.Wrap(err, "creating payment")
	}

	co, err := svc.gateway.InitiatePayment(ctx, CheckoutRequest{
		Amount:      p.Amount,
		Currency:    p.Currency,
		Email:       usr.Email,
		PhoneNumber: phone,
		APIRef:      p.APIRef,
		RedirectURL: svc.redirectURL,
		Comment:     plan.Name,
	})
	if err != nil {
		p.State = StateFailed
		p.UpdatedAt = NowFunc().UTC()
		if _, uErr := svc.repo.UpdatePayment(ctx, p); uErr != nil {
			svc.logger.Error("marking payment as failed", errors.Wrap(uErr, p.ID), usr.Person())
		}
		return p, Checkout{}, errors.Wrap(err, "initiating payment")
	}

	p.CheckoutID = co.CheckoutID
	if p.CheckoutID == "" {
		p.CheckoutID = co.ID
	}
	p.CheckoutURL = co.URL
	p.UpdatedAt = NowFunc().UTC()
	if p, err = svc.repo.UpdatePayment(ctx, p); err != nil {
		return Payment{}, Checkout{}, errors.Wrap(err, "updating payment")
	}
	return p, co, nil
}

// RefreshStatus asks the gateway once for the state of a Payment of usr and records it.
// Settled payments are returned as they are.
func (svc *Service) RefreshStatus(ctx context.Context, usr user.User, paymentID string) (Payment, error) {
	p, err := svc.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.UserID != usr.ID {
		return Payment{}, ErrPaymentNotFound
	}
	if p.IsSettled() || p.CheckoutID == "" {
		return p, nil
	}

	status, err := svc.gateway.CheckPaymentStatus(ctx, p.CheckoutID)
	if err != nil {
		return Payment{}, errors.Wrap(err, "checking payment status")
	}
	state := strings.ToUpper(status.State)
	switch state {
	case StatePending, StateProcessing, StateComplete, StateFailed:
	default:
		return p, nil
	}
	if state == p.State {
		return p, nil
	}

	p.State = state
	p.UpdatedAt = NowFunc().UTC()
	if p, err = svc.repo.UpdatePayment(ctx, p); err != nil {
		return Payment{}, errors.Wrap(err, "updating payment")
	}
	if p.IsComplete() {
		svc.sendReceipt(ctx, usr, p)
	}
	return p, nil
}

func (svc *Service) sendReceipt(ctx context.Context, usr user.User, p Payment) {
	planName := p.PlanID
	if plan, err := svc.repo.GetPlan(ctx, p.PlanID); err == nil {
		planName = plan.Name
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Payment received",
		TemplateName: "payment_receipt",
		TemplateData: receiptData{
			Name:      usr.Name,
			Amount:    FormatAmount(p.Amount, p.Currency),
			Plan:      planName,
			Reference: p.APIRef,
		},
	})
}

type receiptData struct {
	Name      string
	Amount    string
	Plan      string
	Reference string
}

func newAPIRef() string {
	return "EDU-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
