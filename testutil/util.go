package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
)

// CreateAccount stores an account straight into repo, bypassing registration.
func CreateAccount(t *testing.T, repo user.Repository, name, email, pwd, role string, phone ...string) user.User {
	t.Helper()

	var ph string
	if len(phone) > 0 {
		ph = phone[0]
	}
	ident, err := identity.NewIdentity(email, ph, pwd)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	acct := user.Account{
		Identity: ident,
		User: user.User{
			ID:            ident.ID,
			Name:          name,
			Email:         ident.Email,
			Phone:         ident.Phone,
			Role:          role,
			InstitutionID: core.DefaultInstitutionID,
			CreatedAt:     ident.CreatedAt,
		},
	}
	switch role {
	case user.RoleStudent:
		acct.Student = &user.Student{UserID: ident.ID, AdmissionNumber: "ADM-" + ident.ID[:8], GradeLevel: "Grade 1"}
	case user.RoleTeacher:
		acct.Teacher = &user.Teacher{UserID: ident.ID, EmployeeNumber: "EMP-" + ident.ID[:8]}
	}
	if err = repo.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acct.User
}

// Date is midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func CreatePlan(t *testing.T, repo payment.Repository, name string, amount float64, due time.Time) payment.Plan {
	t.Helper()

	plan, err := repo.CreatePlan(context.Background(), payment.Plan{
		ID:        uuid.NewString(),
		Name:      name,
		Amount:    amount,
		Currency:  "KES",
		Term:      "Term 1 2024",
		DueDate:   due,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}
	return plan
}

func CreatePayment(t *testing.T, repo payment.Repository, usr user.User, plan payment.Plan, state string, checkoutID ...string) payment.Payment {
	t.Helper()

	now := time.Now().UTC()
	p := payment.Payment{
		ID:        uuid.NewString(),
		PlanID:    plan.ID,
		UserID:    usr.ID,
		Amount:    plan.Amount,
		Currency:  plan.Currency,
		APIRef:    "EDU-" + strings.ToUpper(uuid.NewString()[:12]),
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(checkoutID) > 0 {
		p.CheckoutID = checkoutID[0]
	}
	p, err := repo.CreatePayment(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return p
}

// FakeGateway is a payment.Gateway answering from its funcs and recording the requests it got.
type FakeGateway struct {
	InitiateFunc func(req payment.CheckoutRequest) (payment.Checkout, error)
	StatusFunc   func(checkoutID string) (payment.CheckoutStatus, error)

	mu       sync.Mutex
	requests []payment.CheckoutRequest
	checks   []string
}

var _ payment.Gateway = (*FakeGateway)(nil)

func (gw *FakeGateway) InitiatePayment(_ context.Context, req payment.CheckoutRequest) (payment.Checkout, error) {
	gw.mu.Lock()
	gw.requests = append(gw.requests, req)
	gw.mu.Unlock()

	if gw.InitiateFunc != nil {
		return gw.InitiateFunc(req)
	}
	return payment.Checkout{
		ID:         "INV-" + req.APIRef,
		CheckoutID: "CHK-" + req.APIRef,
		URL:        "https://pay.test/" + req.APIRef,
		APIRef:     req.APIRef,
	}, nil
}

func (gw *FakeGateway) CheckPaymentStatus(_ context.Context, checkoutID string) (payment.CheckoutStatus, error) {
	gw.mu.Lock()
	gw.checks = append(gw.checks, checkoutID)
	gw.mu.Unlock()

	if gw.StatusFunc != nil {
		return gw.StatusFunc(checkoutID)
	}
	return payment.CheckoutStatus{State: payment.StatePending}, nil
}

func (gw *FakeGateway) Requests() []payment.CheckoutRequest {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]payment.CheckoutRequest(nil), gw.requests...)
}

func (gw *FakeGateway) StatusChecks() []string {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]string(nil), gw.checks...)
}
