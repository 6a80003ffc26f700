package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cbc-edu/eduplatform/core/payment"
)

type planRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Amount      float64   `db:"amount"`
	Currency    string    `db:"currency"`
	Term        string    `db:"term"`
	DueDate     time.Time `db:"due_date"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r planRow) plan() payment.Plan {
	return payment.Plan{
		ID:          r.ID,
		Name:        r.Name,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Term:        r.Term,
		DueDate:     time.Date(r.DueDate.Year(), r.DueDate.Month(), r.DueDate.Day(), 0, 0, 0, 0, time.UTC),
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type paymentRow struct {
	ID          string      `db:"id"`
	PlanID      string      `db:"plan_id"`
	UserID      string      `db:"user_id"`
	Amount      float64     `db:"amount"`
	Currency    string      `db:"currency"`
	APIRef      string      `db:"api_ref"`
	CheckoutID  null.String `db:"checkout_id"`
	CheckoutURL null.String `db:"checkout_url"`
	State       string      `db:"state"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toPaymentRow(p payment.Payment) paymentRow {
	return paymentRow{
		ID:          p.ID,
		PlanID:      p.PlanID,
		UserID:      p.UserID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		APIRef:      p.APIRef,
		CheckoutID:  null.NewString(p.CheckoutID, p.CheckoutID != ""),
		CheckoutURL: null.NewString(p.CheckoutURL, p.CheckoutURL != ""),
		State:       p.State,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (r paymentRow) payment() payment.Payment {
	return payment.Payment{
		ID:          r.ID,
		PlanID:      r.PlanID,
		UserID:      r.UserID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		APIRef:      r.APIRef,
		CheckoutID:  r.CheckoutID.String,
		CheckoutURL: r.CheckoutURL.String,
		State:       r.State,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const (
	planColumns    = "id, name, amount, currency, term, due_date, description, created_at"
	paymentColumns = "id, plan_id, user_id, amount, currency, api_ref, checkout_id, checkout_url, state, created_at, updated_at"
)

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo paymentRepository) CreatePlan(ctx context.Context, plan payment.Plan) (payment.Plan, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO payment_plans ("+planColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		plan.ID, plan.Name, plan.Amount, plan.Currency, plan.Term,
		plan.DueDate.Format(payment.DateLayout), plan.Description, plan.CreatedAt.UTC())
	if err != nil {
		return payment.Plan{}, errors.Wrap(err, "inserting plan")
	}
	return plan, nil
}

func (repo paymentRepository) QueryPlans(ctx context.Context) ([]payment.Plan, error) {
	var rows []planRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+planColumns+" FROM payment_plans ORDER BY due_date, name"); err != nil {
		return nil, errors.Wrap(err, "querying plans")
	}
	plans := make([]payment.Plan, 0, len(rows))
	for _, r := range rows {
		plans = append(plans, r.plan())
	}
	return plans, nil
}

func (repo paymentRepository) GetPlan(ctx context.Context, id string) (payment.Plan, error) {
	if !validUUID(id) {
		return payment.Plan{}, payment.ErrPlanNotFound
	}
	var row planRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+planColumns+" FROM payment_plans WHERE id = $1", id); err != nil {
		return payment.Plan{}, trapNoRowsErr(err, payment.ErrPlanNotFound, "finding plan")
	}
	return row.plan(), nil
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES "+
			"(:id, :plan_id, :user_id, :amount, :currency, :api_ref, :checkout_id, :checkout_url, :state, :created_at, :updated_at)",
		toPaymentRow(p))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE payments SET checkout_id = :checkout_id, checkout_url = :checkout_url, "+
			"state = :state, updated_at = :updated_at WHERE id = :id",
		toPaymentRow(p))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "updating payment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.Payment{}, payment.ErrPaymentNotFound
	}
	return p, nil
}

func (repo paymentRepository) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	if !validUUID(id) {
		return payment.Payment{}, payment.ErrPaymentNotFound
	}
	var row paymentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id); err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrPaymentNotFound, "finding payment")
	}
	return row.payment(), nil
}

func (repo paymentRepository) QueryPaymentsByUser(ctx context.Context, userID string) ([]payment.Payment, error) {
	if !validUUID(userID) {
		return []payment.Payment{}, nil
	}
	var rows []paymentRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+paymentColumns+" FROM payments WHERE user_id = $1 ORDER BY created_at", userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.payment())
	}
	return payments, nil
}
