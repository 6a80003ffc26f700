package inmemdb

import (
	"context"
	"sort"

	"github.com/cbc-edu/eduplatform/core/payment"
)

type paymentRepository struct {
	db *paymentTables
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db.payments}
}

func (repo *paymentRepository) CreatePlan(_ context.Context, plan payment.Plan) (payment.Plan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.plans[plan.ID] = &plan
	return plan, nil
}

func (repo *paymentRepository) QueryPlans(_ context.Context) ([]payment.Plan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	plans := make([]payment.Plan, 0, len(repo.db.plans))
	for _, p := range repo.db.plans {
		plans = append(plans, *p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].DueDate.Equal(plans[j].DueDate) {
			return plans[i].Name < plans[j].Name
		}
		return plans[i].DueDate.Before(plans[j].DueDate)
	})
	return plans, nil
}

func (repo *paymentRepository) GetPlan(_ context.Context, id string) (payment.Plan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.plans[id]; ok {
		return *p, nil
	}
	return payment.Plan{}, payment.ErrPlanNotFound
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.payments[p.ID] = &p
	return p, nil
}

func (repo *paymentRepository) UpdatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.payments[p.ID]
	if !ok {
		return payment.Payment{}, payment.ErrPaymentNotFound
	}
	// only the gateway side of a payment changes
	orig.CheckoutID = p.CheckoutID
	orig.CheckoutURL = p.CheckoutURL
	orig.State = p.State
	orig.UpdatedAt = p.UpdatedAt
	return *orig, nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, id string) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.payments[id]; ok {
		return *p, nil
	}
	return payment.Payment{}, payment.ErrPaymentNotFound
}

func (repo *paymentRepository) QueryPaymentsByUser(_ context.Context, userID string) ([]payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	payments := make([]payment.Payment, 0)
	for _, p := range repo.db.payments {
		if p.UserID == userID {
			payments = append(payments, *p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	return payments, nil
}
