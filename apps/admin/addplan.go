package main

import (
	"context"
	"fmt"

	"github.com/cbc-edu/eduplatform/core/payment"
)

func (cli *commandLine) addPlan(ctx context.Context, np payment.NewPlan) error {
	plan, err := cli.paySvc.CreatePlan(ctx, np)
	if err != nil {
		return err
	}
	fmt.Printf("plan %q (%s, due %s) created: %s\n",
		plan.Name, payment.FormatAmount(plan.Amount, plan.Currency), plan.DueDate.Format(payment.DateLayout), plan.ID)
	return nil
}
