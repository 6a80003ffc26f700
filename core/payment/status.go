package payment

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// dueSoonDays is how many days ahead of its due date a Plan is due soon.
const dueSoonDays = 7

type Status string

const (
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	StatusDueSoon Status = "due_soon"
	StatusPending Status = "pending"
)

func (s Status) Label() string {
	switch s {
	case StatusPaid:
		return "Paid"
	case StatusOverdue:
		return "Overdue"
	case StatusDueSoon:
		return "Due Soon"
	default:
		return "Pending"
	}
}

// currencySymbols follows the en-KE locale.
var currencySymbols = map[string]string{
	"KES": "KSh",
	"USD": "US$",
	"EUR": "€",
	"GBP": "£",
	"UGX": "USh",
	"TZS": "TSh",
}

// DaysUntilDue is the number of calendar days from now to due, negative once due has passed.
// now is taken to its date in the location of due.
func DaysUntilDue(due, now time.Time) int {
	now = now.In(due.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, due.Location())
	return int(math.Ceil(due.Sub(today).Hours() / 24))
}

// StatusOf derives the status of a plan due on due. Paid wins over everything else.
func StatusOf(paid bool, due, now time.Time) Status {
	if paid {
		return StatusPaid
	}
	days := DaysUntilDue(due, now)
	switch {
	case days < 0:
		return StatusOverdue
	case days <= dueSoonDays:
		return StatusDueSoon
	default:
		return StatusPending
	}
}

// FormatAmount formats amount the en-KE way, without fraction digits unless needed (2 at most).
// e.g. FormatAmount(5000, "KES") == "KSh5,000"
func FormatAmount(amount float64, currency string) string {
	currency = strings.ToUpper(currency)
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}

	var sign string
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	amount = math.Round(amount*100) / 100
	return sign + symbol + humanize.CommafWithDigits(amount, 2)
}

// Card is how a Plan is presented to a user.
type Card struct {
	Plan            Plan   `json:"plan"`
	Status          Status `json:"status"`
	Label           string `json:"label"`
	FormattedAmount string `json:"formatted_amount"`
	DaysUntilDue    int    `json:"days_until_due"`
	OverdueLabel    string `json:"overdue_label,omitempty"`
	CanPay          bool   `json:"can_pay"`
}

func NewCard(plan Plan, paid bool, now time.Time) Card {
	days := DaysUntilDue(plan.DueDate, now)
	status := StatusOf(paid, plan.DueDate, now)
	card := Card{
		Plan:            plan,
		Status:          status,
		Label:           status.Label(),
		FormattedAmount: FormatAmount(plan.Amount, plan.Currency),
		DaysUntilDue:    days,
		CanPay:          !paid,
	}
	if status == StatusOverdue {
		card.OverdueLabel = strconv.Itoa(OverdueDays(days)) + " days overdue"
	}
	return card
}

// OverdueDays is the number of days a plan is overdue by, given its DaysUntilDue.
func OverdueDays(daysUntilDue int) int {
	if daysUntilDue >= 0 {
		return 0
	}
	return -daysUntilDue
}
