package payment

import (
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestDaysUntilDue(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)

	tests := []struct {
		name string
		due  time.Time
		now  time.Time
		want int
	}{
		{name: "today", due: date(2024, 1, 10), now: date(2024, 1, 10), want: 0},
		{name: "later today", due: date(2024, 1, 10), now: date(2024, 1, 10).Add(23 * time.Hour), want: 0},
		{name: "tomorrow", due: date(2024, 1, 11), now: date(2024, 1, 10).Add(23 * time.Hour), want: 1},
		{name: "yesterday", due: date(2024, 1, 9), now: date(2024, 1, 10), want: -1},
		{name: "overdue", due: date(2024, 1, 1), now: date(2024, 1, 10), want: -9},
		{name: "next year", due: date(2025, 1, 10), now: date(2024, 1, 10), want: 366},
		{name: "due time of day rounds up", due: date(2024, 1, 11).Add(6 * time.Hour), now: date(2024, 1, 10), want: 2},
		{
			name: "now in another zone",
			due:  time.Date(2024, 1, 11, 0, 0, 0, 0, nairobi),
			now:  date(2024, 1, 10).Add(22 * time.Hour), // Jan 11th 01:00 in Nairobi
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntilDue(tt.due, tt.now); got != tt.want {
				t.Errorf("DaysUntilDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	now := date(2024, 1, 10)

	tests := []struct {
		name      string
		paid      bool
		due       time.Time
		want      Status
		wantLabel string
	}{
		{name: "paid overdue", paid: true, due: date(2024, 1, 1), want: StatusPaid, wantLabel: "Paid"},
		{name: "paid due soon", paid: true, due: date(2024, 1, 12), want: StatusPaid, wantLabel: "Paid"},
		{name: "overdue", due: date(2024, 1, 1), want: StatusOverdue, wantLabel: "Overdue"},
		{name: "due today", due: date(2024, 1, 10), want: StatusDueSoon, wantLabel: "Due Soon"},
		{name: "due in a week", due: date(2024, 1, 17), want: StatusDueSoon, wantLabel: "Due Soon"},
		{name: "due in 8 days", due: date(2024, 1, 18), want: StatusPending, wantLabel: "Pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StatusOf(tt.paid, tt.due, now)
			if got != tt.want {
				t.Errorf("StatusOf() = %v, want %v", got, tt.want)
			}
			if label := got.Label(); label != tt.wantLabel {
				t.Errorf("Label() = %v, want %v", label, tt.wantLabel)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{5000, "KES", "KSh5,000"},
		{1500.5, "KES", "KSh1,500.5"},
		{1234567.891, "kes", "KSh1,234,567.89"},
		{0, "KES", "KSh0"},
		{-250, "KES", "-KSh250"},
		{99.999, "USD", "US$100"},
		{10, "XYZ", "XYZ 10"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatAmount(tt.amount, tt.currency); got != tt.want {
				t.Errorf("FormatAmount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCard(t *testing.T) {
	now := date(2024, 1, 10)
	plan := Plan{ID: "1", Name: "Tuition", Amount: 5000, Currency: "KES", DueDate: date(2024, 1, 1)}

	card := NewCard(plan, false, now)
	if card.Status != StatusOverdue {
		t.Errorf("Status = %v, want %v", card.Status, StatusOverdue)
	}
	if card.DaysUntilDue != -9 {
		t.Errorf("DaysUntilDue = %v, want -9", card.DaysUntilDue)
	}
	if card.OverdueLabel != "9 days overdue" {
		t.Errorf("OverdueLabel = %q, want %q", card.OverdueLabel, "9 days overdue")
	}
	if card.FormattedAmount != "KSh5,000" {
		t.Errorf("FormattedAmount = %q, want %q", card.FormattedAmount, "KSh5,000")
	}
	if !card.CanPay {
		t.Error("CanPay = false, want true")
	}

	paid := NewCard(plan, true, now)
	if paid.Status != StatusPaid || paid.OverdueLabel != "" || paid.CanPay {
		t.Errorf("paid card = %+v", paid)
	}
}

func TestOverdueDays(t *testing.T) {
	for days, want := range map[int]int{-9: 9, -1: 1, 0: 0, 5: 0} {
		if got := OverdueDays(days); got != want {
			t.Errorf("OverdueDays(%d) = %d, want %d", days, got, want)
		}
	}
}
