package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	ut "github.com/go-playground/universal-translator"
	"golang.org/x/term"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/session"
	"github.com/cbc-edu/eduplatform/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errQuit        = errors.New("quit")
	errNotSignedIn = errors.New("not signed in: run login first")
)

type portal struct {
	in         *bufio.Scanner
	out        io.Writer
	manager    *session.Manager
	paySvc     *payment.Service
	translator ut.Translator
}

func newPortal(
	in io.Reader,
	out io.Writer,
	manager *session.Manager,
	paySvc *payment.Service,
	translator ut.Translator,
) *portal {
	return &portal{
		in:         bufio.NewScanner(in),
		out:        out,
		manager:    manager,
		paySvc:     paySvc,
		translator: translator,
	}
}

func (p *portal) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *portal) printHelp() {
	p.printf("Commands:\n")
	p.printf("  login                      - sign in with your email and password\n")
	p.printf("  logout                     - sign out\n")
	p.printf("  me                         - show who is signed in\n")
	p.printf("  plans                      - list your payment plans\n")
	p.printf("  pay PLAN_ID [PHONE]        - pay a plan with M-PESA\n")
	p.printf("  status PAYMENT_ID          - check a payment\n")
	p.printf("  help                       - show this help\n")
	p.printf("  quit                       - leave\n")
}

func (p *portal) prompt() {
	if usr := p.manager.User(); usr != nil {
		p.printf("%s> ", usr.Email)
		return
	}
	p.printf("> ")
}

func (p *portal) readLine() (string, bool) {
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

// run reads commands until quit or the end of the input.
func (p *portal) run(ctx context.Context) error {
	p.printf("Welcome to CBC EduPlatform. Type help for the list of commands.\n")
	for {
		p.prompt()
		line, ok := p.readLine()
		if !ok {
			return p.in.Err()
		}
		if line == "" {
			continue
		}

		err := p.exec(ctx, strings.Fields(line))
		if err == errQuit {
			return nil
		}
		if err != nil {
			p.printf("error: %s\n", err)
		}
	}
}

func (p *portal) exec(ctx context.Context, args []string) error {
	switch args[0] {
	case "login":
		return p.login(ctx)
	case "logout":
		return p.logout(ctx)
	case "me":
		return p.me()
	case "plans":
		return p.plans(ctx)
	case "pay":
		if len(args) < 2 {
			return errors.New("usage: pay PLAN_ID [PHONE]")
		}
		var phone string
		if len(args) > 2 {
			phone = args[2]
		}
		return p.pay(ctx, args[1], phone)
	case "status":
		if len(args) != 2 {
			return errors.New("usage: status PAYMENT_ID")
		}
		return p.status(ctx, args[1])
	case "help":
		p.printHelp()
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("%q: no such command", args[0])
	}
}

func (p *portal) currentUser() (user.User, error) {
	usr := p.manager.User()
	if usr == nil {
		return user.User{}, errNotSignedIn
	}
	return *usr, nil
}

func (p *portal) login(ctx context.Context) error {
	p.printf("Email: ")
	email, ok := p.readLine()
	if !ok || email == "" {
		return errors.New("an email is required")
	}
	p.printf("Password: ")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	p.printf("\n")
	if err != nil {
		return err
	}

	if !p.manager.Login(ctx, email, string(pwd)) {
		return errors.New("login failed: check your email and password")
	}
	usr := p.manager.User()
	p.printf("Welcome, %s!\n", usr.Name)
	return nil
}

func (p *portal) logout(ctx context.Context) error {
	if p.manager.User() == nil {
		return errNotSignedIn
	}
	err := p.manager.Logout(ctx)
	p.printf("Signed out.\n")
	return err
}

func (p *portal) me() error {
	usr, err := p.currentUser()
	if err != nil {
		return err
	}
	p.printf("%s <%s>\n", usr.Name, usr.Email)
	p.printf("role: %s\n", usr.Role)
	if usr.Phone != "" {
		p.printf("phone: %s\n", usr.Phone)
	}
	return nil
}

func (p *portal) plans(ctx context.Context) error {
	usr, err := p.currentUser()
	if err != nil {
		return err
	}
	cards, err := p.paySvc.ListCards(ctx, usr.ID, payment.NowFunc())
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		p.printf("No payment plans.\n")
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPLAN\tTERM\tAMOUNT\tSTATUS\tDUE")
	for _, c := range cards {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Plan.ID, c.Plan.Name, c.Plan.Term, c.FormattedAmount, c.Label, dueLabel(c))
	}
	return w.Flush()
}

func dueLabel(c payment.Card) string {
	due := c.Plan.DueDate.Format(payment.DateLayout)
	switch {
	case c.Status == payment.StatusPaid:
		return due
	case c.OverdueLabel != "":
		return due + " (" + c.OverdueLabel + ")"
	case c.DaysUntilDue == 0:
		return due + " (today)"
	case c.DaysUntilDue == 1:
		return due + " (tomorrow)"
	default:
		return fmt.Sprintf("%s (in %d days)", due, c.DaysUntilDue)
	}
}

func (p *portal) pay(ctx context.Context, planID, phone string) error {
	usr, err := p.currentUser()
	if err != nil {
		return err
	}
	pmt, co, err := p.paySvc.Checkout(ctx, usr, payment.NewCheckout{PlanID: planID, PhoneNumber: phone})
	if err != nil {
		if msgs := p.validationMessages(err); msgs != "" {
			return errors.New(msgs)
		}
		return err
	}
	p.printf("Payment %s started: confirm the M-PESA prompt on your phone.\n", pmt.ID)
	if co.URL != "" {
		p.printf("Checkout: %s\n", co.URL)
	}
	return nil
}

func (p *portal) status(ctx context.Context, paymentID string) error {
	usr, err := p.currentUser()
	if err != nil {
		return err
	}
	pmt, err := p.paySvc.RefreshStatus(ctx, usr, paymentID)
	if err != nil {
		return err
	}
	p.printf("Payment %s: %s (%s)\n", pmt.ID, pmt.State, payment.FormatAmount(pmt.Amount, pmt.Currency))
	return nil
}

// validationMessages flattens the field messages of err, sorted by field.
func (p *portal) validationMessages(err error) string {
	msgs := core.ValidationMessages(err, p.translator)
	fields := make([]string, 0, len(msgs))
	for field := range msgs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, msgs[field])
	}
	return strings.Join(parts, "; ")
}
