package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/pressly/goose/v3"
	"golang.org/x/term"

	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = goose.RunContext  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db            *sql.DB
	migrationsDir string
	identitySvc   *identity.Service
	usrSvc        *user.Service
	paySvc        *payment.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL -name NAME -role student|teacher|parent [-phone PHONE] [-grade GRADE] - create an account")
	fmt.Println("  resetpassword -email EMAIL - reset an identity's password")
	fmt.Println("  addplan -name NAME -amount AMOUNT -currency KES -term TERM -due YYYY-MM-DD [-description DESC] - create a payment plan")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
}

// promptPassword reads a password without echoing it. An empty password is reported as errHelp.
func promptPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", "", "One of student, teacher or parent.")
	addUserPhone := addUserCmd.String("phone", "", "The user's phone number.")
	addUserGrade := addUserCmd.String("grade", "", "The grade level of a student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The identity's email. The password will be prompted next.")

	addPlanCmd := flag.NewFlagSet("addplan", flag.ExitOnError)
	addPlanName := addPlanCmd.String("name", "", "The plan name.")
	addPlanAmount := addPlanCmd.Float64("amount", 0, "The amount due.")
	addPlanCurrency := addPlanCmd.String("currency", "KES", "The ISO 4217 currency code.")
	addPlanTerm := addPlanCmd.String("term", "", "The school term, e.g. \"Term 1 2024\".")
	addPlanDue := addPlanCmd.String("due", "", "The due date, as YYYY-MM-DD.")
	addPlanDesc := addPlanCmd.String("description", "", "An optional description.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(ctx, user.NewAccount{
			Name:            *addUserName,
			Email:           *addUserEmail,
			Phone:           *addUserPhone,
			Password:        pwd,
			PasswordConfirm: pwd,
			Role:            *addUserRole,
			GradeLevel:      *addUserGrade,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "addplan":
		if err := addPlanCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addPlanName == "" || *addPlanDue == "" {
			addPlanCmd.Usage()
			return errHelp
		}
		return cli.addPlan(ctx, payment.NewPlan{
			Name:        *addPlanName,
			Amount:      *addPlanAmount,
			Currency:    *addPlanCurrency,
			Term:        *addPlanTerm,
			DueDate:     *addPlanDue,
			Description: *addPlanDesc,
		})

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
