package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
	emailsvc "github.com/cbc-edu/eduplatform/services/email"
	logsvc "github.com/cbc-edu/eduplatform/services/logger"
	"github.com/cbc-edu/eduplatform/storage/database"
	sqlxrepos "github.com/cbc-edu/eduplatform/storage/database/sqlx"
	inmemdb "github.com/cbc-edu/eduplatform/storage/database/inmem"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(ctx, db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}
	migrationsDir, err := database.InitMigrations()
	if err != nil {
		logger.Fatal(fmt.Sprintf("preparing migrations: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// sessions are never opened from the CLI
	mem := inmemdb.Open()
	mailSvc := emailsvc.NewConsoleService(conf)

	// start CLI
	cli := commandLine{
		db:            db.DB,
		migrationsDir: migrationsDir,
		identitySvc: identity.NewService(
			sqlxrepos.NewIdentityRepository(db), inmemdb.NewSessionStore(mem), inmemdb.NewEventBus(), logger, conf),
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, conf),
		paySvc: payment.NewService(sqlxrepos.NewPaymentRepository(db), nil, mailSvc, validate, logger, conf),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			printError(err, translator)
		}
		os.Exit(1)
	}
}

func printError(err error, translator ut.Translator) {
	msgs := core.ValidationMessages(err, translator)
	if msgs == nil {
		fmt.Printf("\nerror: %s\n", err)
		return
	}
	fmt.Println("\ninvalid input:")
	for _, line := range fieldErrors(msgs) {
		fmt.Println(line)
	}
}

// fieldErrors lists validation messages, sorted by field.
func fieldErrors(msgs map[string]string) []string {
	lines := make([]string, 0, len(msgs))
	for fld, msg := range msgs {
		lines = append(lines, fmt.Sprintf("  %s: %s", fld, msg))
	}
	sort.Strings(lines)
	return lines
}
