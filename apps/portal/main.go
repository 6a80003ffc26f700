package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/session"
	"github.com/cbc-edu/eduplatform/core/user"
	emailsvc "github.com/cbc-edu/eduplatform/services/email"
	"github.com/cbc-edu/eduplatform/services/intasend"
	logsvc "github.com/cbc-edu/eduplatform/services/logger"
	"github.com/cbc-edu/eduplatform/storage/database"
	sqlxrepos "github.com/cbc-edu/eduplatform/storage/database/sqlx"
	inmemdb "github.com/cbc-edu/eduplatform/storage/database/inmem"
	redisstore "github.com/cbc-edu/eduplatform/storage/redis"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "PORTAL : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()
	if err = database.Ping(ctx, db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// share sessions with the API when redis is configured
	var (
		sessions identity.SessionStore
		events   identity.EventBus
	)
	if conf.Redis.Address != "" {
		rdb, err := redisstore.Open(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = rdb.Close() }()
		sessions = redisstore.NewSessionStore(rdb)
		events = redisstore.NewEventBus(rdb, logger)
	} else {
		mem := inmemdb.Open()
		sessions = inmemdb.NewSessionStore(mem)
		events = inmemdb.NewEventBus()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	gateway, err := intasend.NewClientFromConfig(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up payment gateway: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	identitySvc := identity.NewService(sqlxrepos.NewIdentityRepository(db), sessions, events, logger, conf)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, conf)
	paySvc := payment.NewService(sqlxrepos.NewPaymentRepository(db), gateway, mailSvc, validate, logger, conf)

	// set up the session of this terminal
	manager, err := session.NewManager(identity.NewClient(identitySvc), usrSvc, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session manager: %v", err), err)
	}
	if err = manager.Start(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("starting session manager: %v", err), err)
	}
	defer manager.Close()

	if err = newPortal(os.Stdin, os.Stdout, manager, paySvc, translator).run(ctx); err != nil {
		logger.Error(fmt.Sprintf("portal: %v", err), err)
	}
	if manager.User() != nil {
		if err = manager.Logout(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("signing out: %v", err), err)
		}
	}
}
