package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/cbc-edu/eduplatform/apps/api/echo"
	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
	emailsvc "github.com/cbc-edu/eduplatform/services/email"
	"github.com/cbc-edu/eduplatform/services/intasend"
	logsvc "github.com/cbc-edu/eduplatform/services/logger"
	"github.com/cbc-edu/eduplatform/services/telemetry"
	"github.com/cbc-edu/eduplatform/storage/database"
	sqlxrepos "github.com/cbc-edu/eduplatform/storage/database/sqlx"
	inmemdb "github.com/cbc-edu/eduplatform/storage/database/inmem"
	redisstore "github.com/cbc-edu/eduplatform/storage/redis"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up tracing
	shutdownTracing := telemetry.Setup(conf.AppName, conf.Build, logger)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("stopping tracing: %v", err), err)
		}
	}()

	// set up DB
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	if err = database.Migrate(ctx, db, "up"); err != nil {
		dbLogger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	// set up sessions: redis when configured, in memory otherwise
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

	identitySvc := identity.NewService(sqlxrepos.NewIdentityRepository(db), sessions, events, logger, conf)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, conf)
	paySvc := payment.NewService(sqlxrepos.NewPaymentRepository(db), gateway, mailSvc, validate, logger, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			IdentitySvc: identitySvc,
			UserSvc:     usrSvc,
			PaymentSvc:  paySvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
