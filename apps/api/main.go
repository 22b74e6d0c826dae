package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/campusmentor/campusmentor/apps/api/echo"
	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/certificate"
	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/escalation"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/stats"
	"github.com/campusmentor/campusmentor/core/submission"
	"github.com/campusmentor/campusmentor/core/user"
	emailsvc "github.com/campusmentor/campusmentor/services/email"
	logsvc "github.com/campusmentor/campusmentor/services/logger"
	metricsvc "github.com/campusmentor/campusmentor/services/metrics"
	"github.com/campusmentor/campusmentor/storage/artifact"
	"github.com/campusmentor/campusmentor/storage/database"
	sqlxrepos "github.com/campusmentor/campusmentor/storage/database/sqlx"
)

const dbStatsInterval = 15 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	store, err := artifact.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	var uploadsDir string
	if local, ok := store.(*artifact.LocalStore); ok {
		uploadsDir = local.Dir()
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	clock := core.SystemClock{}
	metrics := metricsvc.NewPrometheus()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf.WorkDir, logger)

	// set up services
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), validate, clock)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), clock, logger).
		WithMailer(emailsvc.New(conf, logger), usrSvc, conf.AppName)
	certSvc := certificate.NewService(
		sqlxrepos.NewCertificateRepository(db), usrSvc, certificate.PDFRenderer{}, store, notifSvc,
		clock, logger, metrics, certificate.Options{AppName: conf.AppName, Threshold: conf.CertificateThreshold},
	)
	ldgr := ledger.NewService(db, sqlxrepos.NewLedgerRepository(db), certSvc, clock, logger, metrics, conf.CertificateThreshold)
	doubtSvc := doubt.NewService(
		db, sqlxrepos.NewDoubtRepository(db), usrSvc, ldgr, notifSvc, validate, clock, logger, metrics,
		doubt.Options{Window: conf.Escalation.Window},
	)
	subSvc := submission.NewService(db, sqlxrepos.NewSubmissionRepository(db), usrSvc, ldgr, notifSvc, validate, clock)
	scheduler := escalation.NewScheduler(doubtSvc, clock, logger, metrics, escalation.Options{
		Interval:   conf.Escalation.Interval,
		RunOnStart: true,
	})

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

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Address:    conf.Server.Address,
		Logger:     logger,
		Clock:      clock,
		Validate:   validate,
		Translator: translator,
		Metrics:    metrics,
		DB:         db,
		Uploads:    store,
		UploadsDir: uploadsDir,
		SignalShutdown: func() {
			select {
			case shutdown <- syscall.SIGTERM:
			default:
			}
		},
		UserSvc:         usrSvc,
		DoubtSvc:        doubtSvc,
		SubmissionSvc:   subSvc,
		LedgerSvc:       ldgr,
		CertificateSvc:  certSvc,
		NotificationSvc: notifSvc,
		StatsSvc:        stats.NewService(sqlxrepos.NewStatsRepository(db)),
	})

	if err = scheduler.Start(); err != nil {
		logger.Fatal(fmt.Sprintf("starting escalation scheduler: %v", err), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error {
		ticker := time.NewTicker(dbStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				metrics.RecordDBPoolStats(db.Stats())
			}
		}
	})
	g.Go(func() error {
		select {
		case sig := <-shutdown:
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		case <-ctx.Done():
		}

		scheduler.Stop()

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()
		if err := server.Stop(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
		cancel()
		return nil
	})

	if err = g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("server error: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(db); err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
