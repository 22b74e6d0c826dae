package main

import (
	"log"
	"os"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/escalation"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/user"
	emailsvc "github.com/campusmentor/campusmentor/services/email"
	logsvc "github.com/campusmentor/campusmentor/services/logger"
	"github.com/campusmentor/campusmentor/storage/database"
	sqlxrepos "github.com/campusmentor/campusmentor/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
	if err = database.Ping(db); err != nil {
		logger.Fatal(err.Error(), err)
	}

	clock := core.SystemClock{}
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf.WorkDir, logger)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), validate, clock)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), clock, logger).
		WithMailer(emailsvc.New(conf, logger), usrSvc, conf.AppName)
	// escalation never credits points, so the ledger needs no certificate issuer here
	ldgr := ledger.NewService(db, sqlxrepos.NewLedgerRepository(db), nil, clock, logger, nil, conf.CertificateThreshold)
	doubtSvc := doubt.NewService(
		db, sqlxrepos.NewDoubtRepository(db), usrSvc, ldgr, notifSvc, validate, clock, logger, nil,
		doubt.Options{Window: conf.Escalation.Window},
	)

	// start CLI
	cli := commandLine{
		db:        db,
		usrSvc:    usrSvc,
		escalator: escalation.NewScheduler(doubtSvc, clock, logger, nil, escalation.Options{}),
	}
	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error("command failed: "+err.Error(), err)
	}
	_ = db.Close()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
