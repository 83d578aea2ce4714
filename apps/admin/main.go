package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/quizdesk/core"
	appfs "github.com/trezcool/quizdesk/fs"
	"github.com/trezcool/quizdesk/services/email"
	"github.com/trezcool/quizdesk/services/events"
	"github.com/trezcool/quizdesk/services/logger"
	"github.com/trezcool/quizdesk/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	core.ParseEmailTemplates(conf, appfs.FS, appfs.EmailTemplatesDir, logger)
	mailSvc := emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf)
	if conf.SendgridAPIKey != "" {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var publisher core.EventPublisher = eventsvc.NewLogPublisher(logger)
	if conf.Broker.URL != "" {
		if pub, err := eventsvc.NewRabbitPublisher(conf, logger); err == nil {
			publisher = pub
		} else {
			logger.Error(fmt.Sprintf("connecting to broker, events will only be logged: %v", err), err)
		}
	}

	// start CLI
	cli := newCommandLine(conf, db, logger, mailSvc, publisher)
	err = cli.run(os.Args)

	publisher.Close()
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
