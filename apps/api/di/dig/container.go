package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/quizdesk/apps/api/echo"
	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/core/settings"
	"github.com/trezcool/quizdesk/services/email"
	"github.com/trezcool/quizdesk/services/events"
	"github.com/trezcool/quizdesk/services/logger"
	"github.com/trezcool/quizdesk/storage/database"
	sqlxrepos "github.com/trezcool/quizdesk/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	CredentialSvc *credential.Service
	QuizSvc       *quiz.Service
	SettingsSvc   *settings.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db, conf); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newEventPublisher connects to the broker, falling back to logging the events
// when no broker is configured or reachable.
func newEventPublisher(conf *core.Config, logger core.Logger) core.EventPublisher {
	if conf.Broker.URL == "" {
		return eventsvc.NewLogPublisher(logger)
	}
	pub, err := eventsvc.NewRabbitPublisher(conf, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to broker, events will only be logged: %v", err), err)
		return eventsvc.NewLogPublisher(logger)
	}
	return pub
}

func newQuizFinder(svc *quiz.Service) credential.QuizFinder {
	return svc
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		CredentialSvc: p.CredentialSvc,
		QuizSvc:       p.QuizSvc,
		SettingsSvc:   p.SettingsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newEventPublisher))
	must(c.Provide(sqlxrepos.NewCredentialRepository))
	must(c.Provide(sqlxrepos.NewQuizRepository))
	must(c.Provide(sqlxrepos.NewSettingsRepository))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(quiz.NewService))
	must(c.Provide(newQuizFinder))
	must(c.Provide(credential.NewService))
	must(c.Provide(settings.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
