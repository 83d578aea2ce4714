package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/core/settings"
	"github.com/trezcool/quizdesk/storage/database"
	sqlxrepos "github.com/trezcool/quizdesk/storage/database/sqlx"
)

var (
	readPasswordFunc = term.ReadPassword      // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sqlx.DB
	conf        *core.Config
	validate    *validator.Validate
	credSvc     *credential.Service
	settingsSvc *settings.Service
}

func newCommandLine(
	conf *core.Config,
	db *sqlx.DB,
	logger core.Logger,
	mailSvc core.EmailService,
	events core.EventPublisher,
) *commandLine {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	credential.InitValidators(validate, translator)

	quizSvc := quiz.NewService(sqlxrepos.NewQuizRepository(db))
	return &commandLine{
		db:          db,
		conf:        conf,
		validate:    validate,
		credSvc:     credential.NewService(sqlxrepos.NewCredentialRepository(db), quizSvc, mailSvc, events, logger),
		settingsSvc: settings.NewService(sqlxrepos.NewSettingsRepository(db)),
	}
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Println("  addcredential -quiz QUIZ_ID -username USERNAME [-name NAME] [-email EMAIL] [-team] - register a participant")
	fmt.Println("  resetpassword -username USERNAME - reset a participant's password and lift their lock")
	fmt.Println("  unlock -username USERNAME - lift the lock of a participant")
	fmt.Println("  setoverride -college COLLEGE - set the override password of a college")
}

// promptPassword reads a password from the terminal, without echoing it.
func promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
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

	addCredentialCmd := flag.NewFlagSet("addcredential", flag.ExitOnError)
	addCredentialQuiz := addCredentialCmd.String("quiz", "", "The ID of the quiz.")
	addCredentialUname := addCredentialCmd.String("username", "", "The participant's username. The password will be prompted next.")
	addCredentialName := addCredentialCmd.String("name", "", "The participant's (or team's) display name.")
	addCredentialEmail := addCredentialCmd.String("email", "", "The email notified when the account gets locked.")
	addCredentialTeam := addCredentialCmd.Bool("team", false, "Register a team instead of a single student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The participant's username. The password will be prompted next.")

	unlockCmd := flag.NewFlagSet("unlock", flag.ExitOnError)
	unlockUname := unlockCmd.String("username", "", "The participant's username.")

	setOverrideCmd := flag.NewFlagSet("setoverride", flag.ExitOnError)
	setOverrideCollege := setOverrideCmd.String("college", "", "The college. The override password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "addcredential":
		if err := addCredentialCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addCredentialQuiz == "" || *addCredentialUname == "" {
			addCredentialCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addCredentialCmd)
		if err != nil {
			return err
		}
		kind := credential.KindIndividual
		if *addCredentialTeam {
			kind = credential.KindTeam
		}
		return cli.addCredential(ctx, credential.NewCredential{
			QuizID:          *addCredentialQuiz,
			Username:        *addCredentialUname,
			DisplayName:     *addCredentialName,
			Email:           *addCredentialEmail,
			Kind:            kind,
			Password:        pwd,
			PasswordConfirm: pwd,
		})
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)
	case "unlock":
		if err := unlockCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *unlockUname == "" {
			unlockCmd.Usage()
			return errHelp
		}
		return cli.unlock(ctx, *unlockUname)
	case "setoverride":
		if err := setOverrideCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setOverrideCollege == "" {
			setOverrideCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(setOverrideCmd)
		if err != nil {
			return err
		}
		return cli.setOverride(ctx, *setOverrideCollege, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}
