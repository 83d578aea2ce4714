package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/core/settings"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		CredentialSvc *credential.Service
		QuizSvc       *quiz.Service
		SettingsSvc   *settings.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		limiter  *ipRateLimiter
		errors   chan error
		shutdown chan os.Signal
		done     chan struct{}
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf),
		limiter:  newIPRateLimiter(deps.Conf.Server.LoginRateLimit, deps.Conf.Server.LoginRateBurst),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	rateLimit := s.limiter.middleware()

	registerCredentialAPI(v1, jwt, rateLimit, s.auth, s.deps.CredentialSvc, s.deps.Validate)
	registerQuizAPI(v1, jwt, s.deps.QuizSvc, s.deps.Validate)
	registerAdminAPI(v1, jwt, rateLimit, s.auth, s.deps.SettingsSvc, s.deps.Validate)
}

// Start listens on the configured address. Listener errors are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	go s.limiter.sweep(s.done)

	addr := s.deps.Conf.Server.Host + ":" + s.deps.Conf.Server.Port
	if err := s.app.Start(addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the owner of the Server to shut it down.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stopSweeper()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.stopSweeper()
	return s.app.Close()
}

func (s *Server) stopSweeper() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
