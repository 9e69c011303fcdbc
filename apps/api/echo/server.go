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

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/attendance"
	"github.com/trezcool/mwalimu/core/blog"
	"github.com/trezcool/mwalimu/core/class"
	"github.com/trezcool/mwalimu/core/document"
	"github.com/trezcool/mwalimu/core/message"
	"github.com/trezcool/mwalimu/core/notification"
	"github.com/trezcool/mwalimu/core/schedule"
	"github.com/trezcool/mwalimu/core/user"
)

type (
	// ServerDeps holds everything the API needs to serve requests.
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Media      core.MediaStorage
		Hub        RealtimeHub

		UserSvc         user.Service
		ClassSvc        class.Service
		AssignmentSvc   assignment.Service
		ScheduleSvc     schedule.Service
		AttendanceSvc   attendance.Service
		BlogSvc         blog.Service
		MessageSvc      message.Service
		NotificationSvc notification.Service
		DocumentSvc     document.Service
	}

	// RealtimeHub attaches websocket clients to users.
	RealtimeHub interface {
		Serve(w http.ResponseWriter, r *http.Request, userID string) error
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.Static(conf.Media.URLPrefix, conf.Media.Root)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(api, jwt, s.deps)
	registerClassAPI(api, jwt, s.deps)
	registerAssignmentAPI(api, jwt, s.deps)
	registerScheduleAPI(api, jwt, s.deps)
	registerAttendanceAPI(api, jwt, s.deps)
	registerBlogAPI(api, jwt, s.deps)
	registerMessageAPI(api, jwt, s.deps)
	registerNotificationAPI(api, jwt, s.deps)
	registerDocumentAPI(api, jwt, s.deps)

	// browsers cannot set headers on websocket upgrades: the token comes in the query string
	wsJWT := middleware.JWTWithConfig(newJWTConfig(conf, "query:token"))
	registerRealtimeAPI(api, wsJWT, s.deps)
}

// Start runs the HTTP server; failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports the error that stopped the server.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal fires on SIGINT|SIGTERM, or when a request hits a shutdown error.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
