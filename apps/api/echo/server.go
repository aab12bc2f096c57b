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
	"github.com/pkg/errors"

	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
)

type (
	// RoomQuerier reads the presence registry through the event loop.
	RoomQuerier interface {
		Rooms() ([]collab.RoomSummary, error)
		Roster(roomID string) ([]collab.Connection, error)
	}

	// SocketServer is the realtime endpoint mounted under /socket.io.
	SocketServer interface {
		http.Handler
		ConnectionCount() int
		Close() error
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Rooms      RoomQuerier
		Socket     SocketServer
		Metrics    http.Handler
		Validate   *validator.Validate
		Translator ut.Translator
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
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		// the socket.io client always requests `/socket.io/`
		Skipper: func(ctx echo.Context) bool { return isSocketPath(ctx.Request().URL.Path) },
	}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	registerRealtimeAPI(s.app, s.deps.Socket, s.deps.Rooms, s.deps.Metrics)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf.SecretKey))

	registerRoomAPI(v1, jwt, s.deps.Rooms, s.deps.Validate)
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

// Errors reports the server failing to start or serve.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives OS interrupts and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown drops the realtime sessions, which also releases pending long-polls,
// then stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.deps.Socket.Close(); err != nil {
		return errors.Wrap(err, "closing socket server")
	}
	return errors.Wrap(s.app.Shutdown(ctx), "shutting down http server")
}

func (s *Server) Close() error {
	err := s.app.Close()
	if sErr := s.deps.Socket.Close(); err == nil {
		err = sErr
	}
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to LMS Collab!")
}
