package dig_container

import (
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/sameeradaveen/lms-new-main/apps/api/echo"
	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
	logsvc "github.com/sameeradaveen/lms-new-main/services/logger"
	metricsvc "github.com/sameeradaveen/lms-new-main/services/metrics"
	"github.com/sameeradaveen/lms-new-main/services/socketio"
	"github.com/sameeradaveen/lms-new-main/storage/presence/inmem"
)

type RTLoggerParam struct {
	dig.In
	Logger core.Logger `name:"rtLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRTLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "RT : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRegistry() (collab.Registry, error) {
	db, err := inmem.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening presence registry")
	}
	return inmem.NewRegistry(db), nil
}

func newSocketServer(conf *core.Config, loggerParam RTLoggerParam) *socketio.Server {
	return socketio.NewServer(conf, loggerParam.Logger)
}

func newCollabService(
	registry collab.Registry,
	socket *socketio.Server,
	validate *validator.Validate,
	translator ut.Translator,
	loggerParam RTLoggerParam,
	observer *metricsvc.PrometheusObserver,
) *collab.Service {
	return collab.NewService(registry, socket, validate, translator, loggerParam.Logger, observer)
}

// newHub also registers the hub as the consumer of the socket traffic.
func newHub(conf *core.Config, svc *collab.Service, socket *socketio.Server, loggerParam RTLoggerParam) *collab.Hub {
	hub := collab.NewHub(svc, loggerParam.Logger, conf.Realtime.ActionQueueSize)
	socket.SetHandler(hub)
	return hub
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	hub *collab.Hub,
	socket *socketio.Server,
	observer *metricsvc.PrometheusObserver,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Rooms:      hub,
		Socket:     socket,
		Metrics:    observer.Handler(),
		Validate:   validate,
		Translator: translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newRTLogger, dig.Name("rtLogger")))
	must(c.Provide(newRegistry))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newSocketServer))
	must(c.Provide(metricsvc.NewPrometheusObserver))
	must(c.Provide(newCollabService))
	must(c.Provide(newHub))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
