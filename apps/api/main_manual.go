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

	echoapi "github.com/sameeradaveen/lms-new-main/apps/api/echo"
	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
	logsvc "github.com/sameeradaveen/lms-new-main/services/logger"
	metricsvc "github.com/sameeradaveen/lms-new-main/services/metrics"
	"github.com/sameeradaveen/lms-new-main/services/socketio"
	"github.com/sameeradaveen/lms-new-main/storage/presence/inmem"
)

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	rtLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "RT : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	rtLogger.Enable(!conf.Debug)

	// set up presence registry
	db, err := inmem.Open()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up presence registry: %v", err), err)
	}
	registry := inmem.NewRegistry(db)

	validate := validator.New()
	translator := core.NewTranslator()

	// set up services
	socket := socketio.NewServer(conf, rtLogger)
	observer := metricsvc.NewPrometheusObserver()
	collabSvc := collab.NewService(registry, socket, validate, translator, rtLogger, observer)
	hub := collab.NewHub(collabSvc, rtLogger, conf.Realtime.ActionQueueSize)
	socket.SetHandler(hub)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.InitValidators(validate, translator)
	collab.InitValidators(validate, translator)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Rooms:      hub,
			Socket:     socket,
			Metrics:    observer.Handler(),
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
