package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wes-dispatch/wes-dispatch/cmd/wes_dispatch/server"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/dispatcher"
	"github.com/wes-dispatch/wes-dispatch/internal/events"
	"github.com/wes-dispatch/wes-dispatch/internal/logging"
	"github.com/wes-dispatch/wes-dispatch/internal/runtimes"
	"github.com/wes-dispatch/wes-dispatch/internal/storage"
	"github.com/wes-dispatch/wes-dispatch/internal/telemetry"
	"github.com/wes-dispatch/wes-dispatch/internal/validation"
)

var (
	// Version can be set during the compilation
	Version string = "0.0.1"
	// Build is set during the compilation
	Build string
	// BuildDate is set during the compilation
	BuildDate string
)

func main() {
	logger, logShutdown, err := logging.NewLogger()
	if err != nil {
		// we do this as no point trying to continue
		startUpFailed(nil, err, "Failed to create service logger", logging.FallbackLogger())
	}

	serviceConfig, err := config.LoadConfig(logger, Version, Build, BuildDate)
	if err != nil {
		startUpFailed(nil, err, "Failed to create service config", logger)
	}

	providers, err := telemetry.Setup(context.Background(), logger, serviceConfig.Tracing, Version)
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to set up tracing", logger)
	}
	logger = logging.WithOTel(logger, providers.LoggerProvider)

	validate, err := validation.NewValidator()
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create validator", logger)
	}

	store, err := storage.NewStorage(serviceConfig.Database, logger)
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create storage", logger)
	}

	runtime, err := runtimes.NewRuntime(logger, serviceConfig)
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create runtime", logger)
	}
	logger.Info("Runtime created", "runtime", runtime.Name())

	sender, err := events.NewEventSender(logger, serviceConfig.Events)
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create event sender", logger)
	}

	runDispatcher, err := dispatcher.New(logger, store, runtime, sender, serviceConfig.GetDispatcherConfig())
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create dispatcher", logger)
	}

	srv, err := server.NewServer(logger, serviceConfig, store, validate, runDispatcher)
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create server", logger)
	}

	logger.Info("Server starting",
		"server_port", srv.GetPort(),
		"version", serviceConfig.Service.Version,
		"build", serviceConfig.Service.Build,
		"build_date", serviceConfig.Service.BuildDate,
		"local", serviceConfig.Service.LocalMode,
		"events", sender.Name(),
		"tracing", providers.TracerProvider != nil,
	)

	go func() {
		if err := srv.Start(); err != nil {
			if errors.Is(err, &server.ServerClosedError{}) {
				logger.Info("Server closed gracefully")
				return
			}
			startUpFailed(serviceConfig, err, "Server failed to start", logger)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	waitForShutdown := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), waitForShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err.Error(), "timeout", waitForShutdown)
	} else {
		logger.Info("Server shutdown gracefully")
	}

	// runs in flight keep the storage and the event sender busy, so they are closed last
	if err := runDispatcher.Wait(ctx); err != nil {
		logger.Warn("Runs still in flight at shutdown", "error", err.Error())
	}
	if err := sender.Close(); err != nil {
		logger.Error("Failed to close event sender", "error", err.Error())
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage", "error", err.Error())
	}
	if err := providers.Shutdown(ctx); err != nil {
		logger.Error("Failed to shut down telemetry", "error", err.Error())
	}
	_ = logShutdown() // ignore the error
}

func startUpFailed(conf *config.Config, err error, msg string, logger *slog.Logger) {
	termErr := server.SetTerminationMessage(server.GetTerminationFile(conf, logger), fmt.Sprintf("%s: %s", msg, err.Error()), logger)
	if termErr != nil {
		logger.Error("Failed to set termination message", "message", msg, "error", termErr.Error())
		log.Println(termErr.Error())
	}
	log.Fatal(err)
}
