package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"parking-allocator/internal/config"
	"parking-allocator/internal/logging"
	"parking-allocator/internal/parking"
	"parking-allocator/internal/server"
)

var (
	mode = flag.String("mode", "cli", "Mode to run: cli, server, or both")
	port = flag.String("port", "", "Port for HTTP server (overrides PARKING_SERVER_PORT)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "parking-allocator: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryProvider, err := parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		UseEnvResource: true,
	})
	if err != nil {
		return errors.Wrap(err, "initializing telemetry")
	}
	defer shutdownTelemetry(telemetryProvider)

	logging.Init(cfg.Telemetry.ServiceName, cfg.Server.Environment)

	policy, err := cfg.ParkingPolicy()
	if err != nil {
		return err
	}
	layout, err := cfg.ParkingLayout()
	if err != nil {
		return err
	}
	lot, err := parking.NewParkingLot(policy, layout)
	if err != nil {
		return errors.Wrap(err, "building parking lot")
	}
	ipl, err := parking.NewInstrumentedParkingLot(lot, telemetryProvider)
	if err != nil {
		return errors.Wrap(err, "instrumenting parking lot")
	}

	logging.Info(ctx, "parking lot ready", "mode", *mode, "capacity", lot.Capacity())

	switch *mode {
	case "cli":
		runCLI(ctx, ipl, telemetryProvider)
		return nil
	case "server":
		return runServer(ctx, ipl, cfg)
	case "both":
		return runBoth(ctx, stop, ipl, telemetryProvider, cfg)
	default:
		return errors.Newf("invalid mode %q: must be cli, server, or both", *mode)
	}
}

func runCLI(ctx context.Context, ipl *parking.InstrumentedParkingLot, telemetryProvider *parking.TelemetryProvider) {
	shell := parking.NewShell(ipl, telemetryProvider, os.Stdin, os.Stdout)

	// Scan blocks on stdin, so a signal must not wait for the next line.
	done := make(chan struct{})
	go func() {
		shell.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logging.Info(context.Background(), "received shutdown signal")
	}
}

func newServer(ipl *parking.InstrumentedParkingLot, cfg *config.Config) *server.Server {
	return server.NewServer(ipl, server.Options{
		Port:        cfg.Server.Port,
		ServiceName: cfg.Telemetry.ServiceName,
	})
}

func runServer(ctx context.Context, ipl *parking.InstrumentedParkingLot, cfg *config.Config) error {
	srv := newServer(ipl, cfg)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	select {
	case err := <-serverDone:
		return err
	case <-ctx.Done():
		logging.Info(context.Background(), "received shutdown signal")
	}
	return shutdownServer(srv, serverDone)
}

func runBoth(ctx context.Context, stop context.CancelFunc, ipl *parking.InstrumentedParkingLot, telemetryProvider *parking.TelemetryProvider, cfg *config.Config) error {
	srv := newServer(ipl, cfg)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	cliDone := make(chan struct{})
	go func() {
		runCLI(ctx, ipl, telemetryProvider)
		close(cliDone)
	}()

	select {
	case err := <-serverDone:
		stop()
		return err
	case <-cliDone:
		logging.Info(context.Background(), "CLI exited")
	case <-ctx.Done():
		logging.Info(context.Background(), "received shutdown signal")
	}
	stop()
	return shutdownServer(srv, serverDone)
}

func shutdownServer(srv *server.Server, serverDone <-chan error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	return <-serverDone
}

func shutdownTelemetry(telemetryProvider *parking.TelemetryProvider) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "shutting down telemetry", "error", err)
	}
}
