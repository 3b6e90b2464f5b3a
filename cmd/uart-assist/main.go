// cmd/uart-assist/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"uart-assist/internal/config"
	"uart-assist/internal/database"
	"uart-assist/internal/discovery"
	serialscan "uart-assist/internal/discovery/serial"
	"uart-assist/internal/mode"
	"uart-assist/internal/observe"
	"uart-assist/internal/protocol"
	"uart-assist/internal/repository"
	"uart-assist/internal/routes"
	"uart-assist/internal/script"
	"uart-assist/internal/service"
	"uart-assist/internal/utils"
)

const program = "uart-assist"

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	stdout   io.Writer
	server   *http.Server
	database *database.DB

	tracker *observe.Tracker
	bus     *observe.EventBus
	lines   *observe.LineSink
	scanner discovery.PortScanner

	runs        repository.RunRepository
	testService *service.TestService
}

// @title uart-assist monitor API
// @version 1.0.0
// @description Read-only view of a running UART diagnostic session and its run history

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, config.Usage(program))
		return 1
	}

	switch cfg.Action {
	case config.ActionHelp:
		fmt.Fprint(stdout, config.Usage(program))
		return 0
	case config.ActionVersion:
		fmt.Fprintf(stdout, "%s version %s\n", program, config.Version)
		return 0
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer utils.CloseLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Action == config.ActionListPorts {
		return listPorts(ctx, serialscan.NewScanner(logger), stdout, stderr)
	}

	app, err := NewApplication(ctx, cfg, logger, stdout)
	if err != nil {
		logger.Error("Failed to initialize application", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer app.shutdown()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewApplication wires every component for one run
func NewApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) (*Application, error) {
	serviceLogger := utils.NewServiceLogger(logger, program)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
		stdout: stdout,
	}

	if err := app.initializeHistory(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize run history: %w", err)
	}

	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeHistory connects the run history database when configured and
// falls back to an in-process store otherwise
func (app *Application) initializeHistory(ctx context.Context) error {
	if !app.config.HistoryEnabled() {
		app.runs = repository.NewMemoryRepository()
		return nil
	}

	db, err := database.Connect(ctx, &app.config.Database, app.logger)
	if err != nil {
		return err
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	if version, dirty, err := migrator.Version(); err == nil {
		app.logger.Debug("Database schema", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}

	app.runs = repository.NewRunRepository(db, app.logger)
	app.logger.Info("Run history initialized successfully")
	return nil
}

// initializeServices creates the observation sinks and the test service
func (app *Application) initializeServices() {
	app.tracker = observe.NewTracker()
	app.bus = observe.NewEventBus(app.logger)
	app.lines = observe.NewLineSink(app.stdout, app.config.Output.Timestamp)
	app.scanner = serialscan.NewScanner(app.logger)

	app.testService = service.NewTestService(
		protocol.NewSerialFactory(nil, app.logger),
		mode.NewDefaultRegistry(app.logger),
		script.NewLoader(app.logger),
		app.runs,
		app.tracker,
		observe.Multi(app.lines, app.bus),
		app.logger,
	)
}

// initializeServer sets up the optional monitor server
func (app *Application) initializeServer() {
	if !app.config.MonitorEnabled() {
		return
	}

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.tracker,
		app.bus,
		app.runs,
		app.scanner,
	)

	app.server = &http.Server{
		Addr:         app.config.Monitor.Listen,
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Monitor.ReadTimeout,
		WriteTimeout: app.config.Monitor.WriteTimeout,
		IdleTimeout:  app.config.Monitor.IdleTimeout,
	}

	app.logger.Info("Monitor server initialized", zap.String("address", app.server.Addr))
}

// Run executes the configured test until it finishes or ctx is cancelled
func (app *Application) Run(ctx context.Context) error {
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	go app.bus.Start(busCtx)

	if app.server != nil {
		go func() {
			app.logger.Info("Starting monitor server", zap.String("address", app.server.Addr))
			if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error("Monitor server failed", zap.Error(err))
			}
		}()
	}

	req, err := service.RequestFromConfig(app.config)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go app.announceInterrupt(ctx, done)

	_, err = app.testService.Run(ctx, req)
	return err
}

// announceInterrupt reports a signal as soon as it arrives; the run itself
// stops at its next loop boundary
func (app *Application) announceInterrupt(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		app.lines.Observe(observe.NewEvent(observe.EventInfo, "Received SIGINT, exiting...", app.tracker.Snapshot().Stats))
	case <-done:
	}
}

// shutdown releases the monitor server and the database
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, program)
	serviceLogger.LogServiceStop("run finished")

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("Monitor server shutdown error", zap.Error(err))
		}
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		}
	}
}

func listPorts(ctx context.Context, scanner discovery.PortScanner, stdout, stderr io.Writer) int {
	ports, err := scanner.Scan(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Fprintln(stdout, "No serial ports found")
		return 0
	}
	for _, port := range ports {
		fmt.Fprintln(stdout, port.Label())
	}
	return 0
}
