// cmd/recorder/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"myo-recorder/internal/config"
	"myo-recorder/internal/discovery"
	serialscan "myo-recorder/internal/discovery/serial"
	"myo-recorder/internal/driver"
	"myo-recorder/internal/driver/simulated"
	"myo-recorder/internal/emitter"
	"myo-recorder/internal/handler"
	"myo-recorder/internal/routes"
	"myo-recorder/internal/service"
	"myo-recorder/internal/utils"
	"myo-recorder/pkg/devicetypes"
	pkgdriver "myo-recorder/pkg/driver"
)

const (
	autoPort        = "auto"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// Application represents the main application
type Application struct {
	config    *config.Config
	logger    *zap.Logger
	outputDir string
	identity  devicetypes.Identity

	registry    *driver.Registry
	scanners    *discovery.ScannerManager
	manager     *service.ConnectionManager
	acquisition *service.AcquisitionService

	eventBus  *handler.EventBus
	wsHandler *handler.WebSocketHandler
	server    *http.Server
	emitter   *emitter.MQTTEmitter
}

// NewApplication wires the acquisition engine for one output directory
func NewApplication(cfg *config.Config, logger *zap.Logger, outputDir string, identity devicetypes.Identity) (*Application, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	app := &Application{
		config:    cfg,
		logger:    logger,
		outputDir: outputDir,
		identity:  identity,
		scanners:  newScannerManager(logger),
	}

	app.initializeDriverRegistry()

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()
	app.initializeEmitter()

	return app, nil
}

func newScannerManager(logger *zap.Logger) *discovery.ScannerManager {
	scanners := discovery.NewScannerManager(logger)
	scanners.RegisterScanner(serialscan.NewScanner(logger))
	return scanners
}

// initializeDriverRegistry sets up the session registry
func (app *Application) initializeDriverRegistry() {
	app.registry = driver.NewRegistry(app.logger)
	driver.RegisterDefaultDrivers(app.registry, app.logger)
}

// initializeServices creates the device session, connection manager and
// acquisition loop
func (app *Application) initializeServices() error {
	port, err := app.resolvePort()
	if err != nil {
		return err
	}

	deviceID := app.identity.String()
	if deviceID == "" {
		deviceID = app.config.Device.Kind
	}

	session, err := app.registry.CreateSession(&pkgdriver.SessionConfig{
		Kind:        app.config.Device.Kind,
		DeviceID:    deviceID,
		Port:        port,
		BaudRate:    app.config.Device.BaudRate,
		ReadTimeout: app.config.Device.ReadTimeout,
		Options: map[string]interface{}{
			simulated.OptionEMGRate:   app.config.Device.Simulated.EMGRate,
			simulated.OptionIMURate:   app.config.Device.Simulated.IMURate,
			simulated.OptionDropAfter: app.config.Device.Simulated.DropAfter,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create device session: %w", err)
	}

	acq := app.config.Acquisition
	app.manager = service.NewConnectionManager(
		session,
		deviceID,
		app.config.Device.ConnectTimeout,
		service.ReconnectConfig{
			MaxAttempts: acq.MaxReconnectAttempts,
			Delay:       acq.ReconnectDelay,
			Settle:      acq.ReconnectSettle,
		},
		app.logger,
	)

	app.eventBus = handler.NewEventBus(app.logger)
	app.acquisition = service.NewAcquisitionService(
		app.manager,
		service.AcquisitionOptions{
			OutputDir:    app.outputDir,
			FilePrefix:   app.config.Recording.FilePrefix,
			Identity:     app.identity,
			SyncInterval: app.config.Recording.SyncInterval,
			Acquisition:  acq,
		},
		app.eventBus,
		app.logger,
	)
	return nil
}

// resolvePort picks the dongle port. A path identity wins over
// configuration; "auto" asks discovery for the first known dongle.
func (app *Application) resolvePort() (string, error) {
	if app.identity.Kind == devicetypes.IdentityPortPath {
		return app.identity.Path, nil
	}
	if app.config.Device.Kind != driver.KindMyo || app.config.Device.Port != autoPort {
		return app.config.Device.Port, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	port, err := app.scanners.FindDongle(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find a dongle: %w", err)
	}
	return port, nil
}

// initializeServer sets up the optional status API
func (app *Application) initializeServer() {
	if !app.config.Server.Enabled {
		return
	}

	app.wsHandler = handler.NewWebSocketHandler(app.acquisition, app.config.Server.AllowedOrigins, app.logger)
	router := routes.NewRouter(app.config, app.logger, app.acquisition, app.wsHandler).SetupRouter()

	app.server = &http.Server{
		Addr:              app.config.GetServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	app.logger.Info("Status API initialized", zap.String("address", app.config.GetServerAddr()))
}

// initializeEmitter sets up the optional MQTT publisher
func (app *Application) initializeEmitter() {
	if !app.config.MQTT.Enabled {
		return
	}
	app.emitter = emitter.NewMQTTEmitter(&app.config.MQTT, app.logger)
}

// Run runs the acquisition loop until ctx is cancelled. Side services stop
// when the loop returns.
func (app *Application) Run(ctx context.Context) error {
	serviceLogger := utils.NewServiceLogger(app.logger, "recorder")
	serviceLogger.LogServiceStart(app.config.App.Version, app.config)

	sideCtx, stopSide := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.eventBus.Start(sideCtx)
	}()

	if app.wsHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.wsHandler.Run(sideCtx, app.eventBus)
		}()
	}

	if app.emitter != nil {
		if err := app.emitter.Connect(ctx); err != nil {
			app.logger.Warn("MQTT broker unavailable, retrying in background", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.emitter.Run(sideCtx, app.eventBus)
		}()
	}

	if app.server != nil {
		go func() {
			app.logger.Info("Status API listening", zap.String("address", app.server.Addr))
			if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error("Status API failed", zap.Error(err))
			}
		}()
	}

	runErr := app.acquisition.Run(ctx)

	app.shutdown()
	stopSide()
	wg.Wait()
	if app.emitter != nil {
		app.emitter.Close()
	}

	reason := "stop signal"
	if runErr != nil {
		reason = runErr.Error()
	}
	serviceLogger.LogServiceStop(reason)
	return runErr
}

// shutdown stops the status API
func (app *Application) shutdown() {
	if app.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("Status API shutdown failed", zap.Error(err))
	}
}
