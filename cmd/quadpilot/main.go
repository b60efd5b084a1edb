// quadpilot runs the robot: it builds the configured controller, the dispatch
// loop, the quadruped sink and the monitor surface, then drives the control
// cycle until a signal, a quit command or a safety stop ends the run.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"QuadPilot/internal/controller"
	"QuadPilot/internal/device"
	"QuadPilot/internal/dispatch"
	"QuadPilot/internal/model"
	"QuadPilot/internal/monitor"
	"QuadPilot/internal/robot"
	"QuadPilot/internal/util"
)

func main() {
	configPath := flag.String("config", "configs/quadpilot.yml", "path to the YAML configuration")
	ctrlName := flag.String("controller", "", "override the configured controller variant")
	logLevel := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	logger := util.InitLogger("quadpilot", *logLevel)

	cfg, err := model.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration rejected")
	}
	if *ctrlName != "" {
		cfg.Dispatch.Controller = *ctrlName
		if err := cfg.Validate(); err != nil {
			logger.Fatal().Err(err).Msg("controller override rejected")
		}
	}

	os.Exit(run(cfg, logger))
}

func run(cfg *model.Config, logger zerolog.Logger) int {
	dev, err := openServoDevice(cfg.Robot)
	if err != nil {
		logger.Error().Err(err).Msg("servo device unavailable")
		return 1
	}
	defer dev.Close()

	metrics := monitor.NewMetrics()

	var store *monitor.Store
	if cfg.Monitor.DBPath != "" {
		store, err = monitor.OpenStore(cfg.Monitor.DBPath, cfg.Monitor.RetainEvents)
		if err != nil {
			logger.Warn().Err(err).Msg("event store unavailable, continuing without persistence")
		} else {
			defer store.Close()
		}
	}

	hub := monitor.NewHub(store, nil)
	monSrv := monitor.NewServer(cfg.Monitor, metrics, hub, store)
	if err := monSrv.Start(); err != nil {
		logger.Error().Err(err).Msg("monitor server failed to start")
		return 1
	}
	defer monSrv.Stop()

	quad := robot.New(cfg.Robot, dev, metrics)
	if err := quad.Calibrate(); err != nil {
		logger.Error().Err(err).Msg("calibration failed")
		return 1
	}
	if err := quad.Start(); err != nil {
		logger.Error().Err(err).Msg("walker failed to start")
		return 1
	}
	defer quad.Stop()

	ctrl, err := controller.New(cfg.Dispatch.Controller, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("controller selection failed")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loop := dispatch.NewLoop(cfg.Dispatch, ctrl, quad, hub)
	logger.Info().Str("controller", cfg.Dispatch.Controller).Msg("dispatch starting")

	switch err := loop.Run(ctx); {
	case err == nil:
		logger.Info().Msg("clean shutdown")
		return 0
	case errors.Is(err, dispatch.ErrAcquisition):
		logger.Error().Err(err).Msg("could not acquire the input source")
		return 1
	case errors.Is(err, dispatch.ErrDegradedTimeout):
		logger.Error().Err(err).Msg("input lost, robot stopped protectively")
		return 1
	default:
		logger.Error().Err(err).Msg("dispatch failed")
		return 1
	}
}

// openServoDevice returns the configured serial link, or a null device when no
// servo hardware is configured (development runs).
func openServoDevice(cfg model.RobotConfig) (device.Device, error) {
	if cfg.ServoDev == "" {
		return device.NewNull(), nil
	}
	return device.NewSerialDevice(cfg.ServoDev, cfg.ServoBaud)
}
