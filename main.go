package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apexgp/sim/internal/ai"
	"apexgp/sim/internal/car"
	"apexgp/sim/internal/config"
	"apexgp/sim/internal/logging"
	"apexgp/sim/internal/race"
	"apexgp/sim/internal/replay"
	"apexgp/sim/internal/sim"
	"apexgp/sim/internal/telemetry"
	"apexgp/sim/internal/track"
)

const (
	// broadcastEvery thins the 60 Hz snapshot stream for WebSocket viewers.
	broadcastEvery = 3
	replayMaxRaces = 24
	replayMaxAge   = 14 * 24 * time.Hour
	shutdownGrace  = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialise logging: %v\n", err)
		os.Exit(1)
	}
	logging.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("simulation service failed", logging.Error(err))
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	//1.- Build the circuit and the race session that governs it.
	geo, err := track.Circle("Apex Ring", 420, 13, 512)
	if err != nil {
		return fmt.Errorf("build track: %w", err)
	}
	start, err := race.ParseWeather(cfg.Weather)
	if err != nil {
		return fmt.Errorf("parse weather: %w", err)
	}
	session, err := race.NewSession(geo, cfg.RaceLaps, race.WithCountdownStep(cfg.CountdownStep.Seconds()))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	weather := race.NewWeatherModel(start, cfg.DynamicSkies, cfg.Seed)

	world, err := sim.NewWorld(geo, session, weather, int(cfg.TickRate))
	if err != nil {
		return fmt.Errorf("create world: %w", err)
	}

	//2.- Fill the grid with AI drivers around a shared chassis.
	for i, personality := range ai.GridPresets(cfg.GridSize) {
		spec := car.DefaultSpec(personality.Name, fmt.Sprintf("Garage %d", i/2+1))
		if _, err := world.AddAICar(spec, personality, cfg.Seed+int64(i)); err != nil {
			return fmt.Errorf("add car %q: %w", personality.Name, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//3.- Replay capture is optional; without a directory the race is ephemeral.
	var recorder *replay.Recorder
	if cfg.ReplayDir != "" {
		writer, err := replay.NewWriter(cfg.ReplayDir, replay.Manifest{
			TrackName: geo.Name(),
			RaceLaps:  cfg.RaceLaps,
			Seed:      cfg.Seed,
			TickRate:  int(cfg.TickRate),
		}, time.Now)
		if err != nil {
			return fmt.Errorf("open replay bundle: %w", err)
		}
		recorder = replay.NewRecorder(writer, 0, logger)
		cleaner := replay.NewCleaner(cfg.ReplayDir, replay.RetentionPolicy{
			MaxRaces: replayMaxRaces,
			MaxAge:   replayMaxAge,
		}, logger)
		go cleaner.Run(ctx, time.Hour)
		logger.Info("replay capture enabled", logging.String("directory", writer.Directory()))
	}

	//4.- Every tick snapshot feeds the recorder and, decimated, the viewers.
	hub := telemetry.NewHub(logger)
	world.OnSnapshot(func(snap sim.Snapshot) {
		if recorder != nil {
			recorder.Observe(snap)
		}
		if snap.Tick%broadcastEvery == 0 {
			if payload, err := json.Marshal(snap); err == nil {
				hub.Broadcast(payload)
			}
		}
	})

	monitor := sim.NewTickMonitor()
	loop := sim.NewLoop(int(cfg.TickRate), world.Tick, monitor)

	handlers := telemetry.NewHandlerSet(telemetry.Options{
		Logger:  logger,
		Control: world,
		Hub:     hub,
		Monitor: monitor,
	})
	mux := http.NewServeMux()
	handlers.Register(mux)
	server := &http.Server{Addr: cfg.Address, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	loop.Start(ctx)
	logger.Info("simulation service listening",
		logging.String("address", cfg.Address),
		logging.Int("grid_size", cfg.GridSize),
		logging.Int("race_laps", cfg.RaceLaps),
		logging.String("weather", start.String()),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		stop()
	}

	//5.- Drain in reverse order so late frames still reach the recorder.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	loop.Stop()
	hub.Close()
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			logger.Warn("closing replay bundle", logging.Error(err))
		}
	}
	logger.Info("simulation service stopped")
	return runErr
}
