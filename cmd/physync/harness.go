package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/openworld/physync/internal/api"
	"github.com/openworld/physync/internal/cache"
	"github.com/openworld/physync/internal/config"
	"github.com/openworld/physync/internal/dispatcher"
	"github.com/openworld/physync/internal/editqueue"
	"github.com/openworld/physync/internal/engine"
	"github.com/openworld/physync/internal/influx"
	"github.com/openworld/physync/internal/logging"
	"github.com/openworld/physync/internal/monitor"
	"github.com/openworld/physync/internal/motion"
	intOtel "github.com/openworld/physync/internal/otel"
	"github.com/openworld/physync/internal/parser"
	"github.com/openworld/physync/internal/scenario"
	"github.com/openworld/physync/internal/session"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/internal/simulation"
	"github.com/openworld/physync/internal/storage"
	"github.com/openworld/physync/internal/worker"
	"github.com/openworld/physync/pkg/core"
)

const appName = "physync"

type options struct {
	configDir    string
	scenarioPath string
	frames       uint64
	storageType  string
}

// harness wires one scenario run: config, logging, storage, the sync loop
// and the notification path into it.
type harness struct {
	opts options

	logFile  *os.File
	logs     *logging.SlogManager
	logger   *slog.Logger
	dbLogger zerolog.Logger
	otel     *intOtel.Provider
	influx   *influx.Manager

	sessionCtx *session.Context
	backend    storage.Backend
	edits      *editqueue.Queue
	loop       *simulation.Loop
	dispatcher *dispatcher.Dispatcher
	monitor    *monitor.Service
	scenario   *scenario.Scenario
}

type discardSink struct{}

func (discardSink) RecordEdits([]core.EntityEdit) error { return nil }

func newHarness(opts options) (*harness, error) {
	h := &harness{opts: opts, sessionCtx: session.NewContext()}
	start := time.Now()

	h.logs = logging.NewSlogManager(logging.WithContext(h.sessionCtx.LogAttrs))
	h.logs.Setup(nil, "info", nil)
	h.logger = h.logs.Logger()

	// defaults are in place even when the file is missing
	if err := config.Load(opts.configDir); err != nil {
		h.logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	level := config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, appName, start)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	h.logFile = logFile

	otelCfg := config.GetOTelConfig()
	h.otel, err = intOtel.New(intOtel.FromConfig(otelCfg, logFile))
	if err != nil {
		h.logger.Error("Failed to initialize OTel provider", "error", err)
		h.otel, _ = intOtel.New(intOtel.Config{})
	}
	var otelLogProvider *sdklog.LoggerProvider
	if h.otel.Enabled() {
		otelLogProvider = h.otel.LoggerProvider()
	}
	h.logs.Setup(logFile, level, otelLogProvider)
	h.logger = h.logs.Logger()
	h.logger.Info("Logging to file", "path", logPath)

	graylogAddr := ""
	if config.GetBool("graylog.enabled") {
		graylogAddr = config.GetString("graylog.address")
	}
	h.dbLogger, err = logging.NewZerolog(logFile, level, graylogAddr)
	if err != nil {
		h.logger.Warn("Graylog unavailable, logging to file only", "error", err)
		h.dbLogger, _ = logging.NewZerolog(logFile, level, "")
	}

	if err := h.setupInflux(logsDir, start); err != nil {
		h.logger.Warn("InfluxDB telemetry disabled", "error", err)
	}

	if err := h.setupStorage(); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.setupSimulation(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *harness) setupInflux(logsDir string, start time.Time) error {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}
	backup := filepath.Join(logsDir, fmt.Sprintf("%s_influx_%s.lp.gz", appName, start.Format("20060102_150405")))
	m := influx.NewManager(h.dbLogger, backup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx, cfg); err != nil {
		return err
	}
	h.influx = m
	return nil
}

func (h *harness) setupStorage() error {
	storageCfg := config.GetStorageConfig()
	if h.opts.storageType != "" {
		storageCfg.Type = h.opts.storageType
	}

	backend, err := createStorageBackend(storageCfg, h.logger, h.dbLogger)
	if err != nil {
		return err
	}
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
		}
	}
	h.backend = backend
	return nil
}

func (h *harness) setupSimulation() error {
	path := h.opts.scenarioPath
	if path == "" {
		path = config.GetString("scenario.path")
	}
	if path == "" {
		return errors.New("no scenario given")
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	h.scenario = sc

	physCfg := config.GetPhysicsConfig()
	queueCfg := config.GetEditQueueConfig()
	motion.SetSendPhysicsUpdates(physCfg.SendUpdates)

	var sink editqueue.Sink = discardSink{}
	if h.backend != nil {
		sink = h.backend
	}
	h.edits, err = editqueue.New(queueCfg.Capacity, sink, h.logger)
	if err != nil {
		return err
	}

	worldCfg := engine.DefaultConfig()
	worldCfg.MaxSubsteps = physCfg.MaxSubsteps
	worldCfg.WorldOffset = mgl64.Vec3(sc.Session.WorldOffset)
	world := engine.New(worldCfg)

	sim := simulation.New(world, shape.NewManager(), h.edits, h.logger)
	sim.OnCollision(func(ev simulation.CollisionEvent) {
		h.logger.Debug("Collision", "type", ev.Type, "a", ev.A, "b", ev.B)
	})

	frameRate := physCfg.FrameRate
	if sc.Session.FrameRate > 0 {
		frameRate = sc.Session.FrameRate
	}

	h.loop, err = simulation.NewLoop(world, sim, h.edits, core.Session{},
		simulation.WithFrameRate(frameRate),
		simulation.WithRealtime(physCfg.Realtime),
		simulation.WithLoopLogger(h.logger),
		simulation.WithFrameHook(h.dispatchScripted),
		simulation.WithStatsHook(h.recordStats),
	)
	if err != nil {
		return err
	}

	h.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(h.dbLogger))
	if err != nil {
		return err
	}
	w := worker.NewManager(worker.Dependencies{
		EntityCache: cache.NewEntityCache(),
		Session:     h.sessionCtx,
		Parser:      parser.NewParser(h.logger),
		Logger:      h.logger,
	}, h.backend, h.loop)
	w.RegisterHandlers(h.dispatcher)
	h.dispatcher.Register(scenario.CmdLogWrite, func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 3 {
			return nil, fmt.Errorf("%s needs 3 args, got %d", scenario.CmdLogWrite, len(e.Args))
		}
		h.logs.WriteLog(e.Args[0], e.Args[1], e.Args[2])
		return nil, nil
	})

	deps := monitor.Dependencies{
		Logger:    h.logger,
		Session:   h.sessionCtx,
		SyncStats: h.loop.Stats,
		EditQueue: h.edits.Stats,
		StatusDir: config.GetString("logsDir"),
	}
	if st, ok := h.backend.(monitor.StorageStatus); ok {
		deps.Storage = st
	}
	h.monitor = monitor.NewService(deps)
	return nil
}

// dispatchScripted feeds the notifications scripted for a frame through
// the dispatcher and waits for the buffered ones.
func (h *harness) dispatchScripted(frame uint64) {
	events, err := h.scenario.EventsAt(frame, time.Now())
	if err != nil {
		h.logger.Error("Bad scripted event", "frame", frame, "error", err)
		return
	}
	for _, e := range events {
		if _, err := h.dispatcher.Dispatch(e); err != nil {
			h.logger.Warn("Scripted event failed", "frame", frame, "command", e.Command, "error", err)
		}
	}
	if len(events) > 0 {
		h.dispatcher.Drain()
	}
}

func (h *harness) recordStats(stats core.SyncStats) {
	if !h.sessionCtx.Active() {
		return
	}
	if h.backend != nil {
		if err := h.backend.RecordSyncStats(&stats); err != nil {
			h.logger.Debug("Failed to record sync stats", "error", err)
		}
	}
	if h.influx != nil {
		h.influx.SetSession(h.sessionCtx.GetSession())
		h.influx.RecordSyncStats(stats)
	}
}

// Run starts the session, runs the scenario frames and ends the session
// if the script did not.
func (h *harness) Run(ctx context.Context) error {
	events, err := h.scenario.Setup(time.Now())
	if err != nil {
		return err
	}
	for _, e := range events {
		if _, err := h.dispatcher.Dispatch(e); err != nil {
			return fmt.Errorf("%s: %w", e.Command, err)
		}
	}

	if err := h.monitor.Start(); err != nil {
		h.logger.Warn("Status monitor not started", "error", err)
	}
	defer h.monitor.Stop()

	frames := h.scenario.Frames
	if h.opts.frames > 0 {
		frames = h.opts.frames
	}
	h.logger.Info("Running scenario", "frames", frames, "session", h.scenario.Session.Name)

	runErr := h.loop.Run(ctx, frames)
	if errors.Is(runErr, context.Canceled) {
		h.logger.Info("Interrupted, shutting down")
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.loop.Shutdown(shutdownCtx); err != nil {
		h.logger.Warn("Loop shutdown incomplete", "error", err)
	}

	if h.sessionCtx.Active() {
		if _, err := h.dispatcher.Dispatch(dispatcher.Event{Command: worker.CmdSessionEnd, Timestamp: time.Now()}); err != nil {
			return errors.Join(runErr, fmt.Errorf("ending session: %w", err))
		}
	}

	if exp, ok := h.backend.(storage.Exportable); ok {
		if path := exp.GetExportedFilePath(); path != "" {
			meta := exp.GetExportMetadata()
			h.logger.Info("Journal written", "path", path,
				"entities", meta.Entities, "edits", meta.Edits, "ownership", meta.Ownership)
			if err := h.upload(shutdownCtx, path, meta); err != nil {
				h.logger.Error("Journal upload failed", "path", path, "error", err)
			}
		}
	}
	return runErr
}

func (h *harness) upload(ctx context.Context, path string, meta core.ExportMetadata) error {
	cfg := config.GetAPIConfig()
	if !cfg.Upload {
		return nil
	}
	client := api.New(cfg.ServerURL, cfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	if err := client.Upload(ctx, path, meta); err != nil {
		return err
	}
	h.logger.Info("Journal uploaded", "server", cfg.ServerURL)
	return nil
}

// ExportedPath returns the journal written by the backend, if any.
func (h *harness) ExportedPath() string {
	if exp, ok := h.backend.(storage.Exportable); ok {
		return exp.GetExportedFilePath()
	}
	return ""
}

// Close releases everything newHarness opened.
func (h *harness) Close() {
	if h.dispatcher != nil {
		h.dispatcher.Close()
	}
	if h.backend != nil {
		if err := h.backend.Close(); err != nil {
			h.logger.Error("Failed to close storage", "error", err)
		}
	}
	if h.influx != nil {
		if err := h.influx.Close(); err != nil {
			h.logger.Error("Failed to close influx", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if h.otel != nil {
		if err := h.otel.Flush(ctx); err != nil {
			h.logger.Warn("Failed to flush OTel data", "error", err)
		}
		if err := h.otel.Shutdown(ctx); err != nil {
			h.logger.Warn("Failed to shut down OTel", "error", err)
		}
	}
	if h.logFile != nil {
		h.logFile.Close()
	}
}
