package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/seawatts/grid-sub000/internal/config"
	"github.com/seawatts/grid-sub000/internal/influx"
	servernet "github.com/seawatts/grid-sub000/internal/net"
	"github.com/seawatts/grid-sub000/internal/net/ws"
	"github.com/seawatts/grid-sub000/internal/persistence"
	"github.com/seawatts/grid-sub000/internal/sim"
	"github.com/seawatts/grid-sub000/internal/telemetry"
	"github.com/seawatts/grid-sub000/logging"
	loggingSinks "github.com/seawatts/grid-sub000/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	// ConfigDir is searched for gridtd.{yaml,json,toml}.
	ConfigDir string
}

func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigDir)
	if err != nil {
		return err
	}

	zl := telemetry.NewZerolog(cfg.Logging.Level, cfg.Logging.Pretty)
	logger := telemetry.WrapZerolog(zl, "app")

	metrics, err := buildMetrics(cfg)
	if err != nil {
		return err
	}

	named := buildSinks(ctx, cfg, logger)
	logConfig := logging.DefaultConfig()
	if cfg.Logging.MinSeverity != "" {
		severity, err := logging.ParseSeverity(cfg.Logging.MinSeverity)
		if err != nil {
			return fmt.Errorf("logging.minSeverity: %w", err)
		}
		logConfig.MinimumSeverity = severity
	}
	logConfig.Fields = map[string]any{"seed": cfg.Sim.Seed}

	router := logging.NewRouter(logging.SystemClock{}, logConfig, metrics, named)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	engine := sim.NewEngine(sim.Deps{
		Logger:    telemetry.WrapZerolog(zl, "sim"),
		Metrics:   metrics,
		Publisher: router,
	}, sim.Config{
		Seed:             cfg.Sim.Seed,
		ItemsPerWave:     cfg.Sim.ItemsPerWave,
		ParticleCapacity: cfg.Sim.ParticleCapacity,
	})

	var hub *ws.Hub
	hooks := sim.LoopHooks{
		AfterStep: func(result sim.LoopStepResult) {
			hub.Broadcast(result)
		},
		OnCommandDrop: func(reason string, cmd sim.Command) {
			zl.Warn().Str("command", string(cmd.Type)).Str("reason", reason).Msg("command dropped")
		},
	}
	if store != nil {
		hooks.Save = persistence.SaveFunc(store, nil)
		hooks.Load = persistence.LoadFunc(store)
	}

	loop := sim.NewLoop(engine, cfg.InitialState(), sim.LoopConfig{
		TickRate:         cfg.Server.TickRate,
		CommandCapacity:  cfg.Server.CommandCapacity,
		AutoAdvanceDelay: cfg.Server.AutoAdvanceDelay,
	}, hooks)
	if err := restoreSlot(ctx, loop, store, cfg.Storage.LoadSlot); err != nil {
		return err
	}
	hub = ws.NewHub(loop, telemetry.WrapZerolog(zl, "ws"), metrics)

	handler := servernet.NewHTTPHandler(loop, servernet.HTTPHandlerConfig{
		Logger: telemetry.WrapZerolog(zl, "http"),
		Store:  store,
		Socket: ws.NewHandler(hub, ws.HandlerConfig{}),
	})

	runCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(runCtx)
	}()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	zl.Info().
		Str("addr", srv.Addr).
		Int("tickRate", cfg.Server.TickRate).
		Str("storage", cfg.Storage.Backend).
		Msg("server listening")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stopLoop()
			<-loopDone
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	hub.Close()
	stopLoop()
	<-loopDone
	zl.Info().Uint64("tick", loop.Tick()).Msg("server stopped")
	return nil
}

func buildMetrics(cfg config.Config) (telemetry.Metrics, error) {
	counters := telemetry.NewCounters()
	if !cfg.Otel.Enabled {
		return counters, nil
	}
	otelMetrics, err := telemetry.NewOtelMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	return telemetry.Fanout(counters, otelMetrics), nil
}

// buildSinks opens every configured event sink. Sinks whose backend is
// unreachable are skipped with a warning.
func buildSinks(ctx context.Context, cfg config.Config, logger telemetry.Logger) []logging.NamedSink {
	defaults := logging.DefaultConfig()
	var named []logging.NamedSink
	if cfg.Logging.Console {
		named = append(named, logging.NamedSink{
			Name: "console",
			Sink: loggingSinks.NewConsoleSink(os.Stdout, logging.ConsoleConfig{Prefix: "[events] "}),
		})
	}
	if path := cfg.Logging.JSONPath; path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Printf("json event sink disabled: %v", err)
		} else {
			named = append(named, logging.NamedSink{
				Name: "json",
				Sink: loggingSinks.NewJSON(file, defaults.JSON.FlushInterval),
			})
		}
	}
	if addr := cfg.Logging.GelfAddress; addr != "" {
		gelfSink, err := loggingSinks.NewGelf(logging.GelfConfig{Address: addr, Facility: defaults.Gelf.Facility})
		if err != nil {
			logger.Printf("gelf event sink disabled: %v", err)
		} else {
			named = append(named, logging.NamedSink{Name: "gelf", Sink: gelfSink})
		}
	}
	if cfg.Influx.Enabled {
		influxSink, err := influx.NewSink(ctx, influx.Config{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
			Run:    fmt.Sprintf("%s-%d", cfg.Sim.Seed, time.Now().Unix()),
		})
		if err != nil {
			logger.Printf("influx event sink disabled: %v", err)
		} else {
			named = append(named, logging.NamedSink{Name: "influx", Sink: influxSink})
		}
	}
	return named
}

// openStore returns nil when persistence is disabled.
func openStore(cfg config.StorageConfig) (persistence.Store, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendJSON:
		store, err := persistence.NewJSONStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open json store: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		store, err := persistence.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.BackendPostgres:
		store, err := persistence.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// restoreSlot resumes a saved run at startup. A missing slot starts fresh.
func restoreSlot(ctx context.Context, loop *sim.Loop, store persistence.Store, slot string) error {
	if slot == "" || store == nil {
		return nil
	}
	st, err := persistence.LoadFunc(store)(ctx, slot, loop.Engine().Now())
	if errors.Is(err, persistence.ErrSlotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore slot %q: %w", slot, err)
	}
	loop.Restore(st)
	return nil
}
