package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/junctionsim/junction/internal/config"
	"github.com/junctionsim/junction/internal/core/event"
	coresys "github.com/junctionsim/junction/internal/core/system"
	"github.com/junctionsim/junction/internal/data"
	"github.com/junctionsim/junction/internal/metrics"
	"github.com/junctionsim/junction/internal/persist"
	"github.com/junctionsim/junction/internal/scripting"
	"github.com/junctionsim/junction/internal/sim"
	"github.com/junctionsim/junction/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             junctiond  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       intersection admission engine       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mrun:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/junction.toml"
	if p := os.Getenv("JUNCTION_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Sim.Name)

	// 3. Load network, demand and signal scripts
	printSection("data")

	network, err := data.LoadNetwork(cfg.Data.Network)
	if err != nil {
		return fmt.Errorf("load network: %w", err)
	}
	printStat("intersections", network.NumIntersections())
	printStat("turns", network.TurnCount())

	var trips []data.Trip
	if cfg.Data.Trips != "" {
		trips, err = data.LoadTrips(cfg.Data.Trips, network)
		if err != nil {
			return fmt.Errorf("load trips: %w", err)
		}
	}
	printStat("trips", len(trips))

	ctl := network.Control()
	if cfg.Data.ScriptsDir != "" {
		engine, err := scripting.NewEngine(cfg.Data.ScriptsDir, log)
		if err != nil {
			return fmt.Errorf("load scripts: %w", err)
		}
		defer engine.Close()
		ctl.Signals = scripting.NewSignalPlans(engine, network, log)
		printOK(fmt.Sprintf("signal scripts loaded from %s", cfg.Data.ScriptsDir))
	}
	fmt.Println()

	// 4. Open the snapshot store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg.Snapshot, log)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	// 5. Build or restore the registry
	printSection("registry")
	registry, start, err := buildRegistry(ctx, cfg, network, ctl, store)
	if err != nil {
		return err
	}
	if start > 0 {
		printOK(fmt.Sprintf("restored from snapshot at %s", start-1))
	}
	for i, c := range registry.Counts() {
		kind, _ := registry.Kind(sim.IntersectionID(i))
		log.Debug("intersection",
			zap.Int("id", i),
			zap.Stringer("policy", kind),
			zap.Int("waiting", c.Waiting),
			zap.Int("accepted", c.Accepted))
	}
	fmt.Println()

	// 6. Metrics endpoint
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics, nil)
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: collector.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	// 7. Create systems and register with runner
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus()
	driver := system.NewTripDriver(registry, network, trips, bus, log)
	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(bus))
	runner.Register(driver)
	runner.Register(system.NewAdmissionSystem(runCtx, registry, bus, collector, cfg.Sim.StepWorkers, log))
	runner.Register(driver.Movement())
	if collector != nil {
		runner.Register(system.NewMetricsSystem(registry, bus, collector))
	}
	var snaps *system.SnapshotSystem
	if store != nil {
		snaps = system.NewSnapshotSystem(registry, store, network.Name(), cfg.Snapshot.IntervalTicks, cfg.Snapshot.Timeout, log)
		runner.Register(snaps)
	}
	event.Subscribe(bus, func(e event.AgentExited) {
		log.Debug("agent exited", zap.Stringer("tick", e.Tick), zap.Stringer("request", e.Request))
	})

	// 8. Start the tick loop
	printSection("ready")
	if cfg.Metrics.Enabled {
		printReady(fmt.Sprintf("metrics on http://%s/metrics", cfg.Metrics.Address))
	}
	printReady(fmt.Sprintf("tick loop (tick: %s, pacing: %s)", sim.Timestep, cfg.Sim.TickRate))
	fmt.Println()

	var pace <-chan time.Time
	if cfg.Sim.TickRate > 0 {
		ticker := time.NewTicker(cfg.Sim.TickRate)
		defer ticker.Stop()
		pace = ticker.C
	}

	now := start
	last := now
	for {
		if cfg.Sim.MaxTicks > 0 && uint32(now) >= cfg.Sim.MaxTicks {
			log.Info("tick limit reached", zap.Stringer("tick", now))
			break
		}
		if len(trips) > 0 && driver.Done() {
			log.Info("all trips finished", zap.Stringer("tick", now), zap.Int("trips", driver.Finished()))
			break
		}
		if pace != nil {
			select {
			case <-pace:
			case <-runCtx.Done():
			}
		}
		if runCtx.Err() != nil {
			log.Info("shutdown signal received", zap.Stringer("tick", now))
			break
		}
		runner.Tick(now)
		last = now
		now++
	}

	if snaps != nil {
		if err := snaps.Save(last); err != nil {
			log.Error("final snapshot failed", zap.Error(err))
		}
	}
	log.Info("stopped", zap.Stringer("tick", last))
	return nil
}

func openStore(ctx context.Context, cfg config.SnapshotConfig, log *zap.Logger) (persist.Store, error) {
	switch cfg.Store {
	case "postgres":
		db, err := persist.NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		printOK("PostgreSQL connected")
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		return persist.NewSnapshotRepo(db), nil
	case "sqlite":
		s, err := persist.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		printOK(fmt.Sprintf("SQLite store at %s", cfg.Path))
		return s, nil
	default:
		return nil, nil
	}
}

// buildRegistry restores the latest snapshot of the network when asked to,
// otherwise starts empty. It returns the first tick to run.
func buildRegistry(ctx context.Context, cfg *config.Config, network *data.Network, ctl sim.Control, store persist.Store) (*sim.Registry, sim.Tick, error) {
	opts := []sim.Option{sim.WithSpeedLimit(cfg.Sim.SpeedLimit)}
	if cfg.Snapshot.Restore && store != nil {
		snap, err := store.Latest(ctx, network.Name())
		if err != nil {
			return nil, 0, fmt.Errorf("load snapshot: %w", err)
		}
		if snap != nil {
			r, err := sim.Restore(snap.Payload, network, ctl, opts...)
			if err != nil {
				return nil, 0, fmt.Errorf("restore snapshot %s: %w", snap.RunID, err)
			}
			return r, snap.Tick + 1, nil
		}
	}
	r, err := sim.NewRegistry(network, ctl, opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("build registry: %w", err)
	}
	return r, 0, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
