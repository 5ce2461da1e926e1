// Command crisissim runs one disaster-response simulation: it builds the world
// from a scenario file or a generated map, drives it with the chosen planner and
// records the run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/crisis-grid/internal/api"
	"github.com/talgya/crisis-grid/internal/config"
	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/llm"
	"github.com/talgya/crisis-grid/internal/metrics"
	"github.com/talgya/crisis-grid/internal/persistence"
	"github.com/talgya/crisis-grid/internal/planner"
	"github.com/talgya/crisis-grid/internal/runlog"
	"github.com/talgya/crisis-grid/internal/world"
)

func main() {
	configPath := flag.String("config", "", "scenario YAML file (default: built-in 20x20 map)")
	ticks := flag.Uint64("ticks", 0, "tick cap (overrides run.ticks)")
	seed := flag.Int64("seed", 0, "random seed (overrides sim.seed)")
	strategy := flag.String("strategy", "", "planner: greedy, react or plan_execute (overrides run.strategy)")
	dbPath := flag.String("db", "data/runs.db", "SQLite database for run results, empty to disable")
	logDir := flag.String("logdir", "", "directory for per-tick transcripts, empty to disable")
	addr := flag.String("addr", "", "serve the observation API on this address, e.g. :8080")
	generate := flag.String("generate", "", "generate a WxH map instead of using the scenario map")
	aggregate := flag.String("aggregate", "", "write every stored run to this CSV file and exit")
	verbose := flag.Bool("v", false, "log every tick")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *aggregate != "" {
		if err := writeAggregate(*dbPath, *aggregate); err != nil {
			slog.Error("aggregate failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// ── Scenario ──────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	params := cfg.Params(engine.DefaultParams())
	if set["seed"] {
		params.Seed = *seed
	}
	if set["ticks"] {
		cfg.Run.Ticks = *ticks
	}
	if set["strategy"] {
		cfg.Run.Strategy = *strategy
	}
	strat, ok := planner.ParseStrategy(cfg.Run.Strategy)
	if !ok {
		slog.Error("unknown strategy", "strategy", cfg.Run.Strategy)
		os.Exit(1)
	}

	layout := cfg.Layout()
	if *generate != "" {
		gen, err := parseGenerate(*generate, params.Seed, layout.Survivors)
		if err != nil {
			slog.Error("bad -generate", "error", err)
			os.Exit(1)
		}
		layout = world.Generate(gen)
	}

	sim, err := engine.NewSimulation(layout, params)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	runID := uuid.NewString()
	slog.Info("world ready",
		"run_id", runID,
		"map", layout.Name,
		"size", fmt.Sprintf("%dx%d", layout.Width, layout.Height),
		"seed", params.Seed,
		"survivors", sim.TotalSpawned,
		"hospitals", len(sim.Hospitals.Hospitals()),
		"fires", len(sim.Grid.Positions(world.CellFire)),
	)

	// ── Planner ───────────────────────────────────────────────────────
	var plan engine.Planner
	var transcript func() []llm.Message
	if strat != planner.StrategyGreedy {
		client := llm.NewClient(llm.Options{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  cfg.Run.Model,
		})
		if client.Enabled() {
			p := planner.NewLLM(client, strat)
			plan, transcript = p, p.Transcript
			slog.Info("LLM planner enabled", "strategy", strat, "model", client.Model())
		} else {
			slog.Warn("ANTHROPIC_API_KEY not set, falling back to greedy planner", "requested", strat)
			strat = planner.StrategyGreedy
		}
	}
	if plan == nil {
		sensors := planner.SensorConfig{Radius: cfg.Run.SensorRadius, FP: cfg.Run.SensorFP, FN: cfg.Run.SensorFN}
		plan = planner.NewGreedy(sensors, sim.RNG().Derive(entropy.StreamSensors))
	}

	// ── Recording ─────────────────────────────────────────────────────
	exporter, err := metrics.NewExporter(prometheus.NewRegistry())
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	var db *persistence.DB
	if *dbPath != "" {
		if err := ensureDir(*dbPath); err != nil {
			slog.Error("failed to create database directory", "error", err)
			os.Exit(1)
		}
		db, err = persistence.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", *dbPath)
	} else {
		slog.Warn("no database configured, run results will not be stored")
	}

	var tlog *runlog.Writer
	if *logDir != "" {
		tlog = runlog.NewWriter(*logDir, string(strat), runID)
		slog.Info("transcript enabled", "path", tlog.Path())
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim, plan)
	eng.MaxTicks = cfg.Run.Ticks
	eng.StopWhenResolved = cfg.Run.StopWhenResolved
	eng.ReportEvery = cfg.Run.ReportEvery
	eng.Interval = time.Duration(cfg.Run.IntervalMs) * time.Millisecond

	last := time.Now()
	eng.OnTick = func(res engine.TickResult) {
		exporter.ObserveTickDuration(time.Since(last))
		last = time.Now()
		exporter.Observe(res.Metrics)
		for _, q := range sim.HospitalQueueState().Queues {
			exporter.SetQueueLength(engine.Position(q.Hospital).String(), q.Len)
		}

		if db != nil {
			if err := db.SaveTick(runID, res.Metrics); err != nil {
				slog.Error("tick save failed", "error", err)
			}
			if err := db.SaveEvents(runID, res.Events); err != nil {
				slog.Error("event save failed", "error", err)
			}
		}
		if tlog != nil {
			rec := runlog.Record{RunID: runID, Strategy: string(strat), Tick: res.Tick, Result: res}
			if transcript != nil {
				rec.Conversation = transcript()
			}
			if err := tlog.Write(rec); err != nil {
				slog.Error("transcript write failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if *addr != "" {
		adminKey := os.Getenv("CRISIS_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("CRISIS_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		srv := (&api.Server{
			Eng:      eng,
			Exporter: exporter,
			DB:       db,
			RunID:    runID,
			Strategy: string(strat),
			Addr:     *addr,
			AdminKey: adminKey,

			TrustedProxies: strings.Split(os.Getenv("CRISIS_TRUSTED_PROXIES"), ","),
		}).Start()
		defer api.Shutdown(srv, 5*time.Second)
	}

	// ── Run ───────────────────────────────────────────────────────────
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "error", err)
	}

	if tlog != nil {
		if err := tlog.Close(); err != nil {
			slog.Error("transcript close failed", "error", err)
		}
	}

	snap := sim.Metrics.Snapshot()
	if db != nil {
		run := persistence.NewRun(runID, layout.Name, string(strat), params.Seed, snap)
		if err := db.FinishRun(run); err != nil {
			slog.Error("final save failed", "error", err)
		}
	}

	printSummary(runID, strat, sim, snap, time.Since(started))
}

func printSummary(runID string, strat planner.Strategy, sim *engine.Simulation, snap metrics.Snapshot, took time.Duration) {
	c := sim.Census()
	fmt.Printf("\nRun %s (%s) finished after %s ticks in %s.\n",
		runID, strat, humanize.Comma(int64(snap.Tick)), took.Round(time.Millisecond))
	fmt.Printf("  rescued %d of %d survivors, %d died, %d still waiting\n",
		snap.Rescued, c.Spawned, snap.Deaths, c.Active+c.Enqueued+c.Carried)
	fmt.Printf("  average rescue time %s ticks\n", humanize.FtoaWithDigits(snap.AvgRescueTime, 1))
	fmt.Printf("  fires extinguished %d, roads cleared %d, drone energy %s\n",
		snap.FiresExtinguished, snap.RoadsCleared, humanize.Comma(int64(snap.EnergyUsed)))
	fmt.Printf("  planner calls %d, invalid replies %d, replans %d, overflow events %d\n",
		snap.ToolCalls, snap.InvalidJSON, snap.Replans, snap.HospitalOverflowEvents)
}

// parseGenerate reads a WxH map size.
func parseGenerate(s string, seed int64, survivors int) (world.GenConfig, error) {
	cfg := world.DefaultGenConfig()
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return cfg, fmt.Errorf("want WxH, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return cfg, fmt.Errorf("width: %w", err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return cfg, fmt.Errorf("height: %w", err)
	}
	if width < 4 || height < 4 {
		return cfg, fmt.Errorf("map must be at least 4x4, got %dx%d", width, height)
	}
	cfg.Width, cfg.Height = width, height
	cfg.Seed = seed
	cfg.Survivors = survivors
	return cfg, nil
}

func writeAggregate(dbPath, out string) error {
	if dbPath == "" {
		return errors.New("-aggregate needs -db")
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := ensureDir(out); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	n, err := db.WriteCSV(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	slog.Info("aggregate written", "rows", n, "path", out)
	return nil
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
