// Command evolve runs a genetic algorithm described entirely by an ini file:
// the gene sections define the genome, [population] the breeding
// parameters, [fitness] an expression to minimise over the phenotype and
// [run] how long to go and where to save progress.
//
//	[x]
//	type = float
//	randMin = -10
//	randMax = 10
//
//	[fitness]
//	expr = abs(x*x - 8*x + 15)
//
//	[run]
//	generations = 500
//	threshold = 0.001
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/baldhumanity/genetic-go/genetic"
	"github.com/baldhumanity/genetic-go/genetic/metrics"
	"github.com/baldhumanity/genetic-go/genetic/storage"
)

var (
	configPath  = flag.String("config", "evolve.ini", "Genome and run config file")
	generations = flag.Int("generations", 0, "Override [run] generations")
	resume      = flag.String("resume", "", "Resume the latest stored snapshot of this run ID")
	listRuns    = flag.Bool("runs", false, "List the runs in the store and exit")
	verbose     = flag.Bool("v", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	genetic.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, os.Stdout); err != nil {
		log.Fatalf("evolve: %v", err)
	}
}

func run(ctx context.Context, logger *slog.Logger, out io.Writer) error {
	loader := genetic.NewLoader()
	loader.IgnoreSections = []string{fitnessSection, runSection, stagnationSection}
	cfg, err := loader.Load(*configPath)
	if err != nil {
		return err
	}
	settings, fitSettings, stagConfig, err := readSettings(cfg)
	if err != nil {
		return err
	}
	if *generations > 0 {
		settings.Generations = *generations
	}

	fit, err := compileFitness(fitSettings.Expr, cfg.Genome)
	if err != nil {
		return err
	}

	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	species := genetic.NewSpecies("evolve", cfg.Genome, fit.Fitness)
	species.Rand = genetic.NewLockedRand(seed)
	species.Crossover = settings.crossoverMode()
	species.MutateOneOnly = settings.MutateOneOnly
	if settings.Workers > 1 {
		ev := genetic.NewPoolEvaluator(settings.Workers)
		defer ev.Close()
		species.Evaluator = ev
	}
	if err := species.Validate(); err != nil {
		return err
	}
	// Surface expression errors before breeding rather than as +Inf scores.
	if _, err := fit.Eval(ctx, species.NewOrganism()); err != nil {
		return err
	}

	factory := species.Factory()
	if settings.Diploid {
		factory = species.MendelFactory()
	}

	var store *storage.SQLiteStore
	if settings.Store != "" {
		store = storage.NewSQLiteStore(settings.Store)
		if err := store.Init(ctx); err != nil {
			return err
		}
		defer store.Close()
	}
	if *listRuns {
		if store == nil {
			return errors.New("-runs needs a store in the [run] section")
		}
		return printRuns(ctx, store, out)
	}

	popOpts := []genetic.PopulationOption{genetic.WithRand(genetic.NewLockedRand(seed + 1))}
	pop, err := loadPopulation(ctx, store, settings, cfg.Population, factory, species.Restore, popOpts)
	if err != nil {
		return err
	}
	logger.Info("starting run", "run", pop.RunID, "generation", pop.Generation,
		"size", pop.Len(), "seed", seed, "workers", settings.Workers)

	pop.AddReporter(&genetic.LogReporter{Logger: logger})
	if store != nil {
		pop.AddReporter(&storage.Recorder{Store: store, Every: settings.StoreEvery, Ctx: ctx})
	}
	var stagnation *genetic.Stagnation
	if stagConfig != nil {
		stagnation, err = genetic.NewStagnation(*stagConfig)
		if err != nil {
			return err
		}
		stagnation.Reset(pop.Generation)
		pop.AddReporter(stagnation)
	}
	if settings.MetricsAddr != "" {
		shutdown, err := serveMetrics(pop, settings.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	for pop.Generation < settings.Generations {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", "generation", pop.Generation)
			break
		}
		if err := pop.Gen(0, 0); err != nil {
			return fmt.Errorf("generation %d failed: %w", pop.Generation, err)
		}
		best := pop.Best().Fitness()
		if settings.hasThreshold && best <= settings.Threshold {
			logger.Info("fitness threshold met", "generation", pop.Generation, "best", best)
			break
		}
		if stagnation != nil && stagnation.Stagnant() {
			logger.Info("run stagnated", "generation", pop.Generation, "since", stagnation.Since())
			break
		}
		if settings.Checkpoint != "" && pop.Generation%max(settings.CheckpointEvery, 1) == 0 {
			if err := pop.SaveCheckpoint(settings.Checkpoint); err != nil {
				logger.Warn("failed to save checkpoint", "generation", pop.Generation, "error", err)
			}
		}
	}

	if settings.Checkpoint != "" {
		if err := pop.SaveCheckpoint(settings.Checkpoint); err != nil {
			logger.Warn("failed to save final checkpoint", "error", err)
		}
	}
	if store != nil {
		if err := store.SavePopulation(ctx, pop); err != nil {
			logger.Warn("failed to store final population", "error", err)
		}
	}
	if n := fit.Failures(); n > 0 {
		logger.Warn("fitness expression failed during the run", "count", n)
	}
	return printBest(pop, out)
}

// loadPopulation resumes from the store when -resume is given, then from
// the checkpoint file if one exists, and otherwise starts afresh.
func loadPopulation(ctx context.Context, store *storage.SQLiteStore, settings runSettings, cfg genetic.PopulationConfig,
	factory genetic.Factory, restore genetic.Restorer, opts []genetic.PopulationOption) (*genetic.Population, error) {
	if *resume != "" {
		if store == nil {
			return nil, errors.New("-resume needs a store in the [run] section")
		}
		snap, ok, err := store.Latest(ctx, *resume)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("run '%s' not found in %s", *resume, settings.Store)
		}
		return snap.Restore(factory, restore, opts...)
	}
	if settings.Checkpoint != "" {
		if _, err := os.Stat(settings.Checkpoint); err == nil {
			snap, err := genetic.LoadCheckpoint(settings.Checkpoint)
			if err == nil {
				return snap.Restore(factory, restore, opts...)
			}
			genetic.Logger().Warn("failed to load checkpoint, starting new evolution", "error", err)
		}
	}
	return genetic.NewPopulation(cfg, factory, opts...)
}

// serveMetrics exposes the population gauges on addr/metrics. The returned
// function stops the server.
func serveMetrics(pop *genetic.Population, addr string, logger *slog.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	rep, err := metrics.NewReporter(reg, prometheus.Labels{"run": pop.RunID})
	if err != nil {
		return nil, err
	}
	pop.AddReporter(rep)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func printRuns(ctx context.Context, store *storage.SQLiteStore, out io.Writer) error {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  generation %d  snapshots %d  updated %s\n",
			r.RunID, r.LastGeneration, r.Snapshots, r.Updated.Format(time.RFC3339))
	}
	return nil
}

func printBest(pop *genetic.Population, out io.Writer) error {
	best := pop.Best()
	fmt.Fprintf(out, "Best organism (run %s, generation %d, fitness %g):\n", pop.RunID, pop.Generation, best.Fitness())
	if d, ok := best.(interface{ Dump(io.Writer) error }); ok {
		return d.Dump(out)
	}
	_, err := fmt.Fprintln(out, best)
	return err
}
