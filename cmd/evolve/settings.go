package main

import (
	"fmt"
	"runtime"

	"github.com/baldhumanity/genetic-go/genetic"
)

const (
	fitnessSection    = "fitness"
	runSection        = "run"
	stagnationSection = "stagnation"
)

// runSettings maps the [run] section of a genome config file.
type runSettings struct {
	Generations     int     `ini:"generations"`
	Threshold       float64 `ini:"threshold"` // Stop once the best fitness is at or below this
	Diploid         bool    `ini:"diploid"`   // Breed MendelOrganisms instead of haploid ones
	Workers         int     `ini:"workers"`   // Concurrent fitness evaluations, 0 means one per CPU
	Seed            int64   `ini:"seed"`      // 0 means time seeded
	Crossover       string  `ini:"crossover"` // uniform or split
	MutateOneOnly   bool    `ini:"mutateOneOnly"`
	Checkpoint      string  `ini:"checkpoint"`
	CheckpointEvery int     `ini:"checkpointEvery"`
	Store           string  `ini:"store"` // SQLite database path
	StoreEvery      int     `ini:"storeEvery"`
	MetricsAddr     string  `ini:"metricsAddr"`

	hasThreshold bool `ini:"-"`
}

func defaultRunSettings() runSettings {
	return runSettings{
		Generations:     100,
		Crossover:       "uniform",
		CheckpointEvery: 10,
		StoreEvery:      1,
	}
}

// fitnessSettings holds the [fitness] section.
type fitnessSettings struct {
	Expr string `ini:"expr"`
}

// readSettings interprets the sections the genome loader leaves alone.
func readSettings(cfg *genetic.Config) (runSettings, fitnessSettings, *genetic.StagnationConfig, error) {
	run := defaultRunSettings()
	var fit fitnessSettings

	if cfg.File.HasSection(runSection) {
		sec := cfg.File.Section(runSection)
		if err := sec.StrictMapTo(&run); err != nil {
			return run, fit, nil, &genetic.LoaderError{Section: runSection, Msg: "invalid run option", Err: err}
		}
		run.hasThreshold = sec.HasKey("threshold")
	}
	if run.Generations < 1 {
		return run, fit, nil, &genetic.LoaderError{Section: runSection, Key: "generations", Msg: fmt.Sprintf("must be positive, got %d", run.Generations)}
	}
	if run.Workers < 0 {
		return run, fit, nil, &genetic.LoaderError{Section: runSection, Key: "workers", Msg: fmt.Sprintf("must not be negative, got %d", run.Workers)}
	}
	if run.Workers == 0 {
		run.Workers = runtime.NumCPU()
	}
	if run.Crossover != "uniform" && run.Crossover != "split" {
		return run, fit, nil, &genetic.LoaderError{Section: runSection, Key: "crossover", Msg: fmt.Sprintf("unknown mode '%s'", run.Crossover)}
	}

	if !cfg.File.HasSection(fitnessSection) {
		return run, fit, nil, &genetic.LoaderError{Section: fitnessSection, Msg: "section is required"}
	}
	if err := cfg.File.Section(fitnessSection).StrictMapTo(&fit); err != nil {
		return run, fit, nil, &genetic.LoaderError{Section: fitnessSection, Msg: "invalid fitness option", Err: err}
	}
	if fit.Expr == "" {
		return run, fit, nil, &genetic.LoaderError{Section: fitnessSection, Key: "expr", Msg: "missing fitness expression"}
	}

	var stag *genetic.StagnationConfig
	if cfg.File.HasSection(stagnationSection) {
		stag = &genetic.StagnationConfig{}
		if err := cfg.File.Section(stagnationSection).StrictMapTo(stag); err != nil {
			return run, fit, nil, &genetic.LoaderError{Section: stagnationSection, Msg: "invalid stagnation option", Err: err}
		}
	}
	return run, fit, stag, nil
}

func (r *runSettings) crossoverMode() genetic.CrossoverMode {
	if r.Crossover == "split" {
		return genetic.GenomeSplitCrossover
	}
	return genetic.UniformCrossover
}
