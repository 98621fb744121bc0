package storage

import (
	"context"

	"github.com/baldhumanity/genetic-go/genetic"
)

// Recorder is a genetic.Reporter that saves the population to a store
// every Every generations. Save failures are logged and counted, not fatal
// to the run.
type Recorder struct {
	Store *SQLiteStore
	Every int
	Ctx   context.Context

	Failures int
}

func (r *Recorder) StartGeneration(int) {}

func (r *Recorder) EndGeneration(generation int, _ genetic.Stats, p *genetic.Population) {
	every := max(r.Every, 1)
	if generation%every != 0 {
		return
	}
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.Store.SavePopulation(ctx, p); err != nil {
		r.Failures++
		genetic.Logger().Error("failed to record generation", "run", p.RunID, "generation", generation, "error", err)
	}
}
