package genetic

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
)

// PopulationConfig holds the generational breeding parameters. The ini tags
// match the keys of a config file's [population] section.
type PopulationConfig struct {
	InitPopulation    int     `ini:"initPopulation"`    // Random members created by NewPopulation
	ChildCull         int     `ini:"childCull"`         // Survivors kept after each generation
	ChildCount        int     `ini:"childCount"`        // Children bred each generation
	Incest            int     `ini:"incest"`            // Fittest adults carried into the child pool
	NumNewOrganisms   int     `ini:"numNewOrganisms"`   // Random organisms injected before breeding
	Mutants           float64 `ini:"mutants"`           // Proportion of children mutated when MutateAfterMating is off
	MutateAfterMating bool    `ini:"mutateAfterMating"` // Mutate every child right after mating
}

// DefaultPopulationConfig returns the stock breeding parameters.
func DefaultPopulationConfig() PopulationConfig {
	return PopulationConfig{
		InitPopulation:    10,
		ChildCull:         20,
		ChildCount:        100,
		Incest:            10,
		NumNewOrganisms:   0,
		Mutants:           0.1,
		MutateAfterMating: true,
	}
}

// Validate checks the parameters for consistency.
func (c *PopulationConfig) Validate() error {
	if c.InitPopulation < 0 || c.ChildCull < 0 || c.ChildCount < 0 || c.Incest < 0 || c.NumNewOrganisms < 0 {
		return fmt.Errorf("population config error: counts must not be negative: %+v", *c)
	}
	if c.Mutants < 0 || c.Mutants > 1 {
		return fmt.Errorf("population config error: mutants %v must be between 0 and 1", c.Mutants)
	}
	return nil
}

// Factory creates a new random organism of the population's species.
type Factory func() Organism

// Factory returns a factory of random haploid organisms.
func (s *Species) Factory() Factory {
	return func() Organism { return s.NewOrganism() }
}

// MendelFactory returns a factory of random diploid organisms.
func (s *Species) MendelFactory() Factory {
	return func() Organism { return s.NewMendel() }
}

// Population is an ordered collection of organisms, fittest first once
// sorted, together with its breeding parameters.
type Population struct {
	Config     PopulationConfig
	Generation int
	// RunID identifies the run in checkpoints and stores.
	RunID string

	factory   Factory
	organisms []Organism
	sorted    bool
	rng       *rand.Rand
	reporters ReporterSet
}

// PopulationOption customizes a new population.
type PopulationOption func(*Population)

// WithRand sets the random source used for parent selection.
func WithRand(rng *rand.Rand) PopulationOption {
	return func(p *Population) { p.rng = rng }
}

// WithRunID replaces the generated run identifier.
func WithRunID(id string) PopulationOption {
	return func(p *Population) { p.RunID = id }
}

// WithReporter attaches a generation reporter.
func WithReporter(r Reporter) PopulationOption {
	return func(p *Population) { p.reporters.Add(r) }
}

// NewPopulation creates a population of cfg.InitPopulation random organisms.
func NewPopulation(cfg PopulationConfig, factory Factory, opts ...PopulationOption) (*Population, error) {
	p, err := newPopulation(cfg, factory, opts)
	if err != nil {
		return nil, err
	}
	for range cfg.InitPopulation {
		p.organisms = append(p.organisms, factory())
	}
	return p, nil
}

// NewPopulationOf creates a population from explicit members.
func NewPopulationOf(cfg PopulationConfig, factory Factory, members []Organism, opts ...PopulationOption) (*Population, error) {
	p, err := newPopulation(cfg, factory, opts)
	if err != nil {
		return nil, err
	}
	p.organisms = append(p.organisms, members...)
	return p, nil
}

func newPopulation(cfg PopulationConfig, factory Factory, opts []PopulationOption) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("population needs an organism factory")
	}
	p := &Population{Config: cfg, factory: factory, RunID: uuid.NewString()}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p, nil
}

// AddReporter attaches a generation reporter to an existing population.
func (p *Population) AddReporter(r Reporter) {
	p.reporters.Add(r)
}

// Add appends organisms, other populations, or slices of either nested to
// any depth. Nothing is added if any item has an unsupported type.
func (p *Population) Add(items ...any) error {
	var batch []Organism
	if err := collect(&batch, items); err != nil {
		return err
	}
	p.organisms = append(p.organisms, batch...)
	p.sorted = false
	return nil
}

func collect(batch *[]Organism, items []any) error {
	for _, item := range items {
		switch v := item.(type) {
		case *Population:
			*batch = append(*batch, v.organisms...)
		case Organism:
			*batch = append(*batch, v)
		case []Organism:
			*batch = append(*batch, v...)
		case []*Population:
			for _, sub := range v {
				*batch = append(*batch, sub.organisms...)
			}
		case []any:
			if err := collect(batch, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedType, item)
		}
	}
	return nil
}

// Merge returns a new population holding the members of both populations,
// with p's configuration and factory.
func (p *Population) Merge(other *Population) *Population {
	m := &Population{
		Config:    p.Config,
		RunID:     p.RunID,
		factory:   p.factory,
		rng:       p.rng,
		reporters: p.reporters,
	}
	m.organisms = append(slices.Clone(p.organisms), other.organisms...)
	return m
}

func (p *Population) Len() int { return len(p.organisms) }

// At returns the i-th fittest member.
func (p *Population) At(i int) Organism {
	p.Sort()
	return p.organisms[i]
}

// Organisms returns the members, fittest first.
func (p *Population) Organisms() []Organism {
	p.Sort()
	return slices.Clone(p.organisms)
}

// Best returns the fittest member, or nil for an empty population.
func (p *Population) Best() Organism {
	p.Sort()
	if len(p.organisms) == 0 {
		return nil
	}
	return p.organisms[0]
}

// Fitness returns the mean fitness of all members.
func (p *Population) Fitness() float64 {
	return Mean(fitnesses(p.organisms))
}

// Stats summarizes the fitness distribution of the members.
type Stats struct {
	Size   int
	Best   float64
	Worst  float64
	Mean   float64
	Median float64
	Stdev  float64
}

func (p *Population) Stats() Stats {
	p.Sort()
	f := fitnesses(p.organisms)
	return Stats{
		Size:   len(f),
		Best:   MinFloat(f),
		Worst:  MaxFloat(f),
		Mean:   Mean(f),
		Median: Median(f),
		Stdev:  Stdev(f),
	}
}

// Sort orders the members fittest first. Every member's fitness is
// submitted before any is awaited. Sorting is skipped while the population
// is known to be in order.
func (p *Population) Sort() {
	if p.sorted {
		return
	}
	sortOrganisms(p.organisms)
	p.sorted = true
}

func prepareAll(organisms []Organism) {
	for _, o := range organisms {
		o.PrepareFitness()
	}
}

func sortOrganisms(organisms []Organism) {
	prepareAll(organisms)
	slices.SortStableFunc(organisms, func(a, b Organism) int {
		return cmp.Compare(a.Fitness(), b.Fitness())
	})
}

func fitnesses(organisms []Organism) []float64 {
	prepareAll(organisms)
	f := make([]float64, len(organisms))
	for i, o := range organisms {
		f[i] = o.Fitness()
	}
	return f
}

// Gen runs one generation: inject, sort, breed, add elites, score, add
// mutants and cull to nfittest. Zero arguments fall back to ChildCull and
// ChildCount.
func (p *Population) Gen(nfittest, nchildren int) error {
	if nfittest <= 0 {
		nfittest = p.Config.ChildCull
	}
	if nchildren <= 0 {
		nchildren = p.Config.ChildCount
	}
	p.reporters.StartGeneration(p.Generation)

	for range p.Config.NumNewOrganisms {
		p.organisms = append(p.organisms, p.factory())
		p.sorted = false
	}
	p.Sort()

	if len(p.organisms) < 2 {
		return fmt.Errorf("generation %d: %w (have %d)", p.Generation, ErrTooFewAdults, len(p.organisms))
	}

	children, err := p.breed(nchildren)
	if err != nil {
		return fmt.Errorf("generation %d: %w", p.Generation, err)
	}
	if p.Config.Incest > 0 {
		children = append(children, p.organisms[:min(p.Config.Incest, len(p.organisms))]...)
	}
	sortOrganisms(children)

	if !p.Config.MutateAfterMating {
		mutants, err := p.mutants(children)
		if err != nil {
			return fmt.Errorf("generation %d: %w", p.Generation, err)
		}
		children = append(children, mutants...)
		sortOrganisms(children)
	}

	if len(children) > nfittest {
		clear(children[nfittest:])
		children = children[:nfittest]
	}
	p.organisms = children
	p.sorted = true
	p.Generation++

	p.reporters.EndGeneration(p.Generation, p.Stats(), p)
	return nil
}
