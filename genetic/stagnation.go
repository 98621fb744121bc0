package genetic

import (
	"fmt"
	"math"
)

// StagnationConfig controls when a run is considered stuck.
type StagnationConfig struct {
	FitnessFunc   string `ini:"fitness_func"`   // Statistic over member fitness: min, max, mean, median or stdev
	MaxStagnation int    `ini:"max_stagnation"` // Generations without improvement before Stagnant reports true
}

// Stagnation tracks a population fitness statistic across generations and
// counts how long it has gone without improving. It is a Reporter, so it can
// be attached to a population with WithReporter.
type Stagnation struct {
	Config       StagnationConfig
	History      []float64
	LastImproved int

	statFunc func([]float64) float64
	best     float64
	current  int
}

// NewStagnation creates a tracker. An empty FitnessFunc means "min", the
// fitness of the best member.
func NewStagnation(config StagnationConfig) (*Stagnation, error) {
	if config.FitnessFunc == "" {
		config.FitnessFunc = "min"
	}
	fn, ok := StatFunctions[config.FitnessFunc]
	if !ok {
		return nil, fmt.Errorf("invalid fitness_func in stagnation config: %s", config.FitnessFunc)
	}
	if config.MaxStagnation < 0 {
		return nil, fmt.Errorf("max_stagnation must not be negative, got %d", config.MaxStagnation)
	}
	return &Stagnation{Config: config, statFunc: fn, best: math.Inf(1)}, nil
}

// Update records the fitness values of one generation. It returns true when
// the statistic improved (decreased) on the best seen so far.
func (s *Stagnation) Update(generation int, fitnesses []float64) bool {
	v := s.statFunc(fitnesses)
	s.History = append(s.History, v)
	s.current = generation
	if v < s.best {
		s.best = v
		s.LastImproved = generation
		return true
	}
	return false
}

// Since returns the number of generations since the last improvement.
func (s *Stagnation) Since() int {
	return s.current - s.LastImproved
}

// Stagnant reports whether MaxStagnation generations have passed without
// improvement. A zero MaxStagnation never stagnates.
func (s *Stagnation) Stagnant() bool {
	return s.Config.MaxStagnation > 0 && s.Since() >= s.Config.MaxStagnation
}

// Reset forgets the history, e.g. after a driver restarts the population.
func (s *Stagnation) Reset(generation int) {
	s.History = nil
	s.best = math.Inf(1)
	s.LastImproved = generation
	s.current = generation
}

func (s *Stagnation) StartGeneration(int) {}

func (s *Stagnation) EndGeneration(generation int, _ Stats, p *Population) {
	s.Update(generation, fitnesses(p.organisms))
}
