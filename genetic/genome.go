package genetic

import (
	"fmt"
	"io"
	"math/rand"
	"slices"
	"sort"
	"time"
)

// Slot is one named gene position of a genome.
type Slot struct {
	Name string
	Spec *GeneSpec
}

// NewSlot binds a copy of spec to name, so presets can be passed by value.
func NewSlot(name string, spec GeneSpec) Slot {
	return Slot{Name: name, Spec: &spec}
}

// Genome is the fixed, ordered gene schema shared by every organism of a
// species. It is immutable after construction.
type Genome struct {
	slots  []Slot
	index  map[string]int
	sorted []int // slot indices ordered by name, used for genome-split crossover
}

// NewGenome validates every slot and builds the name index.
func NewGenome(slots ...Slot) (*Genome, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("genome has no genes")
	}
	g := &Genome{
		slots: slices.Clone(slots),
		index: make(map[string]int, len(slots)),
	}
	for i, s := range g.slots {
		if s.Name == "" {
			return nil, fmt.Errorf("gene %d has no name", i)
		}
		if s.Spec == nil {
			return nil, fmt.Errorf("gene '%s' has no descriptor", s.Name)
		}
		if _, dup := g.index[s.Name]; dup {
			return nil, fmt.Errorf("gene '%s' declared twice", s.Name)
		}
		if err := s.Spec.Validate(); err != nil {
			return nil, fmt.Errorf("gene '%s': %w", s.Name, err)
		}
		g.index[s.Name] = i
		g.sorted = append(g.sorted, i)
	}
	sort.Slice(g.sorted, func(a, b int) bool {
		return g.slots[g.sorted[a]].Name < g.slots[g.sorted[b]].Name
	})
	return g, nil
}

// MustGenome is like NewGenome but panics on an invalid schema.
func MustGenome(slots ...Slot) *Genome {
	g, err := NewGenome(slots...)
	if err != nil {
		panic(fmt.Sprintf("invalid genome: %v", err))
	}
	return g
}

func (g *Genome) Len() int       { return len(g.slots) }
func (g *Genome) Slots() []Slot  { return slices.Clone(g.slots) }
func (g *Genome) Slot(i int) Slot { return g.slots[i] }

// Index returns the position of the named gene.
func (g *Genome) Index(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// Names returns gene names in declaration order.
func (g *Genome) Names() []string {
	names := make([]string, len(g.slots))
	for i, s := range g.slots {
		names[i] = s.Name
	}
	return names
}

// SortedNames returns gene names in lexical order.
func (g *Genome) SortedNames() []string {
	names := make([]string, len(g.sorted))
	for i, idx := range g.sorted {
		names[i] = g.slots[idx].Name
	}
	return names
}

// CrossoverMode selects how haploid organisms recombine.
type CrossoverMode int

const (
	// UniformCrossover flips a weighted coin per gene.
	UniformCrossover CrossoverMode = iota
	// GenomeSplitCrossover swaps contiguous blocks of the name-sorted genome
	// between random intersection points, keeping neighbouring genes linked.
	GenomeSplitCrossover
)

// Species binds a genome to a problem definition. All organisms created
// from a species share it; its fields must not change while a population
// built on it is evolving.
type Species struct {
	Name    string
	Genome  *Genome
	Fitness func(p Phenotype) float64

	// MutateOneOnly mutates exactly one randomly chosen gene (or pair)
	// instead of giving every gene a MaybeMutate chance.
	MutateOneOnly bool
	// CrossoverRate is the probability that child one receives this
	// organism's gene under uniform crossover.
	CrossoverRate float64
	Crossover     CrossoverMode
	// Intersections is the number of random split points drawn for
	// genome-split crossover. Duplicates collapse.
	Intersections int

	Evaluator Evaluator
	// Rand drives every random choice of the species. Diploid phenotypes
	// draw from it inside fitness functions, so with a PoolEvaluator it must
	// be safe for concurrent use, as NewLockedRand is. Nil means a shared
	// locked source.
	Rand *rand.Rand
}

// NewSpecies creates a species with default reproduction parameters and a
// time-seeded random source.
func NewSpecies(name string, genome *Genome, fitness func(Phenotype) float64) *Species {
	return &Species{
		Name:          name,
		Genome:        genome,
		Fitness:       fitness,
		CrossoverRate: 0.5,
		Intersections: 2,
		Evaluator:     SyncEvaluator{},
		Rand:          NewLockedRand(time.Now().UnixNano()),
	}
}

// Validate checks that the species can produce and score organisms.
func (s *Species) Validate() error {
	if s.Genome == nil {
		return fmt.Errorf("species '%s': no genome", s.Name)
	}
	if s.Fitness == nil {
		return fmt.Errorf("species '%s': fitness: %w", s.Name, ErrNotImplemented)
	}
	if s.CrossoverRate < 0 || s.CrossoverRate > 1 {
		return fmt.Errorf("species '%s': crossover rate %v must be between 0 and 1", s.Name, s.CrossoverRate)
	}
	if s.Crossover == GenomeSplitCrossover && s.Intersections < 1 {
		return fmt.Errorf("species '%s': genome split needs at least one intersection", s.Name)
	}
	return nil
}

// defaultRand serves species whose Rand is nil. rng never assigns the field.
var defaultRand = NewLockedRand(time.Now().UnixNano())

func (s *Species) rng() *rand.Rand {
	if s.Rand == nil {
		return defaultRand
	}
	return s.Rand
}

func (s *Species) evaluate(p Phenotype) float64 {
	if s.Fitness == nil {
		panic(fmt.Sprintf("species '%s': fitness: %v", s.Name, ErrNotImplemented))
	}
	return s.Fitness(p)
}

// geneFor turns a constructor argument into a fresh gene for slot i.
func (s *Species) geneFor(i int, v any) (Gene, error) {
	slot := s.Genome.slots[i]
	switch t := v.(type) {
	case Gene:
		if t == nil || t.Spec().Kind != slot.Spec.Kind {
			return nil, fmt.Errorf("gene '%s': %w: want %s, got %v", slot.Name, ErrGeneType, slot.Spec.Kind, v)
		}
		return t.Copy(), nil
	case *GeneSpec:
		return s.geneFromSpec(slot, t)
	case GeneSpec:
		return s.geneFromSpec(slot, &t)
	}
	return nil, fmt.Errorf("gene '%s': %w: %T is neither a gene nor a gene descriptor", slot.Name, ErrGeneType, v)
}

func (s *Species) geneFromSpec(slot Slot, spec *GeneSpec) (Gene, error) {
	if spec.Kind != slot.Spec.Kind {
		return nil, fmt.Errorf("gene '%s': %w: want %s, got %s", slot.Name, ErrGeneType, slot.Spec.Kind, spec.Kind)
	}
	g, err := NewGene(spec, s.rng())
	if err != nil {
		return nil, fmt.Errorf("gene '%s': %w", slot.Name, err)
	}
	return g, nil
}

func (s *Species) checkNames(genes map[string]any) error {
	for name := range genes {
		if _, ok := s.Genome.index[name]; !ok {
			return fmt.Errorf("species '%s': %w: '%s'", s.Name, ErrUnknownGene, name)
		}
	}
	return nil
}

// Organism is a candidate solution. Organisms are immutable once born:
// Mate, Mutate and Copy always return new instances.
type Organism interface {
	// Fitness returns the memoized badness score; lower is better.
	Fitness() float64
	// PrepareFitness submits the fitness computation without waiting.
	PrepareFitness()
	Mate(partner Organism) (Organism, Organism, error)
	Mutate() (Organism, error)
	Copy() Organism
}

// Duel compares two organisms by fitness: -1 if a is fitter, 1 if b is
// fitter, 0 on a tie.
func Duel(a, b Organism) int {
	fa, fb := a.Fitness(), b.Fitness()
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

// GeneOrganism is a haploid organism holding one gene per genome slot.
type GeneOrganism struct {
	FitnessCache
	species *Species
	genes   []Gene
}

// NewOrganism creates an organism with every gene randomly initialized.
func (s *Species) NewOrganism() *GeneOrganism {
	o := &GeneOrganism{species: s, genes: make([]Gene, s.Genome.Len())}
	for i, slot := range s.Genome.slots {
		o.genes[i] = newGene(slot.Spec, s.rng())
	}
	return o
}

// NewOrganismFrom creates an organism from explicit genes. Values may be a
// Gene of the slot's kind, or a GeneSpec / *GeneSpec to instantiate.
// Slots not named are filled randomly.
func (s *Species) NewOrganismFrom(genes map[string]any) (*GeneOrganism, error) {
	if err := s.checkNames(genes); err != nil {
		return nil, err
	}
	o := &GeneOrganism{species: s, genes: make([]Gene, s.Genome.Len())}
	for i, slot := range s.Genome.slots {
		v, ok := genes[slot.Name]
		if !ok {
			o.genes[i] = newGene(slot.Spec, s.rng())
			continue
		}
		g, err := s.geneFor(i, v)
		if err != nil {
			return nil, err
		}
		o.genes[i] = g
	}
	return o, nil
}

func (o *GeneOrganism) Species() *Species { return o.species }

// Gene returns the named gene. Callers must not mutate it.
func (o *GeneOrganism) Gene(name string) (Gene, bool) {
	i, ok := o.species.Genome.index[name]
	if !ok {
		return nil, false
	}
	return o.genes[i], true
}

// Get returns the raw value of the named gene.
func (o *GeneOrganism) Get(name string) (any, error) {
	i, ok := o.species.Genome.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownGene, name)
	}
	return o.genes[i].Value(), nil
}

func (o *GeneOrganism) Float(name string) float64      { return floatOf(o, name) }
func (o *GeneOrganism) Int(name string) int            { return intOf(o, name) }
func (o *GeneOrganism) Char(name string) byte          { return charOf(o, name) }
func (o *GeneOrganism) Complex(name string) complex128 { return complexOf(o, name) }
func (o *GeneOrganism) Bit(name string) uint8          { return bitOf(o, name) }
func (o *GeneOrganism) Alleles(name string) []string   { return allelesOf(o, name) }

// Phenotype returns every gene's value keyed by name.
func (o *GeneOrganism) Phenotype() map[string]any {
	p := make(map[string]any, len(o.genes))
	for i, slot := range o.species.Genome.slots {
		p[slot.Name] = o.genes[i].Value()
	}
	return p
}

func (o *GeneOrganism) Fitness() float64 {
	return o.AwaitFitness(o.species.Evaluator, o.score)
}

func (o *GeneOrganism) PrepareFitness() {
	o.SubmitFitness(o.species.Evaluator, o.score)
}

func (o *GeneOrganism) score() float64 { return o.species.evaluate(o) }

// Mate produces two children by uniform or genome-split crossover,
// depending on the species.
func (o *GeneOrganism) Mate(partner Organism) (Organism, Organism, error) {
	p, ok := partner.(*GeneOrganism)
	if !ok || p.species.Genome != o.species.Genome {
		return nil, nil, fmt.Errorf("mate %T with %T: %w", o, partner, ErrSpeciesMismatch)
	}
	n := o.species.Genome.Len()
	child1 := &GeneOrganism{species: o.species, genes: make([]Gene, n)}
	child2 := &GeneOrganism{species: o.species, genes: make([]Gene, n)}
	rng := o.species.rng()

	if o.species.Crossover == GenomeSplitCrossover {
		cuts := make(map[int]bool, o.species.Intersections)
		for range o.species.Intersections {
			cuts[rng.Intn(n)] = true
		}
		a, b := o, p
		for pos, i := range o.species.Genome.sorted {
			if cuts[pos] {
				a, b = b, a
			}
			child1.genes[i] = a.genes[i].Copy()
			child2.genes[i] = b.genes[i].Copy()
		}
		return child1, child2, nil
	}

	for i := range n {
		if rng.Float64() < o.species.CrossoverRate {
			child1.genes[i], child2.genes[i] = o.genes[i].Copy(), p.genes[i].Copy()
		} else {
			child1.genes[i], child2.genes[i] = p.genes[i].Copy(), o.genes[i].Copy()
		}
	}
	return child1, child2, nil
}

// Mutate returns a mutated deep copy; the receiver is unchanged.
func (o *GeneOrganism) Mutate() (Organism, error) {
	mutant := o.clone()
	rng := o.species.rng()
	if o.species.MutateOneOnly {
		mutant.genes[rng.Intn(len(mutant.genes))].Mutate(rng)
	} else {
		for _, g := range mutant.genes {
			g.MaybeMutate(rng)
		}
	}
	return mutant, nil
}

// Copy returns a deep copy that keeps any already known fitness.
func (o *GeneOrganism) Copy() Organism {
	c := o.clone()
	if v, ok := o.KnownFitness(); ok {
		c.SeedFitness(v)
	}
	return c
}

func (o *GeneOrganism) clone() *GeneOrganism {
	c := &GeneOrganism{species: o.species, genes: make([]Gene, len(o.genes))}
	for i, g := range o.genes {
		c.genes[i] = g.Copy()
	}
	return c
}

// Dump writes a human-readable report of the genotype.
func (o *GeneOrganism) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Organism %s:\n", o.species.Name); err != nil {
		return err
	}
	for i, slot := range o.species.Genome.slots {
		g := o.genes[i]
		if _, err := fmt.Fprintf(w, "  gene '%s' %s (mutProb %v): %v\n", slot.Name, g.Spec().Kind, g.Spec().MutProb, g.Value()); err != nil {
			return err
		}
	}
	return nil
}

func (o *GeneOrganism) String() string {
	return fmt.Sprintf("<%s fitness=%s %v>", o.species.Name, fitnessLabel(&o.FitnessCache), o.genes)
}

func fitnessLabel(c *FitnessCache) string {
	if v, ok := c.KnownFitness(); ok {
		return fmt.Sprintf("%g", v)
	}
	return "?"
}
