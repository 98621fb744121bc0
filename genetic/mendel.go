package genetic

import (
	"fmt"
	"io"
)

// GenePair holds the two alleles of a diploid slot. Both genes share the
// slot's descriptor kind.
type GenePair [2]Gene

func (p GenePair) copy() GenePair {
	return GenePair{p[0].Copy(), p[1].Copy()}
}

// MendelOrganism is a diploid organism. Its phenotype for each slot is the
// combination of the two genes of the pair; it reproduces through gametes.
type MendelOrganism struct {
	FitnessCache
	species *Species
	pairs   []GenePair
}

// NewMendel creates a diploid organism with two random genes per slot.
func (s *Species) NewMendel() *MendelOrganism {
	o := &MendelOrganism{species: s, pairs: make([]GenePair, s.Genome.Len())}
	for i, slot := range s.Genome.slots {
		o.pairs[i] = GenePair{newGene(slot.Spec, s.rng()), newGene(slot.Spec, s.rng())}
	}
	return o
}

// NewMendelFrom creates a diploid organism from explicit pairs. Values may
// be a GenePair, a []Gene of length two, or a GeneSpec / *GeneSpec from
// which two random genes are drawn. Slots not named are filled randomly.
func (s *Species) NewMendelFrom(genes map[string]any) (*MendelOrganism, error) {
	if err := s.checkNames(genes); err != nil {
		return nil, err
	}
	o := &MendelOrganism{species: s, pairs: make([]GenePair, s.Genome.Len())}
	for i, slot := range s.Genome.slots {
		v, ok := genes[slot.Name]
		if !ok {
			o.pairs[i] = GenePair{newGene(slot.Spec, s.rng()), newGene(slot.Spec, s.rng())}
			continue
		}
		pair, err := s.pairFor(i, v)
		if err != nil {
			return nil, err
		}
		o.pairs[i] = pair
	}
	return o, nil
}

func (s *Species) pairFor(i int, v any) (GenePair, error) {
	var genes []any
	switch t := v.(type) {
	case GenePair:
		genes = []any{t[0], t[1]}
	case []Gene:
		if len(t) != 2 {
			return GenePair{}, fmt.Errorf("gene '%s': %w, got %d", s.Genome.slots[i].Name, ErrGenePairArity, len(t))
		}
		genes = []any{t[0], t[1]}
	case *GeneSpec, GeneSpec:
		genes = []any{t, t}
	default:
		return GenePair{}, fmt.Errorf("gene '%s': %w: %T is not a gene pair", s.Genome.slots[i].Name, ErrGeneType, v)
	}
	var pair GenePair
	for j, g := range genes {
		if g == nil {
			return GenePair{}, fmt.Errorf("gene '%s': %w: nil gene in pair", s.Genome.slots[i].Name, ErrGeneType)
		}
		gene, err := s.geneFor(i, g)
		if err != nil {
			return GenePair{}, err
		}
		pair[j] = gene
	}
	return pair, nil
}

func (o *MendelOrganism) Species() *Species { return o.species }

// Pair returns the named gene pair. Callers must not mutate it.
func (o *MendelOrganism) Pair(name string) (GenePair, bool) {
	i, ok := o.species.Genome.index[name]
	if !ok {
		return GenePair{}, false
	}
	return o.pairs[i], true
}

// Get returns the phenotype of the named pair: the default combination of
// its two genes.
func (o *MendelOrganism) Get(name string) (any, error) {
	i, ok := o.species.Genome.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownGene, name)
	}
	v, err := o.pairs[i][0].Combine(o.pairs[i][1], o.species.rng())
	if err != nil {
		return nil, fmt.Errorf("gene '%s': %w", name, err)
	}
	return v, nil
}

func (o *MendelOrganism) Float(name string) float64      { return floatOf(o, name) }
func (o *MendelOrganism) Int(name string) int            { return intOf(o, name) }
func (o *MendelOrganism) Char(name string) byte          { return charOf(o, name) }
func (o *MendelOrganism) Complex(name string) complex128 { return complexOf(o, name) }
func (o *MendelOrganism) Bit(name string) uint8          { return bitOf(o, name) }
func (o *MendelOrganism) Alleles(name string) []string   { return allelesOf(o, name) }

// Phenotype combines every pair. Pairs whose kind has no combination
// policy are reported as the error.
func (o *MendelOrganism) Phenotype() (map[string]any, error) {
	p := make(map[string]any, len(o.pairs))
	for _, slot := range o.species.Genome.slots {
		v, err := o.Get(slot.Name)
		if err != nil {
			return nil, err
		}
		p[slot.Name] = v
	}
	return p, nil
}

func (o *MendelOrganism) Fitness() float64 {
	return o.AwaitFitness(o.species.Evaluator, o.score)
}

func (o *MendelOrganism) PrepareFitness() {
	o.SubmitFitness(o.species.Evaluator, o.score)
}

func (o *MendelOrganism) score() float64 { return o.species.evaluate(o) }

// Split produces two gametes; for each pair a fair coin decides which
// allele goes to which gamete. The gametes share this organism's genes and
// are meant to be consumed immediately by Conceive.
func (o *MendelOrganism) Split() (*Gamete, *Gamete) {
	rng := o.species.rng()
	g1 := &Gamete{species: o.species, genes: make([]Gene, len(o.pairs))}
	g2 := &Gamete{species: o.species, genes: make([]Gene, len(o.pairs))}
	for i, pair := range o.pairs {
		if rng.Intn(2) == 1 {
			g1.genes[i], g2.genes[i] = pair[0], pair[1]
		} else {
			g1.genes[i], g2.genes[i] = pair[1], pair[0]
		}
	}
	return g1, g2
}

// Mate splits both parents and crosses the gametes: child one is our first
// gamete with the partner's second, child two the reverse.
func (o *MendelOrganism) Mate(partner Organism) (Organism, Organism, error) {
	p, ok := partner.(*MendelOrganism)
	if !ok || p.species.Genome != o.species.Genome {
		return nil, nil, fmt.Errorf("mate %T with %T: %w", o, partner, ErrSpeciesMismatch)
	}
	our1, our2 := o.Split()
	their1, their2 := p.Split()
	child1, err := our1.Conceive(their2)
	if err != nil {
		return nil, nil, err
	}
	child2, err := our2.Conceive(their1)
	if err != nil {
		return nil, nil, err
	}
	return child1, child2, nil
}

// Mutate returns a mutated deep copy. With MutateOneOnly both genes of one
// random pair are mutated unconditionally.
func (o *MendelOrganism) Mutate() (Organism, error) {
	mutant := o.clone()
	rng := o.species.rng()
	if o.species.MutateOneOnly {
		pair := mutant.pairs[rng.Intn(len(mutant.pairs))]
		pair[0].Mutate(rng)
		pair[1].Mutate(rng)
	} else {
		for _, pair := range mutant.pairs {
			pair[0].MaybeMutate(rng)
			pair[1].MaybeMutate(rng)
		}
	}
	return mutant, nil
}

func (o *MendelOrganism) Copy() Organism {
	c := o.clone()
	if v, ok := o.KnownFitness(); ok {
		c.SeedFitness(v)
	}
	return c
}

func (o *MendelOrganism) clone() *MendelOrganism {
	c := &MendelOrganism{species: o.species, pairs: make([]GenePair, len(o.pairs))}
	for i, pair := range o.pairs {
		c.pairs[i] = pair.copy()
	}
	return c
}

// Dump writes the genotype and phenotype of every pair.
func (o *MendelOrganism) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Organism %s:\n", o.species.Name); err != nil {
		return err
	}
	for i, slot := range o.species.Genome.slots {
		pair := o.pairs[i]
		phen, err := o.Get(slot.Name)
		if err != nil {
			phen = err.Error()
		}
		_, err = fmt.Fprintf(w, "  gene '%s' %s (mutProb %v): %v + %v => %v\n",
			slot.Name, slot.Spec.Kind, slot.Spec.MutProb, pair[0].Value(), pair[1].Value(), phen)
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *MendelOrganism) String() string {
	return fmt.Sprintf("<%s fitness=%s %v>", o.species.Name, fitnessLabel(&o.FitnessCache), o.pairs)
}
