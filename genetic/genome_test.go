package genetic

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumFitness(p Phenotype) float64 {
	return p.Float("x") + p.Float("y")
}

func newTestSpecies(t *testing.T, seed int64) *Species {
	t.Helper()
	genome, err := NewGenome(
		NewSlot("x", FloatSpec),
		NewSlot("y", FloatSpec),
		NewSlot("n", IntSpec),
	)
	require.NoError(t, err)
	s := NewSpecies("test", genome, sumFitness)
	s.Rand = rand.New(rand.NewSource(seed))
	return s
}

func TestNewGenomeErrors(t *testing.T) {
	_, err := NewGenome()
	assert.Error(t, err)

	_, err = NewGenome(NewSlot("x", FloatSpec), NewSlot("x", IntSpec))
	assert.ErrorContains(t, err, "declared twice")

	_, err = NewGenome(Slot{Name: "x"})
	assert.ErrorContains(t, err, "no descriptor")

	bad := FloatSpec
	bad.Min = 5
	_, err = NewGenome(NewSlot("x", bad))
	assert.Error(t, err)

	assert.Panics(t, func() { MustGenome() })
}

func TestGenomeOrdering(t *testing.T) {
	g := MustGenome(NewSlot("zeta", FloatSpec), NewSlot("alpha", IntSpec), NewSlot("mid", CharSpec))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, g.Names())
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, g.SortedNames())
	i, ok := g.Index("mid")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = g.Index("missing")
	assert.False(t, ok)
}

func TestNewOrganismFrom(t *testing.T) {
	s := newTestSpecies(t, 1)
	x, err := NewGeneValue(s.Genome.Slot(0).Spec, 0.5)
	require.NoError(t, err)

	o, err := s.NewOrganismFrom(map[string]any{"x": x})
	require.NoError(t, err)
	assert.Equal(t, 0.5, o.Float("x"))
	g, _ := o.Gene("x")
	assert.NotSame(t, x, g, "constructor must copy genes")

	_, err = s.NewOrganismFrom(map[string]any{"nope": x})
	assert.ErrorIs(t, err, ErrUnknownGene)

	_, err = s.NewOrganismFrom(map[string]any{"n": x})
	assert.ErrorIs(t, err, ErrGeneType)

	_, err = s.NewOrganismFrom(map[string]any{"x": 0.5})
	assert.ErrorIs(t, err, ErrGeneType)

	o, err = s.NewOrganismFrom(map[string]any{"n": IntSpec})
	require.NoError(t, err)
	assert.IsType(t, 0, o.Int("n"))
}

func TestOrganismAccessors(t *testing.T) {
	s := newTestSpecies(t, 2)
	o := s.NewOrganism()

	_, err := o.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownGene)
	assert.Panics(t, func() { o.Char("x") })
	assert.Panics(t, func() { o.Float("missing") })

	phen := o.Phenotype()
	assert.Len(t, phen, 3)
	assert.Equal(t, o.Float("x"), phen["x"])
	assert.InDelta(t, o.Float("x")+o.Float("y"), o.Fitness(), 1e-12)
}

func TestOrganismMutateLeavesParent(t *testing.T) {
	s := newTestSpecies(t, 3)
	s.MutateOneOnly = true
	o := s.NewOrganism()
	before := o.Phenotype()
	fit := o.Fitness()

	m, err := o.Mutate()
	require.NoError(t, err)
	assert.Equal(t, before, o.Phenotype())
	_, known := m.(*GeneOrganism).KnownFitness()
	assert.False(t, known, "mutant must not inherit the parent's fitness")
	assert.Equal(t, fit, o.Fitness())
}

func TestOrganismCopyKeepsFitness(t *testing.T) {
	s := newTestSpecies(t, 4)
	o := s.NewOrganism()
	fit := o.Fitness()

	c := o.Copy().(*GeneOrganism)
	v, known := c.KnownFitness()
	assert.True(t, known)
	assert.Equal(t, fit, v)
	assert.Equal(t, o.Phenotype(), c.Phenotype())

	g, _ := c.Gene("x")
	og, _ := o.Gene("x")
	assert.NotSame(t, og, g)
}

func TestUniformCrossover(t *testing.T) {
	s := newTestSpecies(t, 5)
	a := s.NewOrganism()
	b := s.NewOrganism()

	c1, c2, err := a.Mate(b)
	require.NoError(t, err)
	for _, name := range s.Genome.Names() {
		va, _ := a.Get(name)
		vb, _ := b.Get(name)
		v1, _ := c1.(*GeneOrganism).Get(name)
		v2, _ := c2.(*GeneOrganism).Get(name)
		assert.ElementsMatch(t, []any{va, vb}, []any{v1, v2}, name)
	}
	ga, _ := a.Gene("x")
	g1, _ := c1.(*GeneOrganism).Gene("x")
	g2, _ := c2.(*GeneOrganism).Gene("x")
	assert.NotSame(t, ga, g1)
	assert.NotSame(t, ga, g2)
}

func TestGenomeSplitCrossover(t *testing.T) {
	genome := MustGenome(
		NewSlot("a", IntSpec), NewSlot("b", IntSpec), NewSlot("c", IntSpec),
		NewSlot("d", IntSpec), NewSlot("e", IntSpec),
	)
	s := NewSpecies("split", genome, func(Phenotype) float64 { return 0 })
	s.Crossover = GenomeSplitCrossover
	s.Intersections = 1
	s.Rand = rand.New(rand.NewSource(6))

	zero := IntSpec
	zero.Value = 0
	one := IntSpec
	one.Value = 1
	mk := func(spec GeneSpec) *GeneOrganism {
		genes := map[string]any{}
		for _, n := range genome.Names() {
			genes[n] = spec
		}
		o, err := s.NewOrganismFrom(genes)
		require.NoError(t, err)
		return o
	}
	p0, p1 := mk(zero), mk(one)

	for range 20 {
		c1, c2, err := p0.Mate(p1)
		require.NoError(t, err)
		var seq1, seq2 []int
		for _, n := range genome.SortedNames() {
			seq1 = append(seq1, c1.(*GeneOrganism).Int(n))
			seq2 = append(seq2, c2.(*GeneOrganism).Int(n))
		}
		// One cut: each child is a prefix of one parent and a suffix of the other.
		switches := 0
		for i := 1; i < len(seq1); i++ {
			if seq1[i] != seq1[i-1] {
				switches++
			}
			assert.Equal(t, 1, seq1[i]+seq2[i])
		}
		assert.LessOrEqual(t, switches, 1)
	}
}

func TestMateSpeciesMismatch(t *testing.T) {
	a := newTestSpecies(t, 7).NewOrganism()
	b := newTestSpecies(t, 8).NewOrganism()
	_, _, err := a.Mate(b)
	assert.ErrorIs(t, err, ErrSpeciesMismatch)

	_, _, err = a.Mate(a.species.NewMendel())
	assert.ErrorIs(t, err, ErrSpeciesMismatch)
}

func TestMissingFitnessPanics(t *testing.T) {
	s := newTestSpecies(t, 9)
	s.Fitness = nil
	assert.ErrorIs(t, s.Validate(), ErrNotImplemented)
	o := s.NewOrganism()
	assert.Panics(t, func() { o.Fitness() })
}

func TestDuel(t *testing.T) {
	s := newTestSpecies(t, 10)
	lo, err := s.NewOrganismFrom(map[string]any{"x": fixed(t, FloatSpec, -1.0), "y": fixed(t, FloatSpec, -1.0)})
	require.NoError(t, err)
	hi, err := s.NewOrganismFrom(map[string]any{"x": fixed(t, FloatSpec, 1.0), "y": fixed(t, FloatSpec, 1.0)})
	require.NoError(t, err)
	assert.Equal(t, -1, Duel(lo, hi))
	assert.Equal(t, 1, Duel(hi, lo))
	assert.Equal(t, 0, Duel(lo, lo.Copy()))
}

func TestDumpGeneOrganism(t *testing.T) {
	s := newTestSpecies(t, 11)
	var buf bytes.Buffer
	require.NoError(t, s.NewOrganism().Dump(&buf))
	assert.Contains(t, buf.String(), "Organism test:")
	assert.Contains(t, buf.String(), "gene 'n' int")
}

func fixed(t *testing.T, spec GeneSpec, v any) Gene {
	t.Helper()
	g, err := NewGeneValue(&spec, v)
	require.NoError(t, err)
	return g
}
