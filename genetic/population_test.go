package genetic

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() PopulationConfig {
	cfg := DefaultPopulationConfig()
	cfg.InitPopulation = 8
	cfg.ChildCull = 6
	cfg.ChildCount = 12
	cfg.Incest = 2
	return cfg
}

func newTestPopulation(t *testing.T, cfg PopulationConfig, seed int64) (*Population, *Species) {
	t.Helper()
	s := newTestSpecies(t, seed)
	p, err := NewPopulation(cfg, s.Factory(), WithRand(rand.New(rand.NewSource(seed+100))))
	require.NoError(t, err)
	return p, s
}

func fitnessesOf(p *Population) []float64 {
	f := make([]float64, p.Len())
	for i := range f {
		f[i] = p.At(i).Fitness()
	}
	return f
}

func TestPopulationConfigValidate(t *testing.T) {
	cfg := DefaultPopulationConfig()
	assert.NoError(t, cfg.Validate())
	cfg.Mutants = 2
	assert.Error(t, cfg.Validate())
	cfg = DefaultPopulationConfig()
	cfg.ChildCull = -1
	assert.Error(t, cfg.Validate())

	_, err := NewPopulation(DefaultPopulationConfig(), nil)
	assert.Error(t, err)
}

func TestPopulationSortedFittestFirst(t *testing.T) {
	p, _ := newTestPopulation(t, smallConfig(), 1)
	require.Equal(t, 8, p.Len())
	f := fitnessesOf(p)
	assert.True(t, sort.Float64sAreSorted(f))
	assert.Equal(t, f[0], p.Best().Fitness())

	stats := p.Stats()
	assert.Equal(t, 8, stats.Size)
	assert.Equal(t, f[0], stats.Best)
	assert.Equal(t, f[7], stats.Worst)
	assert.InDelta(t, Mean(f), p.Fitness(), 1e-12)
}

func TestPopulationAdd(t *testing.T) {
	p, s := newTestPopulation(t, smallConfig(), 2)
	other, err := NewPopulation(smallConfig(), s.Factory())
	require.NoError(t, err)

	require.NoError(t, p.Add(s.NewOrganism(), []Organism{s.NewOrganism(), s.NewOrganism()}))
	assert.Equal(t, 11, p.Len())
	require.NoError(t, p.Add(other, []any{s.NewOrganism(), []*Population{other}}))
	assert.Equal(t, 11+8+1+8, p.Len())

	err = p.Add(s.NewOrganism(), "not an organism")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, 28, p.Len(), "a failed Add adds nothing")

	assert.True(t, sort.Float64sAreSorted(fitnessesOf(p)))

	merged := p.Merge(other)
	assert.Equal(t, 36, merged.Len())
	assert.Equal(t, 28, p.Len())
	assert.Equal(t, p.RunID, merged.RunID)
}

func TestGenCullsAndKeepsElite(t *testing.T) {
	cfg := smallConfig()
	p, _ := newTestPopulation(t, cfg, 3)
	best := p.Best()

	require.NoError(t, p.Gen(0, 0))
	assert.Equal(t, 1, p.Generation)
	assert.Equal(t, cfg.ChildCull, p.Len())
	assert.True(t, sort.Float64sAreSorted(fitnessesOf(p)))
	assert.LessOrEqual(t, p.Best().Fitness(), best.Fitness(), "incest carries the elite over")

	require.NoError(t, p.Gen(4, 20))
	assert.Equal(t, 4, p.Len())
}

func TestGenSmallChildCount(t *testing.T) {
	cfg := smallConfig()
	cfg.Incest = 0
	p, _ := newTestPopulation(t, cfg, 4)
	require.NoError(t, p.Gen(10, 1))
	assert.Equal(t, 2, p.Len(), "one child requested still breeds one pair")
}

func TestGenWithoutMutateAfterMating(t *testing.T) {
	cfg := smallConfig()
	cfg.MutateAfterMating = false
	cfg.Mutants = 0.5
	cfg.Incest = 0
	cfg.ChildCull = 100
	p, _ := newTestPopulation(t, cfg, 5)
	require.NoError(t, p.Gen(0, 10))
	// 10 children plus mutants of the fittest half.
	assert.Equal(t, 15, p.Len())
}

func TestGenNewOrganismsInjected(t *testing.T) {
	cfg := smallConfig()
	cfg.InitPopulation = 1
	cfg.NumNewOrganisms = 1
	p, _ := newTestPopulation(t, cfg, 6)
	require.NoError(t, p.Gen(0, 0))
	assert.Equal(t, cfg.ChildCull, p.Len())
}

func TestGenTooFewAdults(t *testing.T) {
	cfg := smallConfig()
	cfg.InitPopulation = 1
	p, _ := newTestPopulation(t, cfg, 7)
	err := p.Gen(0, 0)
	assert.ErrorIs(t, err, ErrTooFewAdults)
	assert.Equal(t, 0, p.Generation)
}

func TestSelectIndexDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	const n, draws = 5, 250000
	counts := make([]int, n)
	for range draws {
		counts[selectIndex(rng, n)]++
	}
	for r := range n {
		want := float64(2*(n-1-r)+1) / float64(n*n)
		assert.InDelta(t, want, float64(counts[r])/draws, 0.01, "rank %d", r)
	}

	for range 1000 {
		i, j := selectParents(rng, 2)
		assert.NotEqual(t, i, j)
	}
}

type recordingReporter struct {
	starts []int
	ends   []int
	best   []float64
}

func (r *recordingReporter) StartGeneration(g int) { r.starts = append(r.starts, g) }

func (r *recordingReporter) EndGeneration(g int, stats Stats, _ *Population) {
	r.ends = append(r.ends, g)
	r.best = append(r.best, stats.Best)
}

func TestReportersAndStagnation(t *testing.T) {
	rec := &recordingReporter{}
	stag, err := NewStagnation(StagnationConfig{MaxStagnation: 1000})
	require.NoError(t, err)
	s := newTestSpecies(t, 9)
	p, err := NewPopulation(smallConfig(), s.Factory(),
		WithRand(rand.New(rand.NewSource(9))), WithReporter(rec), WithReporter(stag))
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, p.Gen(0, 0))
	}
	assert.Equal(t, []int{0, 1, 2}, rec.starts)
	assert.Equal(t, []int{1, 2, 3}, rec.ends)
	assert.Equal(t, rec.best, stag.History)
	assert.False(t, stag.Stagnant())
}

// hackthis: eight char genes evolve toward a target string.
func TestScenarioHackThis(t *testing.T) {
	const target = "hackthis"
	char := CharSpec
	char.MutProb = 0.25
	char.MutAmt = 5
	var slots []Slot
	for i := range len(target) {
		slots = append(slots, NewSlot(string(rune('a'+i)), char))
	}
	genome := MustGenome(slots...)
	s := NewSpecies("hackthis", genome, func(p Phenotype) float64 {
		sum := 0.0
		for i := range len(target) {
			d := float64(p.Char(string(rune('a'+i)))) - float64(target[i])
			sum += d * d
		}
		return sum
	})
	s.Rand = rand.New(rand.NewSource(42))

	p, err := NewPopulation(DefaultPopulationConfig(), s.Factory(), WithRand(rand.New(rand.NewSource(43))))
	require.NoError(t, err)

	prev := p.Best().Fitness()
	for gen := 0; gen < 1000 && prev > 0; gen++ {
		require.NoError(t, p.Gen(0, 0))
		cur := p.Best().Fitness()
		require.LessOrEqual(t, cur, prev, "best fitness regressed at generation %d", p.Generation)
		prev = cur
	}
	require.Less(t, prev, 1e-9)

	best := p.Best().(*GeneOrganism)
	var got []byte
	for i := range len(target) {
		got = append(got, best.Char(string(rune('a'+i))))
	}
	assert.Equal(t, target, string(got))
}

// quadratic: two float genes converge on the roots of 2x^2 - 16x + 30.
func TestScenarioQuadratic(t *testing.T) {
	quad := func(x float64) float64 { return 2*x*x - 16*x + 30 }
	spec := FloatSpec
	spec.Min, spec.Max = -100, 100
	spec.MutProb = 0.5
	spec.MutAmt = 0.02
	genome := MustGenome(NewSlot("x1", spec), NewSlot("x2", spec))
	s := NewSpecies("quadratic", genome, func(p Phenotype) float64 {
		x1, x2 := p.Float("x1"), p.Float("x2")
		return math.Abs(quad(x1)) + math.Abs(quad(x2)) + 1/math.Abs(x1-x2)
	})
	s.Rand = NewLockedRand(11)
	s.Evaluator = NewPoolEvaluator(4)
	defer s.Evaluator.(*PoolEvaluator).Close()

	cfg := DefaultPopulationConfig()
	p, err := NewPopulation(cfg, s.Factory(), WithRand(rand.New(rand.NewSource(12))))
	require.NoError(t, err)
	for gen := 0; gen < 3000 && p.Best().Fitness() >= 0.6; gen++ {
		require.NoError(t, p.Gen(0, 0))
	}
	require.Less(t, p.Best().Fitness(), 0.6)

	best := p.Best().(*GeneOrganism)
	roots := []float64{best.Float("x1"), best.Float("x2")}
	sort.Float64s(roots)
	assert.InDelta(t, 3, roots[0], 0.1)
	assert.InDelta(t, 5, roots[1], 0.1)
}
