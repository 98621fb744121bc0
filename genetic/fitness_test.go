package genetic

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncEvaluatorIsLazy(t *testing.T) {
	var calls atomic.Int32
	f := SyncEvaluator{}.Submit(func() float64 {
		calls.Add(1)
		return 2.5
	})
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 2.5, f.Await())
	assert.Equal(t, 2.5, f.Await())
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoolEvaluatorRunsConcurrently(t *testing.T) {
	ev := NewPoolEvaluator(4)
	defer ev.Close()

	var running, peak atomic.Int32
	futures := make([]Future, 8)
	for i := range futures {
		futures[i] = ev.Submit(func() float64 {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return float64(i)
		})
	}
	for i, f := range futures {
		assert.Equal(t, float64(i), f.Await())
	}
	assert.Greater(t, peak.Load(), int32(1))
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestPoolEvaluatorPanicSurfacesOnAwait(t *testing.T) {
	ev := NewPoolEvaluator(1)
	defer ev.Close()
	f := ev.Submit(func() float64 { panic("boom") })
	assert.PanicsWithValue(t, "fitness evaluation panicked: boom", func() { f.Await() })
}

func TestFitnessCacheComputesOnce(t *testing.T) {
	ev := NewPoolEvaluator(0)
	defer ev.Close()

	var c FitnessCache
	var calls atomic.Int32
	fn := func() float64 {
		calls.Add(1)
		return 7
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.SubmitFitness(ev, fn)
			assert.Equal(t, 7.0, c.AwaitFitness(ev, fn))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	v, ok := c.KnownFitness()
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	c.SeedFitness(3)
	assert.Equal(t, 3.0, c.AwaitFitness(nil, fn))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPopulationWithPoolEvaluator(t *testing.T) {
	s := eyeSpecies(t, 31)
	s.Rand = NewLockedRand(31)
	ev := NewPoolEvaluator(8)
	defer ev.Close()
	s.Evaluator = ev

	p, err := NewPopulation(smallConfig(), s.MendelFactory(), WithRand(rand.New(rand.NewSource(32))))
	require.NoError(t, err)
	for range 5 {
		require.NoError(t, p.Gen(0, 0))
	}
	assert.Equal(t, smallConfig().ChildCull, p.Len())
	for _, o := range p.Organisms() {
		_, known := o.(*MendelOrganism).KnownFitness()
		assert.True(t, known)
	}
}

func TestLiteralSpeciesWithoutRandUnderPool(t *testing.T) {
	height := FloatSpec
	height.Combine = CombineRandRange
	ev := NewPoolEvaluator(8)
	defer ev.Close()
	s := &Species{
		Name:          "literal",
		Genome:        MustGenome(NewSlot("height", height)),
		Fitness:       func(p Phenotype) float64 { return p.Float("height") },
		CrossoverRate: 0.5,
		Evaluator:     ev,
	}
	require.NoError(t, s.Validate())

	p, err := NewPopulation(smallConfig(), s.MendelFactory(), WithRand(rand.New(rand.NewSource(33))))
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, p.Gen(0, 0))
	}
	assert.Nil(t, s.Rand, "the shared source is used without assigning the field")
	for _, o := range p.Organisms() {
		v := o.Fitness()
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
