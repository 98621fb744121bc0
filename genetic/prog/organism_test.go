package prog

import (
	"bytes"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/genetic-go/genetic"
)

func mustOrganism(t *testing.T, s *Species, root *Node) *ProgOrganism {
	t.Helper()
	o, err := s.NewOrganismFrom(root)
	require.NoError(t, err)
	return o
}

func call(name string, children ...*Node) *Node {
	return &Node{Kind: FuncNode, Name: name, Children: children}
}

func variable(name string) *Node { return &Node{Kind: VarNode, Name: name} }

func constant(v any) *Node { return &Node{Kind: ConstNode, Value: v} }

func TestCalcTyped(t *testing.T) {
	s := typedSpecies(t, 1)
	o := mustOrganism(t, s, call("iif",
		call("gt", variable("x"), constant(0.0)),
		call("mul", constant(2.0), variable("y")),
		call("sub", constant(0.0), variable("y"))))

	v, err := o.CalcFloat(map[string]any{"x": 1.0, "y": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
	v, err = o.CalcFloat(map[string]any{"x": -1.0, "y": 3.0})
	require.NoError(t, err)
	assert.Equal(t, -3.0, v)

	// Missing variables read as zero.
	v, err = o.CalcFloat(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestCalcReturnTypeError(t *testing.T) {
	liar := Func{Name: "liar", Args: []reflect.Type{Float}, Return: Float, Fn: func(a ...any) any { return true }}
	s, err := NewSpecies(Species{Name: "liar", Funcs: []Func{liar}, Consts: []any{1.0}, Type: Float})
	require.NoError(t, err)
	o := mustOrganism(t, s, call("liar", constant(1.0)))

	_, err = o.Calc(nil)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.Arg)
	assert.Equal(t, Bool, te.Got)
	assert.Contains(t, te.Error(), "returned bool instead of float64")
	assert.Contains(t, te.Tree, "liar")

	c, err := o.Compile()
	require.NoError(t, err)
	_, err = c.Run(nil)
	require.ErrorAs(t, err, &te)
}

func TestCalcUntyped(t *testing.T) {
	s := untypedSpecies(t, 2)
	o := mustOrganism(t, s, call("add", variable("x"), call("square", constant(3.0))))
	v, err := o.CalcFloat(map[string]any{"x": 1.5})
	require.NoError(t, err)
	assert.Equal(t, 10.5, v)
	assert.Nil(t, o.Tree().Type)
}

func TestMateSwapsCompatibleFragments(t *testing.T) {
	s := typedSpecies(t, 3)
	for range 50 {
		a, err := s.NewOrganism()
		require.NoError(t, err)
		b, err := s.NewOrganism()
		require.NoError(t, err)
		sa, sb := a.String(), b.String()

		c1, c2, err := a.Mate(b)
		require.NoError(t, err)
		assert.Equal(t, sa, a.String(), "parents are untouched")
		assert.Equal(t, sb, b.String())
		for _, c := range []genetic.Organism{c1, c2} {
			root := c.(*ProgOrganism).Tree()
			require.NoError(t, root.validate(root))
			require.Equal(t, Float, root.Type)
		}
		assert.Equal(t, a.Nodes()+b.Nodes(), c1.(*ProgOrganism).Nodes()+c2.(*ProgOrganism).Nodes())
	}
}

func TestMateFallsBackToCopies(t *testing.T) {
	toFloat := Func{Name: "toFloat", Args: []reflect.Type{Bool}, Return: Float, Fn: func(a ...any) any { return num(a[0]) }}
	neg := Arithmetic()[4]
	s, err := NewSpecies(Species{
		Name:   "fallback",
		Funcs:  []Func{toFloat, neg},
		Consts: []any{true, 1.0},
		Type:   Float,
		Rand:   rand.New(rand.NewSource(4)),
	})
	require.NoError(t, err)
	a := mustOrganism(t, s, call("toFloat", constant(true)))
	b := mustOrganism(t, s, call("neg", constant(1.0)))

	c1, c2, err := a.Mate(b)
	require.NoError(t, err)
	assert.Equal(t, "toFloat(true)", c1.(*ProgOrganism).String())
	assert.Equal(t, "neg(1)", c2.(*ProgOrganism).String())
	assert.NotSame(t, a.Tree(), c1.(*ProgOrganism).Tree())
}

func TestMateSpeciesMismatch(t *testing.T) {
	a, err := typedSpecies(t, 5).NewOrganism()
	require.NoError(t, err)
	b, err := typedSpecies(t, 6).NewOrganism()
	require.NoError(t, err)
	_, _, err = a.Mate(b)
	assert.ErrorIs(t, err, genetic.ErrSpeciesMismatch)
}

func TestMutateKeepsTypesAndParent(t *testing.T) {
	s := typedSpecies(t, 7)
	for range 100 {
		o, err := s.NewOrganism()
		require.NoError(t, err)
		before := o.String()
		m, err := o.Mutate()
		require.NoError(t, err)
		root := m.(*ProgOrganism).Tree()
		require.NoError(t, root.validate(root))
		require.Equal(t, Float, root.Type)
		require.Equal(t, before, o.String())
	}
}

func TestFitnessAndCopy(t *testing.T) {
	s := untypedSpecies(t, 8)
	s.Fitness = func(o *ProgOrganism) float64 {
		v, err := o.CalcFloat(map[string]any{"x": 2.0})
		if err != nil {
			return math.Inf(1)
		}
		return math.Abs(v - 4)
	}
	o := mustOrganism(t, s, call("mul", variable("x"), variable("x")))
	assert.Equal(t, 0.0, o.Fitness())

	c := o.Copy().(*ProgOrganism)
	v, ok := c.KnownFitness()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	assert.NotSame(t, o.Tree(), c.Tree())

	s.Fitness = nil
	fresh := mustOrganism(t, s, call("mul", variable("x"), variable("x")))
	assert.Panics(t, func() { fresh.Fitness() })
}

func TestDump(t *testing.T) {
	s := typedSpecies(t, 9)
	o := mustOrganism(t, s, call("add", variable("x"), constant(1.0)))
	var buf bytes.Buffer
	require.NoError(t, o.Dump(&buf))
	assert.Equal(t, "  add\n    {x}\n    {1}\n", buf.String())
}

func TestCompileMatchesCalc(t *testing.T) {
	for _, s := range []*Species{typedSpecies(t, 10), untypedSpecies(t, 11)} {
		for range 100 {
			o, err := s.NewOrganism()
			require.NoError(t, err)
			c, err := o.Compile()
			require.NoError(t, err)
			for _, x := range []float64{-2, 0, 0.5, 3} {
				vars := map[string]any{"x": x, "y": x * 2}
				want, err := o.CalcFloat(vars)
				require.NoError(t, err)
				got, err := c.RunFloat(vars)
				require.NoError(t, err)
				require.Equal(t, math.Float64bits(want), math.Float64bits(got), "%s at x=%v", o, x)
			}
		}
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := typedSpecies(t, 12)
	s.Fitness = func(o *ProgOrganism) float64 { return float64(o.Nodes()) }
	o, err := s.NewOrganism()
	require.NoError(t, err)
	o.Fitness()

	rec := o.Snapshot()
	back, err := s.Restore(rec)
	require.NoError(t, err)
	assert.Equal(t, o.String(), back.(*ProgOrganism).String())
	v, ok := back.(*ProgOrganism).KnownFitness()
	assert.True(t, ok)
	assert.Equal(t, float64(o.Nodes()), v)

	_, err = s.Restore(genetic.OrganismRecord{Kind: "gene"})
	assert.Error(t, err)
}

func TestProgPopulationEvolves(t *testing.T) {
	s := typedSpecies(t, 13)
	s.Fitness = func(o *ProgOrganism) float64 {
		c, err := o.Compile()
		if err != nil {
			return math.Inf(1)
		}
		var sum float64
		for x := -2.0; x <= 2; x++ {
			for y := -2.0; y <= 2; y++ {
				want := -y
				if x > 0 {
					want = 2 * y
				}
				got, err := c.RunFloat(map[string]any{"x": x, "y": y})
				if err != nil {
					return math.Inf(1)
				}
				sum += math.Abs(got - want)
			}
		}
		return sum
	}
	cfg := genetic.DefaultPopulationConfig()
	cfg.InitPopulation = 30
	pop, err := genetic.NewPopulation(cfg, s.Factory(), genetic.WithRand(rand.New(rand.NewSource(14))))
	require.NoError(t, err)

	start := pop.Best().Fitness()
	for range 10 {
		require.NoError(t, pop.Gen(0, 0))
	}
	assert.Equal(t, cfg.ChildCull, pop.Len())
	assert.LessOrEqual(t, pop.Best().Fitness(), start)
	for _, o := range pop.Organisms() {
		root := o.(*ProgOrganism).Tree()
		require.NoError(t, root.validate(root))
	}
}
