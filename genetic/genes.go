package genetic

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// GeneKind defines the value domain of a gene.
type GeneKind int

const (
	FloatKind GeneKind = iota
	IntKind
	CharKind
	ComplexKind
	BitKind
	DiscreteKind
)

func (k GeneKind) String() string {
	switch k {
	case FloatKind:
		return "float"
	case IntKind:
		return "int"
	case CharKind:
		return "char"
	case ComplexKind:
		return "complex"
	case BitKind:
		return "bit"
	case DiscreteKind:
		return "discrete"
	}
	return fmt.Sprintf("GeneKind(%d)", int(k))
}

// CombinePolicy selects how the two genes of a pair produce one phenotype value.
type CombinePolicy int

const (
	// CombineDefault resolves to the kind's natural policy: mean for float and
	// complex, max for int and char, dominance for discrete. Bits have none.
	CombineDefault CombinePolicy = iota
	CombineMean
	CombineMax
	CombineExchange
	CombineAverage
	CombineRandRange
	CombineAnd
	CombineOr
	CombineXor
	CombineDominance
)

func (p CombinePolicy) String() string {
	names := [...]string{"default", "mean", "max", "exchange", "average", "randrange", "and", "or", "xor", "dominance"}
	if int(p) >= 0 && int(p) < len(names) {
		return names[p]
	}
	return fmt.Sprintf("CombinePolicy(%d)", int(p))
}

// MutationPolicy selects how Mutate perturbs a gene.
type MutationPolicy int

const (
	// MutateStep nudges the value: floats move toward one of the bounds,
	// ints and chars take a bounded integer step, complex values get noise.
	MutateStep MutationPolicy = iota
	// MutateRandom re-randomizes the value within the bounds.
	MutateRandom
)

// GeneSpec describes one gene slot of a genome. It is shared by every gene
// instance created from it and must not be modified once a genome uses it.
type GeneSpec struct {
	Tag      string // Config type tag, informational only.
	Kind     GeneKind
	Combine  CombinePolicy
	Mutation MutationPolicy

	Min        float64 // Lower bound for numeric and char genes
	Max        float64 // Upper bound for numeric and char genes
	MutProb    float64 // Probability used by MaybeMutate
	MutAmt     float64 // Step scale (real part for complex genes)
	MutAmtImag float64 // Imaginary step scale for complex genes

	Alleles    []string
	Dominant   string
	Codominant []string
	Recessive  string

	// Value, when non-nil, is used instead of a random value for new genes.
	Value any
}

// Preset descriptors matching the config type tags. Copy before changing.
var (
	FloatSpec         = GeneSpec{Tag: "float", Kind: FloatKind, Min: -1, Max: 1, MutProb: 0.01, MutAmt: 0.1}
	IntSpec           = GeneSpec{Tag: "int", Kind: IntKind, Min: math.MinInt32, Max: math.MaxInt32, MutProb: 0.01, MutAmt: 1}
	CharSpec          = GeneSpec{Tag: "char", Kind: CharKind, Min: 0, Max: 255, MutProb: 0.01, MutAmt: 1}
	PrintableCharSpec = GeneSpec{Tag: "printable_char", Kind: CharKind, Min: ' ', Max: 127, MutProb: 0.01, MutAmt: 1}
	ComplexSpec       = GeneSpec{Tag: "complex", Kind: ComplexKind, Min: -1, Max: 1, MutProb: 0.01, MutAmt: 0.1, MutAmtImag: 0.1}
	AndBitSpec        = GeneSpec{Tag: "bit_and", Kind: BitKind, Combine: CombineAnd, MutProb: 0.01}
	OrBitSpec         = GeneSpec{Tag: "bit_or", Kind: BitKind, Combine: CombineOr, MutProb: 0.01}
	XorBitSpec        = GeneSpec{Tag: "bit_xor", Kind: BitKind, Combine: CombineXor, MutProb: 0.01}
	DiscreteSpec      = GeneSpec{Tag: "discrete", Kind: DiscreteKind, MutProb: 0.01}
)

// policy returns the effective combination policy.
func (s *GeneSpec) policy() CombinePolicy {
	if s.Combine != CombineDefault {
		return s.Combine
	}
	switch s.Kind {
	case FloatKind, ComplexKind:
		return CombineMean
	case IntKind, CharKind:
		return CombineMax
	case DiscreteKind:
		return CombineDominance
	}
	return CombineDefault
}

// supports reports whether the kind has an implementation of policy p.
func (s *GeneSpec) supports(p CombinePolicy) bool {
	switch s.Kind {
	case FloatKind:
		return p == CombineMean || p == CombineMax || p == CombineExchange || p == CombineAverage || p == CombineRandRange
	case IntKind:
		return p == CombineMean || p == CombineMax || p == CombineExchange || p == CombineAverage || p == CombineRandRange
	case CharKind:
		return p == CombineMax || p == CombineExchange
	case ComplexKind:
		return p == CombineMean || p == CombineAverage || p == CombineExchange
	case BitKind:
		return p == CombineAnd || p == CombineOr || p == CombineXor || p == CombineExchange
	case DiscreteKind:
		return p == CombineDominance || p == CombineExchange
	}
	return false
}

// Validate checks the descriptor for internal consistency.
func (s *GeneSpec) Validate() error {
	switch s.Kind {
	case FloatKind, IntKind, CharKind, ComplexKind:
		if s.Min > s.Max {
			return fmt.Errorf("gene %s: randMin %v higher than randMax %v", s.Kind, s.Min, s.Max)
		}
		if (s.Kind == IntKind || s.Kind == CharKind) && (s.Min != math.Trunc(s.Min) || s.Max != math.Trunc(s.Max)) {
			return fmt.Errorf("gene %s: randMin %v and randMax %v must be whole numbers", s.Kind, s.Min, s.Max)
		}
		if s.Kind == CharKind && (s.Min < 0 || s.Max > 255) {
			return fmt.Errorf("gene %s: randMin %v, randMax %v outside the byte range 0-255", s.Kind, s.Min, s.Max)
		}
	case BitKind:
	case DiscreteKind:
		if len(s.Alleles) == 0 {
			return fmt.Errorf("gene %s: no alleles", s.Kind)
		}
	default:
		return fmt.Errorf("unknown gene kind %d", int(s.Kind))
	}
	if s.MutProb < 0 || s.MutProb > 1 {
		return fmt.Errorf("gene %s: mutProb %v must be between 0 and 1", s.Kind, s.MutProb)
	}
	if p := s.policy(); p != CombineDefault && !s.supports(p) {
		return fmt.Errorf("gene %s: combine policy %s: %w", s.Kind, p, ErrNotImplemented)
	}
	if s.Value != nil {
		if _, err := s.convert(s.Value); err != nil {
			return err
		}
	}
	return nil
}

// convert coerces v to the kind's native value type and checks its bounds.
func (s *GeneSpec) convert(v any) (any, error) {
	switch s.Kind {
	case FloatKind:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a float value", ErrGeneType, v)
		}
		if f < s.Min || f > s.Max {
			return nil, fmt.Errorf("value %v not within randMin %v, randMax %v", f, s.Min, s.Max)
		}
		return f, nil
	case IntKind:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("%w: %v is not an int value", ErrGeneType, v)
		}
		if f < s.Min || f > s.Max {
			return nil, fmt.Errorf("value %v not within randMin %v, randMax %v", f, s.Min, s.Max)
		}
		return int(f), nil
	case CharKind:
		var c float64
		switch t := v.(type) {
		case string:
			if len(t) != 1 {
				return nil, fmt.Errorf("%w: %q is not a single character", ErrGeneType, t)
			}
			c = float64(t[0])
		default:
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: %T is not a char value", ErrGeneType, v)
			}
			c = f
		}
		if c < s.Min || c > s.Max {
			return nil, fmt.Errorf("value %v not within randMin %v, randMax %v", c, s.Min, s.Max)
		}
		return byte(c), nil
	case ComplexKind:
		var z complex128
		switch t := v.(type) {
		case complex128:
			z = t
		case complex64:
			z = complex128(t)
		default:
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: %T is not a complex value", ErrGeneType, v)
			}
			z = complex(f, 0)
		}
		if real(z) < s.Min || real(z) > s.Max || imag(z) < s.Min || imag(z) > s.Max {
			return nil, fmt.Errorf("value %v not within randMin %v, randMax %v", z, s.Min, s.Max)
		}
		return z, nil
	case BitKind:
		switch t := v.(type) {
		case bool:
			if t {
				return uint8(1), nil
			}
			return uint8(0), nil
		default:
			f, ok := toFloat(v)
			if !ok || (f != 0 && f != 1) {
				return nil, fmt.Errorf("%w: %v is not a bit value", ErrGeneType, v)
			}
			return uint8(f), nil
		}
	case DiscreteKind:
		a, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an allele", ErrGeneType, v)
		}
		if !slices.Contains(s.Alleles, a) {
			return nil, fmt.Errorf("allele %q not one of %v", a, s.Alleles)
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown gene kind %d", int(s.Kind))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint8:
		return float64(t), true
	}
	return 0, false
}

// Gene is an evolvable value holder. Genes are never shared between
// organisms; reproduction and mutation always work on copies.
type Gene interface {
	Spec() *GeneSpec
	Value() any
	// RandomValue draws a legal value without changing the gene.
	RandomValue(rng *rand.Rand) any
	// Mutate perturbs the value in place.
	Mutate(rng *rand.Rand)
	// MaybeMutate calls Mutate with probability Spec().MutProb.
	MaybeMutate(rng *rand.Rand) bool
	// Combine produces the phenotype of the pair (g, other).
	Combine(other Gene, rng *rand.Rand) (any, error)
	Copy() Gene
	String() string
}

// NewGene creates a gene from spec, random unless spec.Value is set.
func NewGene(spec *GeneSpec, rng *rand.Rand) (Gene, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return newGene(spec, rng), nil
}

// NewGeneValue creates a gene holding an explicit value.
func NewGeneValue(spec *GeneSpec, value any) (Gene, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	v, err := spec.convert(value)
	if err != nil {
		return nil, err
	}
	return geneOf(spec, v), nil
}

// newGene assumes spec has already been validated.
func newGene(spec *GeneSpec, rng *rand.Rand) Gene {
	if spec.Value != nil {
		v, err := spec.convert(spec.Value)
		if err != nil {
			panic(fmt.Sprintf("invalid fixed gene value: %v", err))
		}
		return geneOf(spec, v)
	}
	g := geneOf(spec, nil)
	g.set(g.RandomValue(rng))
	return g
}

type settableGene interface {
	Gene
	set(v any)
}

func geneOf(spec *GeneSpec, v any) settableGene {
	var g settableGene
	switch spec.Kind {
	case FloatKind:
		g = &FloatGene{spec: spec}
	case IntKind:
		g = &IntGene{spec: spec}
	case CharKind:
		g = &CharGene{spec: spec}
	case ComplexKind:
		g = &ComplexGene{spec: spec}
	case BitKind:
		g = &BitGene{spec: spec}
	case DiscreteKind:
		g = &DiscreteGene{spec: spec}
	default:
		panic(fmt.Sprintf("unknown gene kind %d", int(spec.Kind)))
	}
	if v != nil {
		g.set(v)
	}
	return g
}

func maybeMutate(g Gene, rng *rand.Rand) bool {
	if rng.Float64() < g.Spec().MutProb {
		g.Mutate(rng)
		return true
	}
	return false
}

// checkPair validates that other can be combined with a gene of spec.
func checkPair(spec *GeneSpec, other Gene) (CombinePolicy, error) {
	if other == nil || other.Spec().Kind != spec.Kind {
		return 0, fmt.Errorf("%w: cannot pair %s gene with %v", ErrGeneType, spec.Kind, other)
	}
	p := spec.policy()
	if p == CombineDefault || !spec.supports(p) {
		return 0, fmt.Errorf("%s gene combine %s: %w", spec.Kind, p, ErrNotImplemented)
	}
	return p, nil
}

// --------------------------- FloatGene ---------------------------

// FloatGene holds a float64 bounded by [Min, Max].
type FloatGene struct {
	spec  *GeneSpec
	value float64
}

func (g *FloatGene) Spec() *GeneSpec { return g.spec }
func (g *FloatGene) Value() any      { return g.value }
func (g *FloatGene) Float() float64  { return g.value }
func (g *FloatGene) set(v any)       { g.value = v.(float64) }

func (g *FloatGene) RandomValue(rng *rand.Rand) any {
	return uniform(rng, g.spec.Min, g.spec.Max)
}

// Mutate moves the value a random fraction (scaled by MutAmt) of the way
// toward one of the bounds, picked with equal odds.
func (g *FloatGene) Mutate(rng *rand.Rand) {
	if g.spec.Mutation == MutateRandom {
		g.value = g.RandomValue(rng).(float64)
		return
	}
	if rng.Float64() < 0.5 {
		g.value -= uniform(rng, 0, g.spec.MutAmt*(g.value-g.spec.Min))
	} else {
		g.value += uniform(rng, 0, g.spec.MutAmt*(g.spec.Max-g.value))
	}
	g.value = clamp(g.value, g.spec.Min, g.spec.Max)
}

func (g *FloatGene) MaybeMutate(rng *rand.Rand) bool { return maybeMutate(g, rng) }

func (g *FloatGene) Combine(other Gene, rng *rand.Rand) (any, error) {
	p, err := checkPair(g.spec, other)
	if err != nil {
		return nil, err
	}
	a, b := g.value, other.(*FloatGene).value
	switch p {
	case CombineMax:
		return math.Max(a, b), nil
	case CombineExchange:
		return pick(rng, a, b), nil
	case CombineRandRange:
		return uniform(rng, math.Min(a, b), math.Max(a, b)), nil
	}
	return (a + b) / 2, nil
}

func (g *FloatGene) Copy() Gene     { return &FloatGene{spec: g.spec, value: g.value} }
func (g *FloatGene) String() string { return fmt.Sprintf("<%s:%v>", g.spec.Kind, g.value) }

// --------------------------- IntGene ---------------------------

// IntGene holds an int bounded by [Min, Max].
type IntGene struct {
	spec  *GeneSpec
	value int
}

func (g *IntGene) Spec() *GeneSpec { return g.spec }
func (g *IntGene) Value() any      { return g.value }
func (g *IntGene) Int() int        { return g.value }
func (g *IntGene) set(v any)       { g.value = v.(int) }

func (g *IntGene) RandomValue(rng *rand.Rand) any {
	return randInt(rng, int(g.spec.Min), int(g.spec.Max))
}

func (g *IntGene) Mutate(rng *rand.Rand) {
	if g.spec.Mutation == MutateRandom {
		g.value = g.RandomValue(rng).(int)
		return
	}
	amt := int(g.spec.MutAmt)
	g.value = clampInt(g.value+randInt(rng, -amt, amt), int(g.spec.Min), int(g.spec.Max))
}

func (g *IntGene) MaybeMutate(rng *rand.Rand) bool { return maybeMutate(g, rng) }

// Combine returns an int for max, exchange and randrange, and a float64
// for mean/average since the midpoint of two ints need not be integral.
func (g *IntGene) Combine(other Gene, rng *rand.Rand) (any, error) {
	p, err := checkPair(g.spec, other)
	if err != nil {
		return nil, err
	}
	a, b := g.value, other.(*IntGene).value
	switch p {
	case CombineExchange:
		return pick(rng, a, b), nil
	case CombineMean, CombineAverage:
		return float64(a+b) / 2, nil
	case CombineRandRange:
		return randInt(rng, min(a, b), max(a, b)), nil
	}
	return max(a, b), nil
}

func (g *IntGene) Copy() Gene     { return &IntGene{spec: g.spec, value: g.value} }
func (g *IntGene) String() string { return fmt.Sprintf("<%s:%d>", g.spec.Kind, g.value) }

// --------------------------- CharGene ---------------------------

// CharGene holds a single byte bounded by [Min, Max].
type CharGene struct {
	spec  *GeneSpec
	value byte
}

func (g *CharGene) Spec() *GeneSpec { return g.spec }
func (g *CharGene) Value() any      { return g.value }
func (g *CharGene) Char() byte      { return g.value }
func (g *CharGene) set(v any)       { g.value = v.(byte) }

func (g *CharGene) RandomValue(rng *rand.Rand) any {
	return byte(randInt(rng, int(g.spec.Min), int(g.spec.Max)))
}

func (g *CharGene) Mutate(rng *rand.Rand) {
	if g.spec.Mutation == MutateRandom {
		g.value = g.RandomValue(rng).(byte)
		return
	}
	amt := int(g.spec.MutAmt)
	g.value = byte(clampInt(int(g.value)+randInt(rng, -amt, amt), int(g.spec.Min), int(g.spec.Max)))
}

func (g *CharGene) MaybeMutate(rng *rand.Rand) bool { return maybeMutate(g, rng) }

func (g *CharGene) Combine(other Gene, rng *rand.Rand) (any, error) {
	p, err := checkPair(g.spec, other)
	if err != nil {
		return nil, err
	}
	a, b := g.value, other.(*CharGene).value
	if p == CombineExchange {
		return pick(rng, a, b), nil
	}
	return max(a, b), nil
}

func (g *CharGene) Copy() Gene     { return &CharGene{spec: g.spec, value: g.value} }
func (g *CharGene) String() string { return fmt.Sprintf("<%s:%q>", g.spec.Kind, g.value) }

// --------------------------- ComplexGene ---------------------------

// ComplexGene holds a complex128 whose real and imaginary parts are both
// bounded by [Min, Max].
type ComplexGene struct {
	spec  *GeneSpec
	value complex128
}

func (g *ComplexGene) Spec() *GeneSpec     { return g.spec }
func (g *ComplexGene) Value() any          { return g.value }
func (g *ComplexGene) Complex() complex128 { return g.value }
func (g *ComplexGene) set(v any)           { g.value = v.(complex128) }

func (g *ComplexGene) RandomValue(rng *rand.Rand) any {
	return complex(uniform(rng, g.spec.Min, g.spec.Max), uniform(rng, g.spec.Min, g.spec.Max))
}

func (g *ComplexGene) Mutate(rng *rand.Rand) {
	if g.spec.Mutation == MutateRandom {
		g.value = g.RandomValue(rng).(complex128)
		return
	}
	re := real(g.value) + uniform(rng, -g.spec.MutAmt, g.spec.MutAmt)
	im := imag(g.value) + uniform(rng, -g.spec.MutAmtImag, g.spec.MutAmtImag)
	g.value = complex(clamp(re, g.spec.Min, g.spec.Max), clamp(im, g.spec.Min, g.spec.Max))
}

func (g *ComplexGene) MaybeMutate(rng *rand.Rand) bool { return maybeMutate(g, rng) }

func (g *ComplexGene) Combine(other Gene, rng *rand.Rand) (any, error) {
	p, err := checkPair(g.spec, other)
	if err != nil {
		return nil, err
	}
	a, b := g.value, other.(*ComplexGene).value
	if p == CombineExchange {
		return pick(rng, a, b), nil
	}
	return (a + b) / 2, nil
}

func (g *ComplexGene) Copy() Gene     { return &ComplexGene{spec: g.spec, value: g.value} }
func (g *ComplexGene) String() string { return fmt.Sprintf("<%s:%v>", g.spec.Kind, g.value) }

// --------------------------- BitGene ---------------------------

// BitGene holds a single bit. Its spec must name a logical combine policy;
// the bare bit kind has none.
type BitGene struct {
	spec  *GeneSpec
	value uint8
}

func (g *BitGene) Spec() *GeneSpec { return g.spec }
func (g *BitGene) Value() any      { return g.value }
func (g *BitGene) Bit() uint8      { return g.value }
func (g *BitGene) set(v any)       { g.value = v.(uint8) }

func (g *BitGene) RandomValue(rng *rand.Rand) any { return uint8(rng.Intn(2)) }

func (g *BitGene) Mutate(rng *rand.Rand) {
	if g.spec.Mutation == MutateRandom {
		g.value = g.RandomValue(rng).(uint8)
		return
	}
	g.value ^= 1
}

func (g *BitGene) MaybeMutate(rng *rand.Rand) bool { return maybeMutate(g, rng) }

func (g *BitGene) Combine(other Gene, rng *rand.Rand) (any, error) {
	p, err := checkPair(g.spec, other)
	if err != nil {
		return nil, err
	}
	a, b := g.value, other.(*BitGene).value
	switch p {
	case CombineAnd:
		return a & b, nil
	case CombineOr:
		return a | b, nil
	case CombineXor:
		return a ^ b, nil
	}
	return pick(rng, a, b), nil
}

func (g *BitGene) Copy() Gene     { return &BitGene{spec: g.spec, value: g.value} }
func (g *BitGene) String() string { return fmt.Sprintf("<%s:%d>", g.spec.Kind, g.value) }

// --------------------------- DiscreteGene ---------------------------

// DiscreteGene holds one allele out of a fixed set. Pairs are resolved by
// classical dominance: a dominant allele wins outright, otherwise every
// codominant allele present is expressed, otherwise the recessive one.
type DiscreteGene struct {
	spec  *GeneSpec
	value string
}

func (g *DiscreteGene) Spec() *GeneSpec { return g.spec }
func (g *DiscreteGene) Value() any      { return g.value }
func (g *DiscreteGene) Allele() string  { return g.value }
func (g *DiscreteGene) set(v any)       { g.value = v.(string) }

func (g *DiscreteGene) RandomValue(rng *rand.Rand) any {
	return g.spec.Alleles[rng.Intn(len(g.spec.Alleles))]
}

// Mutate always draws a fresh allele, which may equal the current one.
func (g *DiscreteGene) Mutate(rng *rand.Rand) {
	g.value = g.RandomValue(rng).(string)
}

func (g *DiscreteGene) MaybeMutate(rng *rand.Rand) bool { return maybeMutate(g, rng) }

// Combine returns a []string holding the expressed alleles.
func (g *DiscreteGene) Combine(other Gene, rng *rand.Rand) (any, error) {
	p, err := checkPair(g.spec, other)
	if err != nil {
		return nil, err
	}
	a, b := g.value, other.(*DiscreteGene).value
	if p == CombineExchange {
		return []string{pick(rng, a, b)}, nil
	}
	return dominance(g.spec, a, b), nil
}

func dominance(spec *GeneSpec, a, b string) []string {
	if spec.Dominant != "" && (a == spec.Dominant || b == spec.Dominant) {
		return []string{spec.Dominant}
	}
	if len(spec.Codominant) > 0 {
		phenotype := []string{}
		for _, v := range []string{a, b} {
			if slices.Contains(spec.Codominant, v) && !slices.Contains(phenotype, v) {
				phenotype = append(phenotype, v)
			}
		}
		if len(phenotype) == 0 && spec.Recessive != "" {
			phenotype = append(phenotype, spec.Recessive)
		}
		return phenotype
	}
	if spec.Recessive != "" {
		return []string{spec.Recessive}
	}
	return []string{}
}

func (g *DiscreteGene) Copy() Gene { return &DiscreteGene{spec: g.spec, value: g.value} }
func (g *DiscreteGene) String() string { return fmt.Sprintf("<%s:%s>", g.spec.Kind, g.value) }
