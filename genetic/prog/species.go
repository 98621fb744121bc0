package prog

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"slices"
	"time"

	"github.com/baldhumanity/genetic-go/genetic"
)

// ErrTypeDoesNotExist means no function or terminal satisfies the type a
// tree position requires.
var ErrTypeDoesNotExist = errors.New("no node satisfies the required type")

// errGaveUp marks a generation that exhausted its attempts; enclosing
// generations stop instead of retrying around it.
var errGaveUp = errors.New("gave up")

// Common node types.
var (
	Float = reflect.TypeFor[float64]()
	Int   = reflect.TypeFor[int]()
	Bool  = reflect.TypeFor[bool]()
)

// Func is a registered operator. len(Args) is its arity. Args and Return
// are only consulted by typed species.
type Func struct {
	Name   string
	Args   []reflect.Type
	Return reflect.Type
	Fn     func(args ...any) any
}

// Arity returns the number of arguments.
func (f *Func) Arity() int { return len(f.Args) }

// NewFunc registers an untyped operator of the given arity.
func NewFunc(name string, arity int, fn func(args ...any) any) Func {
	return Func{Name: name, Args: make([]reflect.Type, arity), Fn: fn}
}

// Var is a named input of the program.
type Var struct {
	Name string
	Type reflect.Type
}

// Species holds the function and terminal sets of a genetic programming
// problem. Setting Type turns on typed mode: Type is then the root type and
// every function, variable and constant is filtered by type.
type Species struct {
	Name   string
	Funcs  []Func
	Vars   []Var
	Consts []any
	Type   reflect.Type

	// InitDepth is the depth at which generation forces terminals.
	InitDepth int
	// MaxAttempts bounds the retries of one node generation.
	MaxAttempts int
	// MateAttempts bounds the fragment swaps tried before mating falls back
	// to copying the parents.
	MateAttempts int

	Fitness   func(o *ProgOrganism) float64
	Evaluator genetic.Evaluator
	Rand      *rand.Rand

	funcs    map[string]*Func
	varTypes map[string]reflect.Type
}

// NewSpecies validates the registry and applies defaults.
func NewSpecies(s Species) (*Species, error) {
	sp := s
	sp.Funcs = slices.Clone(s.Funcs)
	sp.Vars = slices.Clone(s.Vars)
	sp.Consts = slices.Clone(s.Consts)
	if sp.InitDepth == 0 {
		sp.InitDepth = 4
	}
	if sp.MaxAttempts == 0 {
		sp.MaxAttempts = 100
	}
	if sp.MateAttempts == 0 {
		sp.MateAttempts = 20
	}
	if sp.Evaluator == nil {
		sp.Evaluator = genetic.SyncEvaluator{}
	}
	if sp.Rand == nil {
		sp.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sp.InitDepth < 2 {
		return nil, fmt.Errorf("species '%s': init depth must be at least 2, got %d", sp.Name, sp.InitDepth)
	}
	if len(sp.Funcs) == 0 {
		return nil, fmt.Errorf("species '%s': no functions", sp.Name)
	}
	if len(sp.Vars) == 0 && len(sp.Consts) == 0 {
		return nil, fmt.Errorf("species '%s': no terminals", sp.Name)
	}

	typed := sp.Type != nil
	sp.funcs = make(map[string]*Func, len(sp.Funcs))
	for i := range sp.Funcs {
		f := &sp.Funcs[i]
		if f.Name == "" || f.Fn == nil {
			return nil, fmt.Errorf("species '%s': function %d needs a name and an implementation", sp.Name, i)
		}
		if _, dup := sp.funcs[f.Name]; dup {
			return nil, fmt.Errorf("species '%s': function '%s' registered twice", sp.Name, f.Name)
		}
		if typed {
			if f.Return == nil {
				return nil, fmt.Errorf("species '%s': typed function '%s' has no return type", sp.Name, f.Name)
			}
			for j, at := range f.Args {
				if at == nil {
					return nil, fmt.Errorf("species '%s': typed function '%s' has no type for argument %d", sp.Name, f.Name, j+1)
				}
			}
		}
		sp.funcs[f.Name] = f
	}
	sp.varTypes = make(map[string]reflect.Type, len(sp.Vars))
	for _, v := range sp.Vars {
		if typed && v.Type == nil {
			return nil, fmt.Errorf("species '%s': typed variable '%s' has no type", sp.Name, v.Name)
		}
		sp.varTypes[v.Name] = v.Type
	}
	return &sp, nil
}

func (s *Species) typed() bool { return s.Type != nil }

// genNode builds a random subtree of the given type (nil for any) rooted at
// depth. It retries on ErrTypeDoesNotExist, warning once past 50 attempts,
// and gives up after MaxAttempts.
func (s *Species) genNode(depth int, typ reflect.Type) (*Node, error) {
	var err error
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		var n *Node
		n, err = s.tryNode(depth, typ)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrTypeDoesNotExist) || errors.Is(err, errGaveUp) {
			return nil, err
		}
		if attempt == 51 {
			genetic.Logger().Warn("probably an infinite loop: the function and terminal sets do not allow this tree",
				"species", s.Name, "type", typ, "depth", depth)
		}
	}
	return nil, fmt.Errorf("species '%s': type %v at depth %d: %w after %d attempts: %w", s.Name, typ, depth, errGaveUp, s.MaxAttempts, err)
}

func (s *Species) tryNode(depth int, typ reflect.Type) (*Node, error) {
	if depth > 1 && (depth >= s.InitDepth || s.Rand.Intn(2) == 0) {
		if s.Rand.Intn(2) == 0 {
			return s.newVar(typ)
		}
		return s.newConst(typ)
	}
	return s.newFunc(depth, typ)
}

func (s *Species) newFunc(depth int, typ reflect.Type) (*Node, error) {
	options := make([]*Func, 0, len(s.Funcs))
	for i := range s.Funcs {
		if !s.typed() || typ == nil || s.Funcs[i].Return == typ {
			options = append(options, &s.Funcs[i])
		}
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("function returning %v: %w", typ, ErrTypeDoesNotExist)
	}
	f := options[s.Rand.Intn(len(options))]
	n := &Node{Kind: FuncNode, Name: f.Name, fn: f, Children: make([]*Node, len(f.Args))}
	if s.typed() {
		n.Type = f.Return
	}
	for i, at := range f.Args {
		if !s.typed() {
			at = nil
		}
		child, err := s.genNode(depth+1, at)
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	return n, nil
}

func (s *Species) newVar(typ reflect.Type) (*Node, error) {
	options := make([]Var, 0, len(s.Vars))
	for _, v := range s.Vars {
		if !s.typed() || typ == nil || v.Type == typ {
			options = append(options, v)
		}
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("variable of type %v: %w", typ, ErrTypeDoesNotExist)
	}
	v := options[s.Rand.Intn(len(options))]
	n := &Node{Kind: VarNode, Name: v.Name}
	if s.typed() {
		n.Type = v.Type
	}
	return n, nil
}

func (s *Species) newConst(typ reflect.Type) (*Node, error) {
	options := make([]any, 0, len(s.Consts))
	for _, c := range s.Consts {
		if !s.typed() || typ == nil || reflect.TypeOf(c) == typ {
			options = append(options, c)
		}
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("constant of type %v: %w", typ, ErrTypeDoesNotExist)
	}
	c := options[s.Rand.Intn(len(options))]
	n := &Node{Kind: ConstNode, Name: fmt.Sprint(c), Value: c}
	if s.typed() {
		n.Type = reflect.TypeOf(c)
	}
	return n, nil
}

// NewOrganism generates a random tree. The root is always a function node
// returning the species type.
func (s *Species) NewOrganism() (*ProgOrganism, error) {
	root, err := s.genNode(1, s.Type)
	if err != nil {
		return nil, err
	}
	return &ProgOrganism{species: s, tree: root}, nil
}

// NewOrganismFrom wraps an existing tree after checking it against the
// registry.
func (s *Species) NewOrganismFrom(root *Node) (*ProgOrganism, error) {
	if err := s.bind(root); err != nil {
		return nil, err
	}
	if err := root.validate(root); err != nil {
		return nil, err
	}
	if s.typed() && root.Type != s.Type {
		return nil, fmt.Errorf("species '%s': root returns %v, want %v", s.Name, root.Type, s.Type)
	}
	return &ProgOrganism{species: s, tree: root}, nil
}

// bind resolves function pointers and node types from the registry.
func (s *Species) bind(n *Node) error {
	switch n.Kind {
	case FuncNode:
		f, ok := s.funcs[n.Name]
		if !ok {
			return fmt.Errorf("species '%s': unknown function '%s'", s.Name, n.Name)
		}
		if len(n.Children) != f.Arity() {
			return fmt.Errorf("species '%s': function '%s' takes %d arguments, node has %d", s.Name, n.Name, f.Arity(), len(n.Children))
		}
		n.fn = f
		n.Type = nil
		if s.typed() {
			n.Type = f.Return
		}
		for _, child := range n.Children {
			if err := s.bind(child); err != nil {
				return err
			}
		}
	case VarNode:
		t, ok := s.varTypes[n.Name]
		if !ok {
			return fmt.Errorf("species '%s': unknown variable '%s'", s.Name, n.Name)
		}
		n.Type = nil
		if s.typed() {
			n.Type = t
		}
	case ConstNode:
		n.Name = fmt.Sprint(n.Value)
		n.Type = nil
		if s.typed() {
			n.Type = reflect.TypeOf(n.Value)
		}
	default:
		return fmt.Errorf("species '%s': unknown node kind %v", s.Name, n.Kind)
	}
	return nil
}

// Factory adapts NewOrganism for genetic.NewPopulation. Generation failures
// panic, since a registry that cannot build a root tree is unusable.
func (s *Species) Factory() genetic.Factory {
	return func() genetic.Organism {
		o, err := s.NewOrganism()
		if err != nil {
			panic(fmt.Sprintf("species '%s': %v", s.Name, err))
		}
		return o
	}
}

// Restore rebuilds an organism from a checkpoint record.
func (s *Species) Restore(rec genetic.OrganismRecord) (genetic.Organism, error) {
	if rec.Kind != "prog" || rec.Tree == nil {
		return nil, fmt.Errorf("species '%s' cannot restore %q organisms", s.Name, rec.Kind)
	}
	o, err := s.NewOrganismFrom(fromRecord(*rec.Tree))
	if err != nil {
		return nil, err
	}
	if rec.HasFitness {
		o.SeedFitness(rec.Fitness)
	}
	return o, nil
}

func fromRecord(rec genetic.NodeRecord) *Node {
	n := &Node{Kind: NodeKind(rec.Kind), Name: rec.Name, Value: rec.Value}
	for _, child := range rec.Children {
		n.Children = append(n.Children, fromRecord(child))
	}
	return n
}
