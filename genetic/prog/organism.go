package prog

import (
	"fmt"
	"io"

	"github.com/baldhumanity/genetic-go/genetic"
)

// ProgOrganism is an organism whose genotype is a program tree.
type ProgOrganism struct {
	genetic.FitnessCache
	species *Species
	tree    *Node
}

func (o *ProgOrganism) Species() *Species { return o.species }

// Tree returns the root node. Callers must not modify it.
func (o *ProgOrganism) Tree() *Node { return o.tree }

// Calc evaluates the program with the given variable bindings.
func (o *ProgOrganism) Calc(vars map[string]any) (any, error) {
	return o.tree.eval(vars, o.tree)
}

// CalcFloat evaluates the program and converts the result to float64.
func (o *ProgOrganism) CalcFloat(vars map[string]any) (float64, error) {
	v, err := o.Calc(vars)
	if err != nil {
		return 0, err
	}
	return num(v), nil
}

// Nodes counts the nodes of the tree.
func (o *ProgOrganism) Nodes() int { return o.tree.Nodes() }

func (o *ProgOrganism) Depth() int { return o.tree.Depth() }

// Dump writes the tree, one node per line.
func (o *ProgOrganism) Dump(w io.Writer) error { return o.tree.Dump(w, 1) }

func (o *ProgOrganism) String() string { return o.tree.String() }

func (o *ProgOrganism) Fitness() float64 {
	return o.AwaitFitness(o.species.Evaluator, o.score)
}

func (o *ProgOrganism) PrepareFitness() {
	o.SubmitFitness(o.species.Evaluator, o.score)
}

func (o *ProgOrganism) score() float64 {
	if o.species.Fitness == nil {
		panic(fmt.Sprintf("species '%s': fitness: %v", o.species.Name, genetic.ErrNotImplemented))
	}
	return o.species.Fitness(o)
}

// Mate swaps type-compatible subtrees between copies of both parents. When
// no compatible pair of fragments turns up within MateAttempts tries, it
// logs a warning and returns plain copies of the parents.
func (o *ProgOrganism) Mate(partner genetic.Organism) (genetic.Organism, genetic.Organism, error) {
	p, ok := partner.(*ProgOrganism)
	if !ok || p.species != o.species {
		return nil, nil, fmt.Errorf("mate %T with %T: %w", o, partner, genetic.ErrSpeciesMismatch)
	}
	rng := o.species.Rand
	for range o.species.MateAttempts {
		ourRoot, ourParent, ourIdx, ok1 := o.tree.split(rng)
		mateRoot, mateParent, mateIdx, ok2 := p.tree.split(rng)
		if !ok1 || !ok2 {
			break
		}
		ourFrag, mateFrag := ourParent.Children[ourIdx], mateParent.Children[mateIdx]
		if ourFrag.Type != mateFrag.Type {
			continue
		}
		ourParent.Children[ourIdx], mateParent.Children[mateIdx] = mateFrag, ourFrag
		if err := ourParent.checkTypes(ourRoot); err != nil {
			return nil, nil, err
		}
		if err := mateParent.checkTypes(mateRoot); err != nil {
			return nil, nil, err
		}
		return &ProgOrganism{species: o.species, tree: ourRoot}, &ProgOrganism{species: o.species, tree: mateRoot}, nil
	}
	genetic.Logger().Warn("failed to swap trees, continuing with copies",
		"species", o.species.Name, "attempts", o.species.MateAttempts)
	return o.Copy(), p.Copy(), nil
}

// Mutate returns a copy with one subtree regenerated. The walk descends into
// a random non-terminal child with probability 2/3; otherwise it replaces a
// random child of the current node with a fresh subtree of the same type.
func (o *ProgOrganism) Mutate() (genetic.Organism, error) {
	mutant := &ProgOrganism{species: o.species, tree: o.tree.Clone()}
	if err := o.species.mutateNode(mutant.tree, mutant.tree, 1); err != nil {
		return nil, err
	}
	return mutant, nil
}

func (s *Species) mutateNode(root, n *Node, depth int) error {
	if len(n.Children) == 0 {
		return nil
	}
	if s.Rand.Float64() >= 1.0/3 {
		child := n.Children[s.Rand.Intn(len(n.Children))]
		if !child.Terminal() {
			return s.mutateNode(root, child, depth+1)
		}
	}
	idx := s.Rand.Intn(len(n.Children))
	fresh, err := s.genNode(depth+1, n.Children[idx].Type)
	if err != nil {
		return err
	}
	n.Children[idx] = fresh
	return n.checkTypes(root)
}

// Copy returns a deep copy that keeps any already known fitness.
func (o *ProgOrganism) Copy() genetic.Organism {
	c := &ProgOrganism{species: o.species, tree: o.tree.Clone()}
	if v, ok := o.KnownFitness(); ok {
		c.SeedFitness(v)
	}
	return c
}

// Snapshot implements genetic.Snapshotter.
func (o *ProgOrganism) Snapshot() genetic.OrganismRecord {
	tree := o.tree.record()
	rec := genetic.OrganismRecord{Kind: "prog", Tree: &tree}
	rec.Fitness, rec.HasFitness = o.KnownFitness()
	return rec
}
