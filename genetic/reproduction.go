package genetic

import (
	"fmt"
	"math"
	"math/rand"
)

// selectIndex draws an adult index biased toward the fittest end of a
// pool of n sorted members. With idx = floor(sqrt(U[0, n*n))) counted from
// the least fit end, rank r (0 = fittest) is picked with probability
// (2(n-1-r)+1)/n^2.
func selectIndex(rng *rand.Rand, n int) int {
	idx := int(math.Sqrt(float64(rng.Int63n(int64(n) * int64(n)))))
	return n - 1 - idx
}

// selectParents draws two distinct indices into a pool of n >= 2 members.
func selectParents(rng *rand.Rand, n int) (int, int) {
	i1 := selectIndex(rng, n)
	i2 := i1
	for i2 == i1 {
		i2 = selectIndex(rng, n)
	}
	return i1, i2
}

// breed mates fitness-selected parent pairs. nchildren/2 pairs are bred,
// or a single pair when nchildren is 1.
func (p *Population) breed(nchildren int) ([]Organism, error) {
	npairs := nchildren / 2
	if nchildren == 1 {
		npairs = 1
	}
	n := len(p.organisms)
	children := make([]Organism, 0, 2*npairs+p.Config.Incest)
	for range npairs {
		i1, i2 := selectParents(p.rng, n)
		child1, child2, err := p.organisms[i1].Mate(p.organisms[i2])
		if err != nil {
			return nil, fmt.Errorf("mate adults %d and %d: %w", i1, i2, err)
		}
		if p.Config.MutateAfterMating {
			if child1, err = child1.Mutate(); err != nil {
				return nil, fmt.Errorf("mutate child: %w", err)
			}
			if child2, err = child2.Mutate(); err != nil {
				return nil, fmt.Errorf("mutate child: %w", err)
			}
		}
		children = append(children, child1, child2)
	}
	return children, nil
}

// mutants mutates the fittest Mutants proportion of the sorted children
// and submits their fitness.
func (p *Population) mutants(children []Organism) ([]Organism, error) {
	count := int(float64(len(children)) * p.Config.Mutants)
	mutants := make([]Organism, 0, count)
	for _, child := range children[:count] {
		m, err := child.Mutate()
		if err != nil {
			return nil, fmt.Errorf("mutate child: %w", err)
		}
		m.PrepareFitness()
		mutants = append(mutants, m)
	}
	return mutants, nil
}
