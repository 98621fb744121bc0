package genetic

import "fmt"

// Gamete is half a diploid genome, one gene per slot, produced by
// MendelOrganism.Split.
type Gamete struct {
	species *Species
	genes   []Gene
}

// Gene returns the named gene of the gamete.
func (g *Gamete) Gene(name string) (Gene, bool) {
	i, ok := g.species.Genome.index[name]
	if !ok {
		return nil, false
	}
	return g.genes[i], true
}

// Conceive fuses two gametes of the same species into a new organism whose
// pairs are (g's gene, other's gene). Genes are copied.
func (g *Gamete) Conceive(other *Gamete) (*MendelOrganism, error) {
	if other == nil || other.species == nil || other.species.Genome != g.species.Genome {
		return nil, ErrNotGamete
	}
	o := &MendelOrganism{species: g.species, pairs: make([]GenePair, len(g.genes))}
	for i := range g.genes {
		o.pairs[i] = GenePair{g.genes[i].Copy(), other.genes[i].Copy()}
	}
	return o, nil
}

func (g *Gamete) String() string {
	return fmt.Sprintf("<gamete %s %v>", g.species.Name, g.genes)
}
