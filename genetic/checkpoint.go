package genetic

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"time"
)

// GeneRecord holds the value of one slot: one value for haploid organisms,
// two for diploid ones.
type GeneRecord struct {
	Name   string
	Values []any
}

// NodeRecord is the persisted form of a program tree node.
type NodeRecord struct {
	Kind     uint8
	Name     string
	Value    any
	Children []NodeRecord
}

// OrganismRecord is the persisted form of one organism.
type OrganismRecord struct {
	Kind       string // "gene", "mendel" or "prog"
	Fitness    float64
	HasFitness bool
	Genes      []GeneRecord
	Tree       *NodeRecord
}

// Snapshotter is implemented by organisms that can be checkpointed.
type Snapshotter interface {
	Snapshot() OrganismRecord
}

// Restorer rebuilds an organism from its record.
type Restorer func(OrganismRecord) (Organism, error)

// Snapshot holds the parts of a Population needed to resume a run. The
// species itself is not saved; it is supplied again on restore.
type Snapshot struct {
	RunID      string
	Generation int
	Config     PopulationConfig
	Organisms  []OrganismRecord
	Saved      time.Time
}

// Snapshot captures the adult pool, fittest first.
func (p *Population) Snapshot() (*Snapshot, error) {
	p.Sort()
	s := &Snapshot{
		RunID:      p.RunID,
		Generation: p.Generation,
		Config:     p.Config,
		Organisms:  make([]OrganismRecord, 0, len(p.organisms)),
		Saved:      time.Now(),
	}
	for i, o := range p.organisms {
		sn, ok := o.(Snapshotter)
		if !ok {
			return nil, fmt.Errorf("organism %d (%T) cannot be checkpointed", i, o)
		}
		s.Organisms = append(s.Organisms, sn.Snapshot())
	}
	return s, nil
}

// Restore rebuilds a population from the snapshot.
func (s *Snapshot) Restore(factory Factory, restore Restorer, opts ...PopulationOption) (*Population, error) {
	members := make([]Organism, 0, len(s.Organisms))
	for i, rec := range s.Organisms {
		o, err := restore(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to restore organism %d: %w", i, err)
		}
		members = append(members, o)
	}
	if s.RunID != "" {
		opts = append([]PopulationOption{WithRunID(s.RunID)}, opts...)
	}
	p, err := NewPopulationOf(s.Config, factory, members, opts...)
	if err != nil {
		return nil, err
	}
	p.Generation = s.Generation
	return p, nil
}

// WriteSnapshot encodes s as gzip-compressed gob.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	gzWriter := gzip.NewWriter(w)
	if err := gob.NewEncoder(gzWriter).Encode(s); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	return gzWriter.Close()
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	s := &Snapshot{}
	if err := gob.NewDecoder(gzReader).Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}
	return s, nil
}

// SaveCheckpoint writes the current adult pool to filePath.
func (p *Population) SaveCheckpoint(filePath string) error {
	s, err := p.Snapshot()
	if err != nil {
		return err
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	if err := WriteSnapshot(file, s); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint file '%s': %w", filePath, err)
	}
	Logger().Info("checkpoint saved", "path", filePath, "generation", p.Generation)
	return nil
}

// LoadCheckpoint reads a snapshot from filePath. Call Restore on the result
// with the run's species to get a population back.
func LoadCheckpoint(filePath string) (*Snapshot, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	s, err := ReadSnapshot(file)
	if err != nil {
		return nil, err
	}
	Logger().Info("checkpoint loaded", "path", filePath, "generation", s.Generation)
	return s, nil
}

// Snapshot implements Snapshotter.
func (o *GeneOrganism) Snapshot() OrganismRecord {
	rec := OrganismRecord{Kind: "gene", Genes: make([]GeneRecord, len(o.genes))}
	rec.Fitness, rec.HasFitness = o.KnownFitness()
	for i, slot := range o.species.Genome.slots {
		rec.Genes[i] = GeneRecord{Name: slot.Name, Values: []any{o.genes[i].Value()}}
	}
	return rec
}

// Snapshot implements Snapshotter.
func (o *MendelOrganism) Snapshot() OrganismRecord {
	rec := OrganismRecord{Kind: "mendel", Genes: make([]GeneRecord, len(o.pairs))}
	rec.Fitness, rec.HasFitness = o.KnownFitness()
	for i, slot := range o.species.Genome.slots {
		rec.Genes[i] = GeneRecord{Name: slot.Name, Values: []any{o.pairs[i][0].Value(), o.pairs[i][1].Value()}}
	}
	return rec
}

// Restore rebuilds a haploid or diploid organism of this species.
func (s *Species) Restore(rec OrganismRecord) (Organism, error) {
	width := 1
	if rec.Kind == "mendel" {
		width = 2
	} else if rec.Kind != "gene" {
		return nil, fmt.Errorf("species '%s' cannot restore %q organisms", s.Name, rec.Kind)
	}
	genes := make(map[string][]Gene, len(rec.Genes))
	for _, gr := range rec.Genes {
		i, ok := s.Genome.index[gr.Name]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownGene, gr.Name)
		}
		if len(gr.Values) != width {
			return nil, fmt.Errorf("gene '%s': expected %d values, got %d", gr.Name, width, len(gr.Values))
		}
		for _, v := range gr.Values {
			g, err := NewGeneValue(s.Genome.slots[i].Spec, v)
			if err != nil {
				return nil, fmt.Errorf("gene '%s': %w", gr.Name, err)
			}
			genes[gr.Name] = append(genes[gr.Name], g)
		}
	}
	if len(genes) != s.Genome.Len() {
		return nil, fmt.Errorf("record has %d genes, genome has %d", len(genes), s.Genome.Len())
	}

	if width == 1 {
		o := &GeneOrganism{species: s, genes: make([]Gene, s.Genome.Len())}
		for name, g := range genes {
			o.genes[s.Genome.index[name]] = g[0]
		}
		if rec.HasFitness {
			o.SeedFitness(rec.Fitness)
		}
		return o, nil
	}
	o := &MendelOrganism{species: s, pairs: make([]GenePair, s.Genome.Len())}
	for name, g := range genes {
		o.pairs[s.Genome.index[name]] = GenePair{g[0], g[1]}
	}
	if rec.HasFitness {
		o.SeedFitness(rec.Fitness)
	}
	return o, nil
}
