// Package genetic provides genetic algorithms over typed genes: haploid and
// diploid organisms, gametes, and generational populations.
//
// A Genome lists named gene slots, each described by a GeneSpec (kind,
// bounds, mutation and combination policy). A Species binds a genome to a
// fitness function; lower fitness is better. Species create haploid
// GeneOrganisms or diploid MendelOrganisms, whose phenotype is the
// combination of each gene pair. A Population breeds organisms generation
// by generation, selecting parents with a bias towards the fittest.
// Genetic programming lives in the prog subpackage.
//
// Genomes can be loaded from ini files with one section per gene; see
// Loader.
//
// Basic usage:
//
//	// Load a genome
//	config, err := genetic.LoadConfig("quadratic.ini", "x1", "x2")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	species := genetic.NewSpecies("quadratic", config.Genome, func(p genetic.Phenotype) float64 {
//		return math.Abs(quad(p.Float("x1"))) + math.Abs(quad(p.Float("x2")))
//	})
//
//	// Create a population of random organisms
//	pop, err := genetic.NewPopulation(config.Population, species.Factory())
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	for pop.Best().Fitness() > 0.01 {
//		if err := pop.Gen(0, 0); err != nil {
//			log.Fatalf("Error running generation: %v", err)
//		}
//	}
//
// Fitness is computed at most once per organism. Setting Species.Evaluator
// to a PoolEvaluator scores a whole generation concurrently.
package genetic
