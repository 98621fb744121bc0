package genetic

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// LoaderError reports a problem in a genome config file.
type LoaderError struct {
	Section string
	Key     string
	Msg     string
	Err     error
}

func (e *LoaderError) Error() string {
	var b strings.Builder
	b.WriteString("config error")
	if e.Section != "" {
		fmt.Fprintf(&b, " in [%s]", e.Section)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " %s", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LoaderError) Unwrap() error { return e.Err }

// Config is the result of loading a genome config file.
type Config struct {
	Genome        *Genome
	Population    PopulationConfig // Defaults unless HasPopulation
	HasPopulation bool
	// File gives access to sections the loader does not interpret, such as
	// those listed in Loader.IgnoreSections.
	File *ini.File
}

// Known gene fields besides type, alias and clone.
var geneKeys = []string{
	"value", "mutProb", "mutAmt", "randMin", "randMax", "mutAmtReal", "mutAmtImag",
	"alleles", "dominant", "codominant", "recessive",
}

const populationSection = "population"

// Loader builds genomes from ini files with one section per gene:
//
//	[x1]
//	type = float
//	randMin = -100.0
//	randMax = 100.0
//	mutProb = 0.1
//	mutAmt = 0.1
//
// A section may instead hold "alias = other" to reuse an earlier gene, or
// "clone = other" to copy another section's definition. An optional
// [population] section maps onto PopulationConfig; its "genes" key restricts
// and orders the gene sections to load.
type Loader struct {
	// RequireGenes must all be present in the loaded genome.
	RequireGenes []string
	// IgnoreSections are skipped when gene sections are not listed
	// explicitly, leaving them for the caller.
	IgnoreSections []string

	types map[string]GeneSpec
}

// NewLoader creates a loader knowing the built-in type tags.
func NewLoader(requireGenes ...string) *Loader {
	l := &Loader{RequireGenes: requireGenes, types: make(map[string]GeneSpec)}
	with := func(base GeneSpec, combine CombinePolicy, mutation MutationPolicy) GeneSpec {
		base.Combine, base.Mutation = combine, mutation
		return base
	}
	l.RegisterType("int", IntSpec)
	l.RegisterType("int_exchange", with(IntSpec, CombineExchange, MutateStep))
	l.RegisterType("int_average", with(IntSpec, CombineAverage, MutateStep))
	l.RegisterType("int_randrange", with(IntSpec, CombineRandRange, MutateStep))
	l.RegisterType("int_random", with(IntSpec, CombineDefault, MutateRandom))
	l.RegisterType("float", FloatSpec)
	l.RegisterType("float_average", FloatSpec)
	l.RegisterType("float_randrange", with(FloatSpec, CombineRandRange, MutateStep))
	l.RegisterType("float_exchange", with(FloatSpec, CombineExchange, MutateStep))
	l.RegisterType("float_random", with(FloatSpec, CombineDefault, MutateRandom))
	l.RegisterType("float_max", with(FloatSpec, CombineMax, MutateStep))
	l.RegisterType("complex", ComplexSpec)
	l.RegisterType("char", CharSpec)
	l.RegisterType("char_exchange", with(CharSpec, CombineExchange, MutateStep))
	l.RegisterType("printable_char", PrintableCharSpec)
	l.RegisterType("bit_and", AndBitSpec)
	l.RegisterType("bit_or", OrBitSpec)
	l.RegisterType("bit_xor", XorBitSpec)
	l.RegisterType("discrete", DiscreteSpec)
	return l
}

// RegisterType adds or replaces a type tag. Fields present in a gene
// section override those of base.
func (l *Loader) RegisterType(tag string, base GeneSpec) {
	base.Tag = tag
	l.types[tag] = base
}

// LoadConfig loads a genome config file with the built-in type tags.
func LoadConfig(filePath string, requireGenes ...string) (*Config, error) {
	return NewLoader(requireGenes...).Load(filePath)
}

// ParseConfig is LoadConfig for in-memory contents.
func ParseConfig(data []byte, requireGenes ...string) (*Config, error) {
	return NewLoader(requireGenes...).Parse(data)
}

// Load reads and interprets the file at filePath.
func (l *Loader) Load(filePath string) (*Config, error) {
	f, err := loadIni(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}
	return l.interpret(f)
}

// Parse interprets in-memory contents.
func (l *Loader) Parse(data []byte) (*Config, error) {
	f, err := loadIni(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return l.interpret(f)
}

func loadIni(source any) (*ini.File, error) {
	return ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, source)
}

func (l *Loader) interpret(f *ini.File) (*Config, error) {
	config := &Config{Population: DefaultPopulationConfig(), File: f}

	var sections []string
	if f.HasSection(populationSection) {
		config.HasPopulation = true
		pop := f.Section(populationSection)
		if err := pop.StrictMapTo(&config.Population); err != nil {
			return nil, &LoaderError{Section: populationSection, Msg: "invalid population option", Err: err}
		}
		if err := config.Population.Validate(); err != nil {
			return nil, &LoaderError{Section: populationSection, Msg: "invalid population option", Err: err}
		}
		sections = strings.Fields(pop.Key("genes").String())
	}
	if len(sections) == 0 {
		for _, name := range f.SectionStrings() {
			if name == ini.DefaultSection || strings.EqualFold(name, populationSection) || slices.Contains(l.IgnoreSections, name) {
				continue
			}
			sections = append(sections, name)
		}
	}

	var slots []Slot
	specs := make(map[string]*GeneSpec)
	for _, name := range sections {
		if !f.HasSection(name) {
			return nil, &LoaderError{Section: name, Msg: "gene has no section in the config file"}
		}
		if _, dup := specs[name]; dup {
			return nil, &LoaderError{Section: name, Msg: "gene was already defined"}
		}
		sec := f.Section(name)
		if sec.HasKey("alias") {
			target := sec.Key("alias").String()
			spec, ok := specs[target]
			if !ok {
				return nil, &LoaderError{Section: name, Key: "alias",
					Msg: fmt.Sprintf("alias for non-existing gene '%s', order matters", target)}
			}
			specs[name] = spec
			slots = append(slots, Slot{Name: name, Spec: spec})
			continue
		}
		spec, err := l.parseGene(f, sec)
		if err != nil {
			return nil, err
		}
		specs[name] = spec
		slots = append(slots, Slot{Name: name, Spec: spec})
	}

	for _, name := range l.RequireGenes {
		if _, ok := specs[name]; !ok {
			return nil, &LoaderError{Section: name, Msg: "required gene was not found in the config"}
		}
	}
	if len(slots) == 0 {
		return nil, &LoaderError{Msg: "no genes defined"}
	}

	genome, err := NewGenome(slots...)
	if err != nil {
		return nil, &LoaderError{Msg: "invalid genome", Err: err}
	}
	config.Genome = genome
	return config, nil
}

// parseGene builds the descriptor for one gene section, following clone.
func (l *Loader) parseGene(f *ini.File, sec *ini.Section) (*GeneSpec, error) {
	if sec.HasKey("clone") {
		target := sec.Key("clone").String()
		if !f.HasSection(target) {
			return nil, &LoaderError{Section: sec.Name(), Key: "clone",
				Msg: fmt.Sprintf("cloning gene '%s' which is not defined", target)}
		}
		sec = f.Section(target)
	}

	if !sec.HasKey("type") {
		return nil, &LoaderError{Section: sec.Name(), Msg: "required field 'type' was not found"}
	}
	tag := sec.Key("type").String()
	base, ok := l.types[tag]
	if !ok {
		return nil, &LoaderError{Section: sec.Name(), Key: "type", Msg: fmt.Sprintf("unhandled type '%s'", tag)}
	}
	spec := base
	spec.Alleles = slices.Clone(base.Alleles)
	spec.Codominant = slices.Clone(base.Codominant)

	for _, key := range sec.Keys() {
		name := key.Name()
		raw := strings.TrimSpace(key.String())
		if name == "type" || name == "clone" {
			continue
		}
		if !slices.Contains(geneKeys, name) {
			return nil, &LoaderError{Section: sec.Name(), Key: name, Msg: "unknown field"}
		}
		if raw == "" {
			continue
		}
		if err := setGeneField(&spec, name, raw); err != nil {
			return nil, &LoaderError{Section: sec.Name(), Key: name, Msg: fmt.Sprintf("invalid value '%s'", raw), Err: err}
		}
	}

	if spec.Min > spec.Max {
		return nil, &LoaderError{Section: sec.Name(), Msg: "randMin higher than randMax"}
	}
	if err := spec.Validate(); err != nil {
		return nil, &LoaderError{Section: sec.Name(), Msg: "invalid gene", Err: err}
	}
	return &spec, nil
}

func setGeneField(spec *GeneSpec, key, raw string) error {
	integral := spec.Kind == IntKind || spec.Kind == CharKind
	switch key {
	case "mutProb":
		return parseFloat(raw, &spec.MutProb)
	case "mutAmt", "mutAmtReal":
		if integral {
			return parseInt(raw, &spec.MutAmt)
		}
		return parseFloat(raw, &spec.MutAmt)
	case "mutAmtImag":
		return parseFloat(raw, &spec.MutAmtImag)
	case "randMin":
		if integral {
			return parseInt(raw, &spec.Min)
		}
		return parseFloat(raw, &spec.Min)
	case "randMax":
		if integral {
			return parseInt(raw, &spec.Max)
		}
		return parseFloat(raw, &spec.Max)
	case "alleles":
		spec.Alleles = strings.Fields(raw)
	case "codominant":
		spec.Codominant = strings.Fields(raw)
	case "dominant":
		spec.Dominant = raw
	case "recessive":
		spec.Recessive = raw
	case "value":
		return setGeneValue(spec, raw)
	}
	return nil
}

func setGeneValue(spec *GeneSpec, raw string) error {
	switch spec.Kind {
	case FloatKind:
		var f float64
		if err := parseFloat(raw, &f); err != nil {
			return err
		}
		spec.Value = f
	case IntKind, BitKind:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		spec.Value = n
	case CharKind:
		if len(raw) == 1 {
			spec.Value = raw
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		spec.Value = n
	case ComplexKind:
		z, err := strconv.ParseComplex(raw, 128)
		if err != nil {
			return err
		}
		spec.Value = z
	case DiscreteKind:
		spec.Value = raw
	}
	return nil
}

func parseFloat(raw string, dst *float64) error {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func parseInt(raw string, dst *float64) error {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*dst = float64(n)
	return nil
}
