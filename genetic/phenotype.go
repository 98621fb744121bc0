package genetic

import "fmt"

// Phenotype is the read-only view of an organism handed to fitness
// functions. The typed accessors panic when the gene is missing or holds a
// value of another kind; use Get to handle those cases as errors.
type Phenotype interface {
	Get(name string) (any, error)
	Float(name string) float64
	Int(name string) int
	Char(name string) byte
	Complex(name string) complex128
	Bit(name string) uint8
	Alleles(name string) []string
}

type getter interface {
	Get(name string) (any, error)
}

func mustGet(p getter, name string) any {
	v, err := p.Get(name)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// floatOf accepts any numeric phenotype value.
func floatOf(p getter, name string) float64 {
	v := mustGet(p, name)
	if f, ok := toFloat(v); ok {
		return f
	}
	panic(fmt.Sprintf("gene '%s' is %T, not numeric", name, v))
}

func intOf(p getter, name string) int {
	switch v := mustGet(p, name).(type) {
	case int:
		return v
	case uint8:
		return int(v)
	default:
		panic(fmt.Sprintf("gene '%s' is %T, not int", name, v))
	}
}

func charOf(p getter, name string) byte {
	v, ok := mustGet(p, name).(byte)
	if !ok {
		panic(fmt.Sprintf("gene '%s' is not a char", name))
	}
	return v
}

func complexOf(p getter, name string) complex128 {
	switch v := mustGet(p, name).(type) {
	case complex128:
		return v
	default:
		return complex(floatOf(p, name), 0)
	}
}

func bitOf(p getter, name string) uint8 {
	v, ok := mustGet(p, name).(uint8)
	if !ok {
		panic(fmt.Sprintf("gene '%s' is not a bit", name))
	}
	return v
}

// allelesOf wraps a single allele so haploid and diploid discrete genes read
// the same way.
func allelesOf(p getter, name string) []string {
	switch v := mustGet(p, name).(type) {
	case []string:
		return v
	case string:
		return []string{v}
	default:
		panic(fmt.Sprintf("gene '%s' is %T, not discrete", name, v))
	}
}
