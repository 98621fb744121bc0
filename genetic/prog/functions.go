package prog

import (
	"fmt"
	"math"
	"reflect"

	"github.com/baldhumanity/genetic-go/genetic"
)

// The standard library below declares float64/bool types so it serves typed
// species; its implementations coerce arguments with num and truth, so it
// also works in untyped species where any value can reach any argument.

// FuncSets maps names usable in config files to the standard function sets.
var FuncSets = map[string]func() []Func{
	"arithmetic": Arithmetic,
	"trig":       Trig,
	"comparison": Comparison,
	"logic":      Logic,
	"aggregates": Aggregates,
}

// GetFuncSet retrieves a standard function set by name.
func GetFuncSet(name string) ([]Func, error) {
	if fn, ok := FuncSets[name]; ok {
		return fn(), nil
	}
	return nil, fmt.Errorf("unknown function set: %s", name)
}

func floats(n int) []reflect.Type {
	t := make([]reflect.Type, n)
	for i := range t {
		t[i] = Float
	}
	return t
}

func unary(name string, fn func(float64) float64) Func {
	return Func{Name: name, Args: floats(1), Return: Float, Fn: func(a ...any) any { return fn(num(a[0])) }}
}

func binary(name string, fn func(x, y float64) float64) Func {
	return Func{Name: name, Args: floats(2), Return: Float, Fn: func(a ...any) any { return fn(num(a[0]), num(a[1])) }}
}

// num coerces a program value to float64; bools read as 0 or 1.
func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

// truth coerces a program value to bool; numbers are true when non-zero.
func truth(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return num(v) != 0
}

// Arithmetic returns add, sub, mul, protected div, neg, abs, square, and
// protected log and exp.
func Arithmetic() []Func {
	return []Func{
		binary("add", func(x, y float64) float64 { return x + y }),
		binary("sub", func(x, y float64) float64 { return x - y }),
		binary("mul", func(x, y float64) float64 { return x * y }),
		binary("div", Div),
		unary("neg", func(x float64) float64 { return -x }),
		unary("abs", math.Abs),
		unary("square", func(x float64) float64 { return x * x }),
		unary("log", Log),
		unary("exp", Exp),
	}
}

// Div returns x/y, or 1 when y is zero.
func Div(x, y float64) float64 {
	if y == 0 {
		return 1
	}
	return x / y
}

// Log is the natural logarithm of |x|, floored at 1e-9.
func Log(x float64) float64 {
	return math.Log(math.Max(1e-9, math.Abs(x)))
}

// Exp clamps its input to [-60, 60] to avoid overflow.
func Exp(x float64) float64 {
	return math.Exp(math.Max(-60, math.Min(x, 60)))
}

func Trig() []Func {
	return []Func{
		unary("sin", math.Sin),
		unary("cos", math.Cos),
		unary("tanh", math.Tanh),
	}
}

// Comparison returns gt and lt producing bools, and iif selecting between
// two floats on a bool.
func Comparison() []Func {
	return []Func{
		{Name: "gt", Args: floats(2), Return: Bool, Fn: func(a ...any) any { return num(a[0]) > num(a[1]) }},
		{Name: "lt", Args: floats(2), Return: Bool, Fn: func(a ...any) any { return num(a[0]) < num(a[1]) }},
		{Name: "iif", Args: []reflect.Type{Bool, Float, Float}, Return: Float, Fn: func(a ...any) any {
			if truth(a[0]) {
				return num(a[1])
			}
			return num(a[2])
		}},
	}
}

func Logic() []Func {
	bools := func(n int) []reflect.Type {
		t := make([]reflect.Type, n)
		for i := range t {
			t[i] = Bool
		}
		return t
	}
	return []Func{
		{Name: "and", Args: bools(2), Return: Bool, Fn: func(a ...any) any { return truth(a[0]) && truth(a[1]) }},
		{Name: "or", Args: bools(2), Return: Bool, Fn: func(a ...any) any { return truth(a[0]) || truth(a[1]) }},
		{Name: "xor", Args: bools(2), Return: Bool, Fn: func(a ...any) any { return truth(a[0]) != truth(a[1]) }},
		{Name: "not", Args: bools(1), Return: Bool, Fn: func(a ...any) any { return !truth(a[0]) }},
	}
}

// Aggregates returns min/max of two and mean/median of three values.
func Aggregates() []Func {
	agg := func(name string, n int, fn func([]float64) float64) Func {
		return Func{Name: name, Args: floats(n), Return: Float, Fn: func(a ...any) any {
			values := make([]float64, len(a))
			for i, v := range a {
				values[i] = num(v)
			}
			return fn(values)
		}}
	}
	return []Func{
		agg("min", 2, genetic.MinFloat),
		agg("max", 2, genetic.MaxFloat),
		agg("mean3", 3, genetic.Mean),
		agg("median3", 3, genetic.Median),
	}
}
