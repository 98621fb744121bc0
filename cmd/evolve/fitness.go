package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/PaesslerAG/gval"

	"github.com/baldhumanity/genetic-go/genetic"
)

// exprLang is the language fitness expressions are written in: gval's
// arithmetic, comparison and logic plus a few math functions.
var exprLang = gval.NewLanguage(
	gval.Full(),
	gval.Function("abs", math.Abs),
	gval.Function("sqrt", math.Sqrt),
	gval.Function("pow", math.Pow),
	gval.Function("exp", math.Exp),
	gval.Function("log", math.Log),
	gval.Function("sin", math.Sin),
	gval.Function("cos", math.Cos),
	gval.Function("min", math.Min),
	gval.Function("max", math.Max),
)

// exprFitness scores organisms by evaluating an expression over their
// phenotype. Complex genes appear as name_re and name_im, discrete genes as
// their allele string (dominant alleles joined by "|" when codominant).
type exprFitness struct {
	expr   string
	eval   gval.Evaluable
	names  []string
	failed atomic.Int64
}

func compileFitness(expr string, genome *genetic.Genome) (*exprFitness, error) {
	eval, err := exprLang.NewEvaluable(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fitness expression '%s': %w", expr, err)
	}
	return &exprFitness{expr: expr, eval: eval, names: genome.Names()}, nil
}

// Eval scores one phenotype.
func (f *exprFitness) Eval(ctx context.Context, p genetic.Phenotype) (float64, error) {
	params := make(map[string]any, len(f.names))
	for _, name := range f.names {
		v, err := p.Get(name)
		if err != nil {
			return 0, err
		}
		switch t := v.(type) {
		case float64:
			params[name] = t
		case int:
			params[name] = float64(t)
		case uint8:
			params[name] = float64(t)
		case complex128:
			params[name+"_re"] = real(t)
			params[name+"_im"] = imag(t)
		case string:
			params[name] = t
		case []string:
			params[name] = strings.Join(t, "|")
		default:
			return 0, fmt.Errorf("gene '%s': no expression value for %T", name, v)
		}
	}
	v, err := f.eval.EvalFloat64(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate '%s': %w", f.expr, err)
	}
	return v, nil
}

// Fitness is the species fitness function. An organism whose expression
// fails to evaluate scores +Inf.
func (f *exprFitness) Fitness(p genetic.Phenotype) float64 {
	v, err := f.Eval(context.Background(), p)
	if err != nil {
		if f.failed.Add(1) == 1 {
			genetic.Logger().Warn("fitness expression failed, scoring +Inf", "error", err)
		}
		return math.Inf(1)
	}
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// Failures returns the number of evaluations that failed.
func (f *exprFitness) Failures() int64 { return f.failed.Load() }
