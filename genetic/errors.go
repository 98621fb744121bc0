package genetic

import "errors"

var (
	// ErrNotImplemented is returned when a contract has no concrete policy,
	// such as combining bare bit genes or evaluating an unbound species.
	ErrNotImplemented = errors.New("not implemented")

	ErrGeneType        = errors.New("wrong gene type")
	ErrGenePairArity   = errors.New("gene pair must have exactly two genes")
	ErrUnknownGene     = errors.New("unknown gene name")
	ErrNotGamete       = errors.New("can only conceive with another gamete of the same species")
	ErrUnsupportedType = errors.New("unsupported type for population")
	ErrSpeciesMismatch = errors.New("organisms belong to different species")
	ErrTooFewAdults    = errors.New("population needs at least two adults to breed")
)
