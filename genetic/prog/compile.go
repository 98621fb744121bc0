package prog

import (
	"fmt"
	"reflect"
)

type step struct {
	kind  NodeKind
	name  string
	value any
	fn    *Func
	typ   reflect.Type
	arity int
}

// Compiled is a program tree flattened into post-order, so evaluation is a
// single pass over a value stack instead of a recursive walk. Fitness
// functions that run a program over many inputs should compile it once.
type Compiled struct {
	steps []step
	stack []any
}

// Compile flattens the organism's tree. Type consistency is checked once
// here; Run still verifies function return types in typed mode.
func (o *ProgOrganism) Compile() (*Compiled, error) {
	if err := o.tree.validate(o.tree); err != nil {
		return nil, err
	}
	c := &Compiled{}
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, child := range n.Children {
			walk(child)
		}
		c.steps = append(c.steps, step{kind: n.Kind, name: n.Name, value: n.Value, fn: n.fn, typ: n.Type, arity: len(n.Children)})
	}
	walk(o.tree)
	return c, nil
}

// Run evaluates the program. A Compiled value is not safe for concurrent
// use; compile once per goroutine.
func (c *Compiled) Run(vars map[string]any) (any, error) {
	stack := c.stack[:0]
	for _, s := range c.steps {
		switch s.kind {
		case ConstNode:
			stack = append(stack, s.value)
		case VarNode:
			v, ok := vars[s.name]
			if !ok {
				v = 0.0
			}
			stack = append(stack, v)
		case FuncNode:
			base := len(stack) - s.arity
			args := make([]any, s.arity)
			copy(args, stack[base:])
			result := s.fn.Fn(args...)
			if s.typ != nil && reflect.TypeOf(result) != s.typ {
				return nil, &TypeError{Func: s.name, Want: s.typ, Got: reflect.TypeOf(result)}
			}
			stack = append(stack[:base], result)
		}
	}
	c.stack = stack
	if len(stack) != 1 {
		return nil, fmt.Errorf("compiled program left %d values on the stack", len(stack))
	}
	return stack[0], nil
}

// RunFloat is Run converting the result to float64.
func (c *Compiled) RunFloat(vars map[string]any) (float64, error) {
	v, err := c.Run(vars)
	if err != nil {
		return 0, err
	}
	return num(v), nil
}
