// Package prog implements genetic programming: organisms are expression
// trees over a registry of functions, variables and constants, optionally
// typed so that every argument receives a value of the declared type.
package prog

import (
	"fmt"
	"io"
	"math/rand"
	"reflect"
	"strings"

	"github.com/baldhumanity/genetic-go/genetic"
)

// NodeKind tags the variant held by a Node.
type NodeKind uint8

const (
	FuncNode NodeKind = iota
	ConstNode
	VarNode
)

func (k NodeKind) String() string {
	switch k {
	case FuncNode:
		return "func"
	case ConstNode:
		return "const"
	case VarNode:
		return "var"
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// Node is one node of a program tree. Function nodes carry their children;
// const nodes a Value; var nodes the variable Name. Type is the declared
// result type in typed mode and nil otherwise.
type Node struct {
	Kind     NodeKind
	Name     string
	Type     reflect.Type
	Value    any
	Children []*Node

	fn *Func
}

// Terminal reports whether the node has no children to descend into.
func (n *Node) Terminal() bool {
	return n.Kind != FuncNode || len(n.Children) == 0
}

// Clone deep-copies the subtree.
func (n *Node) Clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Nodes counts the nodes of the subtree.
func (n *Node) Nodes() int {
	count := 1
	for _, child := range n.Children {
		count += child.Nodes()
	}
	return count
}

// Depth is 1 for a lone node.
func (n *Node) Depth() int {
	d := 0
	for _, child := range n.Children {
		d = max(d, child.Depth())
	}
	return d + 1
}

// Dump writes the subtree, one node per line, indented by level.
func (n *Node) Dump(w io.Writer, level int) error {
	indent := strings.Repeat("  ", level)
	var err error
	switch n.Kind {
	case FuncNode:
		_, err = fmt.Fprintf(w, "%s%s\n", indent, n.Name)
	case ConstNode:
		_, err = fmt.Fprintf(w, "%s{%v}\n", indent, n.Value)
	case VarNode:
		_, err = fmt.Fprintf(w, "%s{%s}\n", indent, n.Name)
	}
	if err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := child.Dump(w, level+1); err != nil {
			return err
		}
	}
	return nil
}

// String renders the subtree as a call expression.
func (n *Node) String() string {
	switch n.Kind {
	case ConstNode:
		return fmt.Sprint(n.Value)
	case VarNode:
		return n.Name
	}
	args := make([]string, len(n.Children))
	for i, child := range n.Children {
		args[i] = child.String()
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

func dumpString(root *Node) string {
	var b strings.Builder
	root.Dump(&b, 1)
	return b.String()
}

// TypeError reports a typed tree whose node types do not line up. Arg is
// the 1-based argument position, or 0 for a bad return value.
type TypeError struct {
	Func string
	Arg  int
	Want reflect.Type
	Got  reflect.Type
	Tree string
}

func (e *TypeError) Error() string {
	if e.Arg == 0 {
		return fmt.Sprintf("genetic programming type error: function '%s' returned %v instead of %v\n  Tree:\n%s", e.Func, e.Got, e.Want, e.Tree)
	}
	return fmt.Sprintf("genetic programming type error: function '%s' expected %v, found %v for argument %d\n  Tree:\n%s", e.Func, e.Want, e.Got, e.Arg, e.Tree)
}

// checkTypes verifies the node's children against its declared argument
// types. Untyped nodes always pass.
func (n *Node) checkTypes(root *Node) error {
	if n.Kind != FuncNode || n.Type == nil {
		return nil
	}
	for i, at := range n.fn.Args {
		if n.Children[i].Type != at {
			return &TypeError{Func: n.Name, Arg: i + 1, Want: at, Got: n.Children[i].Type, Tree: dumpString(root)}
		}
	}
	return nil
}

// validate runs checkTypes over the whole subtree.
func (n *Node) validate(root *Node) error {
	if err := n.checkTypes(root); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := child.validate(root); err != nil {
			return err
		}
	}
	return nil
}

// eval computes the subtree. Missing variables read as 0.0.
func (n *Node) eval(vars map[string]any, root *Node) (any, error) {
	switch n.Kind {
	case ConstNode:
		return n.Value, nil
	case VarNode:
		if v, ok := vars[n.Name]; ok {
			return v, nil
		}
		return 0.0, nil
	}

	args := make([]any, len(n.Children))
	for i, child := range n.Children {
		v, err := child.eval(vars, root)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if err := n.checkTypes(root); err != nil {
		return nil, err
	}
	result := n.fn.Fn(args...)
	if n.Type != nil && reflect.TypeOf(result) != n.Type {
		return nil, &TypeError{Func: n.Name, Want: n.Type, Got: reflect.TypeOf(result), Tree: dumpString(root)}
	}
	return result, nil
}

// split copies the subtree and picks a crossover fragment inside the copy.
// At each function node a direct child is chosen at random; it becomes the
// fragment with probability 1/3, or always when it is terminal, otherwise
// the choice recurses into it. The fragment is parent.Children[idx] in the
// returned copy. ok is false when n has no children to cut.
func (n *Node) split(rng *rand.Rand) (cp, parent *Node, idx int, ok bool) {
	if n.Terminal() {
		return n.Clone(), nil, 0, false
	}
	pick := rng.Intn(len(n.Children))
	chosen := n.Children[pick]
	if rng.Float64() < 1.0/3 || chosen.Terminal() {
		cp = n.Clone()
		return cp, cp, pick, true
	}

	c := *n
	cp = &c
	cp.Children = make([]*Node, len(n.Children))
	for i, child := range n.Children {
		if i == pick {
			// chosen is not terminal, so the recursive split always cuts.
			cp.Children[i], parent, idx, ok = child.split(rng)
			continue
		}
		cp.Children[i] = child.Clone()
	}
	return cp, parent, idx, ok
}

// record converts the subtree for checkpoints.
func (n *Node) record() genetic.NodeRecord {
	rec := genetic.NodeRecord{Kind: uint8(n.Kind), Name: n.Name, Value: n.Value}
	for _, child := range n.Children {
		rec.Children = append(rec.Children, child.record())
	}
	return rec
}
