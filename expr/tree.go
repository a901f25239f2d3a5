package expr

import (
	"fmt"
	"strings"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/ops"
	"github.com/dot5enko/simple-chunk-db/schema"
)

type Node interface {
	Valuate(entries []schema.Row) (schema.Value, error)
	String() string
}

type Literal struct {
	Value schema.Value
}

func (l *Literal) Valuate([]schema.Row) (schema.Value, error) {
	return l.Value, nil
}

func (l *Literal) String() string { return l.Value.String() }

// Ref points at a field of one of the evaluated row sets.
type Ref struct {
	Slot int
	Name string
}

func (r *Ref) Valuate(entries []schema.Row) (schema.Value, error) {
	if r.Slot >= len(entries) {
		return schema.Value{}, dberr.New(dberr.InvalidArgument, "reference %s: slot out of range, %d entries", r, len(entries))
	}

	v, ok := entries[r.Slot][r.Name]
	if !ok {
		return schema.Value{}, dberr.New(dberr.InvalidArgument, "reference %s: no such field", r)
	}

	return v, nil
}

func (r *Ref) String() string { return fmt.Sprintf("%d%s%s", r.Slot, RefSeparator, r.Name) }

type OpNode struct {
	Op       ops.Operator
	Children []Node
}

// Valuate is post-order, the first failing child aborts evaluation.
func (n *OpNode) Valuate(entries []schema.Row) (schema.Value, error) {
	args := make([]schema.Value, len(n.Children))

	for i, c := range n.Children {
		v, err := c.Valuate(entries)
		if err != nil {
			return schema.Value{}, err
		}
		args[i] = v
	}

	return n.Op.Calculate(args...)
}

func (n *OpNode) String() string {
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = c.String()
	}

	if len(parts) == 1 {
		return fmt.Sprintf("(%s %s)", n.Op.Name, parts[0])
	}
	return "(" + strings.Join(parts, " "+n.Op.Name+" ") + ")"
}

type Tree struct {
	root Node
}

func (t *Tree) Root() Node { return t.root }

func (t *Tree) Valuate(entries []schema.Row) (schema.Value, error) {
	return t.root.Valuate(entries)
}

func (t *Tree) String() string { return t.root.String() }

// Refs lists field references in evaluation order.
func (t *Tree) Refs() []*Ref {
	var refs []*Ref
	walk(t.root, func(n Node) {
		if r, ok := n.(*Ref); ok {
			refs = append(refs, r)
		}
	})
	return refs
}

// Rebind rewrites every field reference in place.
func (t *Tree) Rebind(fn func(slot int, name string) (int, string, error)) error {
	for _, r := range t.Refs() {
		slot, name, err := fn(r.Slot, r.Name)
		if err != nil {
			return err
		}
		r.Slot, r.Name = slot, name
	}
	return nil
}

// IsEqualityConjunction reports whether the tree is a == or an && of such.
func (t *Tree) IsEqualityConjunction() bool {
	return isEqualityConjunction(t.root)
}

func isEqualityConjunction(n Node) bool {
	op, ok := n.(*OpNode)
	if !ok {
		return false
	}

	switch op.Op.Name {
	case ops.Eq:
		return true
	case ops.And:
		for _, c := range op.Children {
			if !isEqualityConjunction(c) {
				return false
			}
		}
		return len(op.Children) > 0
	default:
		return false
	}
}

func walk(n Node, fn func(Node)) {
	fn(n)
	if op, ok := n.(*OpNode); ok {
		for _, c := range op.Children {
			walk(c, fn)
		}
	}
}
