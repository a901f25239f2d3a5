package expr

import (
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
)

// Selector is a boolean predicate over one or more row sets.
type Selector struct {
	tree *Tree
}

func NewSelector(expression any) (*Selector, error) {
	tree, err := Build(expression)
	if err != nil {
		return nil, err
	}
	return &Selector{tree: tree}, nil
}

func SelectorFromTree(tree *Tree) *Selector {
	return &Selector{tree: tree}
}

// MatchAll selects every row
func MatchAll() *Selector {
	return &Selector{tree: &Tree{root: &Literal{Value: schema.BoolValue(true)}}}
}

func (s *Selector) Tree() *Tree { return s.tree }

func (s *Selector) IsMatch(entries []schema.Row) (bool, error) {
	v, err := s.tree.Valuate(entries)
	if err != nil {
		return false, err
	}

	if v.Type() != schema.BoolFieldType {
		return false, dberr.New(dberr.TypeMismatch, "predicate %s evaluated to %s, not bool", s.tree, v.Type())
	}

	return v.Bool(), nil
}
