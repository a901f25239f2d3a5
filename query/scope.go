package query

import (
	"strings"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/expr"
	"github.com/dot5enko/simple-chunk-db/manipulator"
)

// scope maps row slots of a query to the qualifier their fields carry in the
// resolved source. A plain table source has no qualifiers.
type scope struct {
	qualifiers []string
}

// column is a parsed "name", "::name" or "slot::name" spec
type column struct {
	slot    int
	hasSlot bool
	name    string
}

func parseColumn(spec string) (column, error) {

	if !strings.Contains(spec, expr.RefSeparator) {
		if spec == "" {
			return column{}, dberr.New(dberr.EmptyNotAllowed, "empty column name")
		}
		return column{name: spec}, nil
	}

	if strings.HasPrefix(spec, expr.RefSeparator) {
		name := strings.TrimPrefix(spec, expr.RefSeparator)
		if name == "" || strings.Contains(name, expr.RefSeparator) {
			return column{}, dberr.New(dberr.InvalidArgument, "malformed column %q", spec)
		}
		return column{name: name}, nil
	}

	ref, err := expr.ParseRef(spec)
	if err != nil {
		return column{}, err
	}

	return column{slot: ref.Slot, hasSlot: true, name: ref.Name}, nil
}

func (s scope) resolve(c column) (string, error) {

	if len(s.qualifiers) == 0 {
		if c.slot != 0 {
			return "", dberr.New(dberr.InvalidArgument, "column %s references slot %d of a single table", c.name, c.slot)
		}
		return c.name, nil
	}

	if !c.hasSlot {
		for _, q := range s.qualifiers {
			if strings.HasPrefix(c.name, q+manipulator.QualifierSeparator) {
				return c.name, nil
			}
		}
	}

	if c.slot >= len(s.qualifiers) {
		return "", dberr.New(dberr.InvalidArgument, "column %s references slot %d, source has %d", c.name, c.slot, len(s.qualifiers))
	}

	q := s.qualifiers[c.slot]
	if strings.HasPrefix(c.name, q+manipulator.QualifierSeparator) {
		return c.name, nil
	}

	return manipulator.QualifiedName(q, c.name), nil
}

func (s scope) resolveSpec(spec string) (string, error) {
	c, err := parseColumn(spec)
	if err != nil {
		return "", err
	}
	return s.resolve(c)
}

// resolveOutput resolves a desired column, an aggregate suffix is kept after the resolved base name
func (s scope) resolveOutput(spec string) (string, *manipulator.ReduceOption, error) {

	c, err := parseColumn(spec)
	if err != nil {
		return "", nil, err
	}

	opt, isAggregate := manipulator.SplitAggregateName(c.name)
	if !isAggregate {
		name, resolveErr := s.resolve(c)
		return name, nil, resolveErr
	}

	c.name = opt.Column
	base, err := s.resolve(c)
	if err != nil {
		return "", nil, err
	}

	opt.Column = base
	return opt.OutputName(), &opt, nil
}

// rebind points every reference of a filter at the single resolved row
func (s scope) rebind(tree *expr.Tree) error {
	return tree.Rebind(func(slot int, name string) (int, string, error) {
		resolved, err := s.resolve(column{slot: slot, hasSlot: true, name: name})
		return 0, resolved, err
	})
}
