package expr

import (
	"strconv"
	"strings"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/ops"
	"github.com/dot5enko/simple-chunk-db/schema"
)

const (
	OpKey = "op"
	V1Key = "v1"
	V2Key = "v2"

	// "{slot}::{field}" references a field of the row in that slot
	RefSeparator = "::"
)

// Build parses a literal or a nested {op, v1[, v2]} document into a tree.
// Field names are not checked against any schema here, a missing field
// surfaces when the tree is evaluated.
func Build(expression any) (*Tree, error) {
	root, err := buildNode(expression)
	if err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

func buildNode(expression any) (Node, error) {

	doc, isDoc := expression.(map[string]any)
	if !isDoc {
		return buildLeaf(expression)
	}

	rawName, hasOp := doc[OpKey]
	if !hasOp {
		return nil, dberr.New(dberr.InvalidArgument, "expression has no %q key", OpKey)
	}

	for key := range doc {
		if key != OpKey && key != V1Key && key != V2Key {
			return nil, dberr.New(dberr.InvalidArgument, "unknown key %q in expression, expected %q, %q or %q", key, OpKey, V1Key, V2Key)
		}
	}

	name, isString := rawName.(string)
	if !isString {
		return nil, dberr.New(dberr.InvalidArgument, "operator name must be a string, got %T", rawName)
	}

	op, known := ops.Lookup(name)
	if !known {
		return nil, dberr.New(dberr.Unsupported, "unsupported operator %q", name)
	}

	node := &OpNode{Op: op}

	v1, hasV1 := doc[V1Key]
	v2, hasV2 := doc[V2Key]

	if hasV2 && !hasV1 {
		return nil, dberr.New(dberr.InvalidArgument, "operator %s has %q without %q", name, V2Key, V1Key)
	}

	for _, present := range []struct {
		ok  bool
		val any
	}{{hasV1, v1}, {hasV2, v2}} {
		if !present.ok {
			continue
		}

		child, err := buildNode(present.val)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	return node, nil
}

func buildLeaf(raw any) (Node, error) {

	if str, ok := raw.(string); ok && strings.Contains(str, RefSeparator) {
		return ParseRef(str)
	}

	v, err := schema.FromAny(raw)
	if err != nil {
		return nil, err
	}

	return &Literal{Value: v}, nil
}

func ParseRef(raw string) (*Ref, error) {
	parts := strings.Split(raw, RefSeparator)
	if len(parts) != 2 {
		return nil, dberr.New(dberr.InvalidArgument, "malformed field reference %q", raw)
	}

	slot, convErr := strconv.Atoi(parts[0])
	if convErr != nil || slot < 0 {
		return nil, dberr.New(dberr.InvalidArgument, "field reference %q has invalid slot %q", raw, parts[0])
	}

	if parts[1] == "" {
		return nil, dberr.New(dberr.InvalidArgument, "field reference %q has no field name", raw)
	}

	return &Ref{Slot: slot, Name: parts[1]}, nil
}
