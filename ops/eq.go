package ops

import "github.com/dot5enko/simple-chunk-db/schema"

// operands of different runtime types: == is an error, != is true
func (op Operator) equality(a, b schema.Value) (schema.Value, error) {

	if !a.SameType(b) {
		if op.Name == Ne {
			return schema.BoolValue(true), nil
		}
		return schema.Value{}, typeError(op, a, b)
	}

	eq := a.Equal(b)
	if op.Name == Ne {
		eq = !eq
	}

	return schema.BoolValue(eq), nil
}
