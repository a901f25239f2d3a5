package ops

import "github.com/dot5enko/simple-chunk-db/schema"

func (op Operator) compare(a, b schema.Value) (schema.Value, error) {

	if !a.SameType(b) {
		return schema.Value{}, typeError(op, a, b)
	}

	cmp, err := a.Compare(b)
	if err != nil {
		return schema.Value{}, err
	}

	var result bool

	switch op.Name {
	case Lt:
		result = cmp < 0
	case Le:
		result = cmp <= 0
	case Gt:
		result = cmp > 0
	default:
		result = cmp >= 0
	}

	return schema.BoolValue(result), nil
}
