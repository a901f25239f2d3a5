package ops

import (
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
)

// int op int stays int for + - *, a float operand promotes, / always yields a float
func (op Operator) arithmetic(a, b schema.Value) (schema.Value, error) {

	if !a.IsNumeric() || !b.IsNumeric() {
		return schema.Value{}, typeError(op, a, b)
	}

	if op.Name != Div && a.Type() == schema.IntFieldType && b.Type() == schema.IntFieldType {
		x, y := a.Int(), b.Int()

		switch op.Name {
		case Add:
			return schema.IntValue(x + y), nil
		case Sub:
			return schema.IntValue(x - y), nil
		default:
			return schema.IntValue(x * y), nil
		}
	}

	x, _ := a.AsFloat()
	y, _ := b.AsFloat()

	switch op.Name {
	case Add:
		return schema.FloatValue(x + y), nil
	case Sub:
		return schema.FloatValue(x - y), nil
	case Mul:
		return schema.FloatValue(x * y), nil
	default:
		if y == 0 {
			return schema.Value{}, dberr.New(dberr.InvalidArgument, "division by zero")
		}
		return schema.FloatValue(x / y), nil
	}
}
