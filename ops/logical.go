package ops

import "github.com/dot5enko/simple-chunk-db/schema"

func (op Operator) logical(args []schema.Value) (schema.Value, error) {

	for _, a := range args {
		if a.Type() != schema.BoolFieldType {
			return schema.Value{}, typeError(op, args...)
		}
	}

	switch op.Name {
	case Not:
		return schema.BoolValue(!args[0].Bool()), nil
	case And:
		return schema.BoolValue(args[0].Bool() && args[1].Bool()), nil
	default:
		return schema.BoolValue(args[0].Bool() || args[1].Bool()), nil
	}
}
