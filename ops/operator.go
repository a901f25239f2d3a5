package ops

import (
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
)

type Category uint8

const (
	Logical Category = iota
	Comparison
	Equality
	Arithmetic
)

func (c Category) String() string {
	switch c {
	case Logical:
		return "logical"
	case Comparison:
		return "comparison"
	case Equality:
		return "equality"
	case Arithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

const (
	Not = "!"
	And = "&&"
	Or  = "||"

	Lt = "<"
	Le = "<="
	Gt = ">"
	Ge = ">="

	Eq = "=="
	Ne = "!="

	Add = "+"
	Sub = "-"
	Mul = "*"
	Div = "/"
)

// Operator is plain data, evaluation is picked by Category.
type Operator struct {
	Name     string
	Arity    int
	Category Category
}

var operators = map[string]Operator{
	Not: {Name: Not, Arity: 1, Category: Logical},
	And: {Name: And, Arity: 2, Category: Logical},
	Or:  {Name: Or, Arity: 2, Category: Logical},

	Lt: {Name: Lt, Arity: 2, Category: Comparison},
	Le: {Name: Le, Arity: 2, Category: Comparison},
	Gt: {Name: Gt, Arity: 2, Category: Comparison},
	Ge: {Name: Ge, Arity: 2, Category: Comparison},

	Eq: {Name: Eq, Arity: 2, Category: Equality},
	Ne: {Name: Ne, Arity: 2, Category: Equality},

	Add: {Name: Add, Arity: 2, Category: Arithmetic},
	Sub: {Name: Sub, Arity: 2, Category: Arithmetic},
	Mul: {Name: Mul, Arity: 2, Category: Arithmetic},
	Div: {Name: Div, Arity: 2, Category: Arithmetic},
}

var aliases = map[string]string{
	"not": Not,
	"and": And,
	"or":  Or,
}

func Lookup(name string) (Operator, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}

	op, ok := operators[name]
	return op, ok
}

// Calculate checks arity first, then operand types, then evaluates.
func (op Operator) Calculate(args ...schema.Value) (schema.Value, error) {

	if len(args) != op.Arity {
		return schema.Value{}, dberr.New(dberr.ParamCountMismatch, "operator %s expects %d operands, got %d", op.Name, op.Arity, len(args))
	}

	switch op.Category {
	case Logical:
		return op.logical(args)
	case Comparison:
		return op.compare(args[0], args[1])
	case Equality:
		return op.equality(args[0], args[1])
	case Arithmetic:
		return op.arithmetic(args[0], args[1])
	default:
		return schema.Value{}, dberr.New(dberr.Unsupported, "operator %s has unknown category", op.Name)
	}
}

func typeError(op Operator, args ...schema.Value) error {
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = a.Type().String()
	}
	return dberr.New(dberr.TypeMismatch, "operator %s (%s) does not accept %v", op.Name, op.Category, types)
}
