package schema

type FieldType uint8

const (
	UnknownFieldType FieldType = iota
	StrFieldType
	IntFieldType
	FloatFieldType
	BoolFieldType
)

func (f FieldType) String() string {
	switch f {
	case StrFieldType:
		return "str"
	case IntFieldType:
		return "int"
	case FloatFieldType:
		return "float"
	case BoolFieldType:
		return "bool"
	default:
		return "unknown"
	}
}

func ParseFieldType(name string) (FieldType, bool) {
	switch name {
	case "str":
		return StrFieldType, true
	case "int":
		return IntFieldType, true
	case "float":
		return FloatFieldType, true
	case "bool":
		return BoolFieldType, true
	default:
		return UnknownFieldType, false
	}
}

func (f FieldType) IsNumeric() bool {
	return f == IntFieldType || f == FloatFieldType
}

// ZeroValue is used to fill columns missing from an inserted row
func (f FieldType) ZeroValue() Value {
	switch f {
	case StrFieldType:
		return StringValue("")
	case IntFieldType:
		return IntValue(0)
	case FloatFieldType:
		return FloatValue(0)
	case BoolFieldType:
		return BoolValue(false)
	default:
		return Value{}
	}
}
