package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"golang.org/x/exp/constraints"
)

// Value is a closed union of the scalar types a row can hold.
// The zero Value has UnknownFieldType and is never stored.
type Value struct {
	t FieldType

	i int64
	f float64
	b bool
	s string
}

func IntValue(v int64) Value { return Value{t: IntFieldType, i: v} }
func FloatValue(v float64) Value { return Value{t: FloatFieldType, f: v} }
func BoolValue(v bool) Value { return Value{t: BoolFieldType, b: v} }
func StringValue(v string) Value { return Value{t: StrFieldType, s: v} }
func (v Value) Type() FieldType { return v.t }
func (v Value) IsValid() bool { return v.t != UnknownFieldType }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool { return v.b }
func (v Value) Str() string { return v.s }
func (v Value) IsNumeric() bool { return v.t.IsNumeric() }
func (v Value) SameType(o Value) bool { return v.t == o.t }

// AsFloat widens a numeric value, bool is never numeric.
func (v Value) AsFloat() (float64, bool) {
	switch v.t {
	case IntFieldType:
		return float64(v.i), true
	case FloatFieldType:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) Any() any {
	switch v.t {
	case IntFieldType:
		return v.i
	case FloatFieldType:
		return v.f
	case BoolFieldType:
		return v.b
	case StrFieldType:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.t {
	case StrFieldType:
		return strconv.Quote(v.s)
	case UnknownFieldType:
		return "<nil>"
	default:
		return v.Text()
	}
}

// Equal is strict: values of different types are never equal, 1 != true.
func (v Value) Equal(o Value) bool {
	if v.t != o.t {
		return false
	}

	switch v.t {
	case IntFieldType:
		return v.i == o.i
	case FloatFieldType:
		return v.f == o.f
	case BoolFieldType:
		return v.b == o.b
	case StrFieldType:
		return v.s == o.s
	default:
		return true
	}
}

func compareOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Compare orders two values of the same type, false sorts before true.
func (v Value) Compare(o Value) (int, error) {
	if v.t != o.t {
		return 0, dberr.New(dberr.TypeMismatch, "unable to compare %s with %s", v.t, o.t)
	}

	switch v.t {
	case IntFieldType:
		return compareOrdered(v.i, o.i), nil
	case FloatFieldType:
		return compareOrdered(v.f, o.f), nil
	case StrFieldType:
		return compareOrdered(v.s, o.s), nil
	case BoolFieldType:
		return compareOrdered(b2i(v.b), b2i(o.b)), nil
	default:
		return 0, dberr.New(dberr.TypeMismatch, "unable to compare values of unknown type")
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Text is the csv cell form of the value
func (v Value) Text() string {
	switch v.t {
	case IntFieldType:
		return strconv.FormatInt(v.i, 10)
	case FloatFieldType:
		return formatFloat(v.f)
	case BoolFieldType:
		return strconv.FormatBool(v.b)
	case StrFieldType:
		return v.s
	default:
		return ""
	}
}

// floats always carry a fraction or exponent so they never decode back as ints
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func ParseText(t FieldType, raw string) (Value, error) {
	switch t {
	case StrFieldType:
		return StringValue(raw), nil
	case IntFieldType:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, dberr.Wrap(dberr.TypeMismatch, err, "unable to parse %q as int", raw)
		}
		return IntValue(i), nil
	case FloatFieldType:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, dberr.Wrap(dberr.TypeMismatch, err, "unable to parse %q as float", raw)
		}
		return FloatValue(f), nil
	case BoolFieldType:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, dberr.Wrap(dberr.TypeMismatch, err, "unable to parse %q as bool", raw)
		}
		return BoolValue(b), nil
	default:
		return Value{}, dberr.New(dberr.Unsupported, "unsupported field type %s", t)
	}
}

// FromAny converts a decoded json scalar (or a native go scalar) into a Value.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case Value:
		return v, nil
	case string:
		return StringValue(v), nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case float32:
		return FloatValue(float64(v)), nil
	case float64:
		return FloatValue(v), nil
	case json.Number:
		return ParseNumber(string(v))
	case nil:
		return Value{}, dberr.New(dberr.Unsupported, "null values are not supported")
	default:
		return Value{}, dberr.New(dberr.Unsupported, "unsupported value of type %T", raw)
	}
}

// ParseNumber keeps integral literals as ints, anything with a fraction or exponent is a float.
func ParseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), nil
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, dberr.Wrap(dberr.InvalidArgument, err, "unable to parse number %q", s)
	}
	return FloatValue(f), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.t {
	case FloatFieldType:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("unable to encode float %v as json", v.f)
		}
		return []byte(formatFloat(v.f)), nil
	case UnknownFieldType:
		return []byte("null"), nil
	default:
		return json.Marshal(v.Any())
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	if err := dec.Decode(&raw); err != nil {
		return err
	}

	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}

	*v = parsed
	return nil
}
