package table

import (
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
)

// normalize shapes an incoming row to the column list of a fixed-schema table:
// unknown columns are rejected, missing ones get the zero value of their type.
func (t *Table) normalize(row schema.Row) (schema.Row, error) {

	if t.meta.IsSchemaless() {
		for k, v := range row {
			if k == "" {
				return nil, dberr.New(dberr.EmptyNotAllowed, "document has an empty key")
			}
			if !v.IsValid() {
				return nil, dberr.New(dberr.InvalidArgument, "document key %q has no value", k)
			}
		}
		return row.Clone(), nil
	}

	for k := range row {
		if !t.meta.HasField(k) {
			return nil, dberr.New(dberr.InvalidArgument, "table %s has no field %q", t.meta.TableName, k)
		}
	}

	out := make(schema.Row, len(t.meta.Fields))

	for _, f := range t.meta.Fields {
		v, ok := row[f.Name]
		if !ok {
			v = f.Type.ZeroValue()
			t.logger.Warn("use default value for missing field", "field", f.Name, "value", v.String())
		}

		coerced, err := coerceTo(f, v)
		if err != nil {
			return nil, err
		}

		out[f.Name] = coerced
	}

	return out, nil
}

func (t *Table) checkValues(values schema.Row) error {

	if len(values) == 0 {
		return dberr.New(dberr.EmptyNotAllowed, "update has no values")
	}

	if t.meta.IsSchemaless() {
		return nil
	}

	for k, v := range values {
		f, ok := t.meta.Field(k)
		if !ok {
			return dberr.New(dberr.InvalidArgument, "table %s has no field %q", t.meta.TableName, k)
		}

		if _, err := coerceTo(f, v); err != nil {
			return err
		}
	}

	return nil
}

// coerce is only called on values already accepted by checkValues
func (t *Table) coerce(name string, v schema.Value) schema.Value {
	f, ok := t.meta.Field(name)
	if !ok {
		return v
	}

	coerced, err := coerceTo(f, v)
	if err != nil {
		return v
	}
	return coerced
}

// ints widen into float columns, nothing else converts
func coerceTo(f schema.FieldInfo, v schema.Value) (schema.Value, error) {
	if v.Type() == f.Type {
		return v, nil
	}

	if f.Type == schema.FloatFieldType && v.Type() == schema.IntFieldType {
		return schema.FloatValue(float64(v.Int())), nil
	}

	return schema.Value{}, dberr.New(dberr.TypeMismatch, "field %q expects %s, got %s", f.Name, f.Type, v.Type())
}
