package schema

import (
	"maps"
	"slices"

	"github.com/dot5enko/simple-chunk-db/dberr"
)

type Row map[string]Value

func (r Row) Clone() Row {
	return maps.Clone(r)
}

func (r Row) Equal(o Row) bool {
	return maps.EqualFunc(r, o, Value.Equal)
}

func CloneRows(rows []Row) []Row {
	result := make([]Row, len(rows))
	for i, r := range rows {
		result[i] = r.Clone()
	}
	return result
}

// Metadata is the ordered column list of a table. Field order defines the
// column order of row-oriented chunk files.
type Metadata struct {
	TableName string      `json:"table_name"`
	Fields    []FieldInfo `json:"fields,omitempty"`
}

func NewMetadata(name string, fields ...FieldInfo) Metadata {
	return Metadata{TableName: name, Fields: fields}
}

func (m Metadata) Clone() Metadata {
	return Metadata{TableName: m.TableName, Fields: slices.Clone(m.Fields)}
}

func (m Metadata) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

func (m Metadata) Field(name string) (FieldInfo, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldInfo{}, false
}

func (m Metadata) HasField(name string) bool {
	_, ok := m.Field(name)
	return ok
}

// SameFields compares field lists element-wise, table names are ignored.
func (m Metadata) SameFields(o Metadata) bool {
	return slices.Equal(m.Fields, o.Fields)
}

func (m Metadata) IsSchemaless() bool {
	return len(m.Fields) == 0
}

func (m Metadata) validateFields() error {
	seen := make(map[string]struct{}, len(m.Fields))

	for _, f := range m.Fields {
		if f.Name == "" {
			return dberr.New(dberr.EmptyNotAllowed, "table %s has a field with empty name", m.TableName)
		}

		if _, dup := seen[f.Name]; dup {
			return dberr.New(dberr.InvalidArgument, "table %s has duplicate field %q", m.TableName, f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Type == UnknownFieldType {
			return dberr.New(dberr.Unsupported, "field %q of table %s has unknown type", f.Name, m.TableName)
		}
	}

	return nil
}

// Project narrows a row to the declared fields, for schemaless metadata the row is cloned.
func (m Metadata) Project(r Row) Row {
	if m.IsSchemaless() {
		return r.Clone()
	}

	out := make(Row, len(m.Fields))
	for _, f := range m.Fields {
		if v, ok := r[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}
