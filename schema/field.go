package schema

import (
	"encoding/json"

	"github.com/dot5enko/simple-chunk-db/dberr"
)

type FieldInfo struct {
	Name string
	Type FieldType
}

// on disk a field is a single-key object: {"col": "int"}
func (f FieldInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{f.Name: f.Type.String()})
}

func (f *FieldInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]string

	if err := json.Unmarshal(data, &raw); err != nil {
		return dberr.Wrap(dberr.InvalidArgument, err, "malformed field info")
	}

	if len(raw) != 1 {
		return dberr.New(dberr.InvalidArgument, "field info must have exactly one key, got %d", len(raw))
	}

	for name, typeName := range raw {
		typ, ok := ParseFieldType(typeName)
		if !ok {
			return dberr.New(dberr.Unsupported, "unsupported type %q for field %q", typeName, name)
		}

		f.Name = name
		f.Type = typ
	}

	return nil
}
