package query

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/xeipuuv/gojsonschema"
)

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["src_table"],
  "additionalProperties": false,
  "properties": {
    "src_table": {
      "oneOf": [
        {"type": "string", "minLength": 1},
        {"$ref": "#/definitions/join"},
        {"$ref": "#"}
      ]
    },
    "alias": {"type": "string", "minLength": 1},
    "group_by": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "row_filter": {},
    "order_by": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["column"],
        "additionalProperties": false,
        "properties": {
          "column": {"type": "string", "minLength": 1},
          "is_asc": {"type": "boolean"}
        }
      }
    },
    "desired_columns": {"type": "array", "items": {"type": "string"}}
  },
  "definitions": {
    "join": {
      "type": "object",
      "required": ["t1", "t2", "join_condition"],
      "additionalProperties": false,
      "properties": {
        "t1": {"type": "string", "minLength": 1},
        "t2": {"type": "string", "minLength": 1},
        "join_condition": {"type": "object"},
        "join_type": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
})

// Document is one query. SrcTable is a table name, a Join or a nested Document.
type Document struct {
	SrcTable       json.RawMessage `json:"src_table"`
	Alias          string          `json:"alias,omitempty"`
	GroupBy        []string        `json:"group_by,omitempty"`
	RowFilter      any             `json:"row_filter,omitempty"`
	OrderBy        []OrderBy       `json:"order_by,omitempty"`
	DesiredColumns []string        `json:"desired_columns,omitempty"`
}

type OrderBy struct {
	Column string `json:"column"`
	IsAsc  *bool  `json:"is_asc,omitempty"`
}

// Asc defaults to true
func (o OrderBy) Asc() bool {
	return o.IsAsc == nil || *o.IsAsc
}

type Join struct {
	T1            string `json:"t1"`
	T2            string `json:"t2"`
	JoinCondition any    `json:"join_condition"`
	JoinType      string `json:"join_type,omitempty"`
}

// Parse validates a raw query against the document schema and decodes it.
// Numbers keep their literal form so integral values stay ints.
func Parse(raw []byte) (*Document, error) {

	var generic any
	if err := decode(raw, &generic); err != nil {
		return nil, err
	}

	s, err := compiledSchema()
	if err != nil {
		return nil, dberr.Wrap(dberr.Internal, err, "unable to compile query schema")
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(generic))
	if err != nil {
		return nil, dberr.Wrap(dberr.InvalidArgument, err, "unable to validate query")
	}

	if !result.Valid() {
		problems := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			problems[i] = e.String()
		}
		return nil, dberr.New(dberr.InvalidArgument, "invalid query: %s", strings.Join(problems, "; "))
	}

	doc := &Document{}
	if err := decode(raw, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func decode(raw []byte, into any) error {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()

	if err := d.Decode(into); err != nil {
		return dberr.Wrap(dberr.InvalidArgument, err, "malformed query document")
	}
	return nil
}

type sourceKind uint8

const (
	tableSource sourceKind = iota
	joinSource
	subQuerySource
)

// source tells which of the three source forms SrcTable holds
// qualifier names a sub-query's columns: its alias, else the plain table it reads,
// else fallback
func (d *Document) qualifier(fallback string) string {
	if d.Alias != "" {
		return d.Alias
	}

	if kind, name, _, _, err := d.source(); err == nil && kind == tableSource {
		return name
	}

	return fallback
}

func (d *Document) source() (sourceKind, string, *Join, *Document, error) {

	raw := bytes.TrimSpace(d.SrcTable)
	if len(raw) == 0 {
		return 0, "", nil, nil, dberr.New(dberr.InvalidArgument, "query has no src_table")
	}

	if raw[0] == '"' {
		var name string
		if err := decode(raw, &name); err != nil {
			return 0, "", nil, nil, err
		}
		return tableSource, name, nil, nil, nil
	}

	var probe map[string]json.RawMessage
	if err := decode(raw, &probe); err != nil {
		return 0, "", nil, nil, err
	}

	if _, isJoin := probe["t1"]; isJoin {
		j := &Join{}
		if err := decode(raw, j); err != nil {
			return 0, "", nil, nil, err
		}
		return joinSource, "", j, nil, nil
	}

	sub := &Document{}
	if err := decode(raw, sub); err != nil {
		return 0, "", nil, nil, err
	}
	return subQuerySource, "", nil, sub, nil
}
