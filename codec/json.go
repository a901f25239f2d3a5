package codec

import (
	"bytes"
	"encoding/json"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
)

// JSON stores a chunk as one array of documents, used by schemaless tables.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(meta schema.Metadata, rows []schema.Row) ([]byte, error) {
	if rows == nil {
		rows = []schema.Row{}
	}

	encoded, err := json.Marshal(rows)
	if err != nil {
		return nil, dberr.Wrap(dberr.InvalidArgument, err, "unable to encode rows of table %s", meta.TableName)
	}

	return encoded, nil
}

func (JSON) Decode(meta schema.Metadata, data []byte) ([]schema.Row, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var rows []schema.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, dberr.Wrap(dberr.Inconsistent, err, "unable to decode json chunk of table %s", meta.TableName)
	}

	return rows, nil
}
