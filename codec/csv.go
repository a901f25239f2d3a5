package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
)

// CSV stores one row per line, cells in metadata field order.
// Str cells escape '\\' and '\r', the csv reader folds "\r\n" into "\n".
type CSV struct{}

// emptyLine is a single quoted empty cell, a bare empty line is skipped by the reader
const emptyLine = "\"\"\n"

var cellEscaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`)

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

func unescapeCell(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}

		if i+1 == len(s) {
			return "", errors.New("dangling escape at end of cell")
		}

		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", errors.New("unknown escape \\" + string(s[i]))
		}
	}

	return b.String(), nil
}

func (CSV) Name() string { return "csv" }

func (CSV) Encode(meta schema.Metadata, rows []schema.Row) ([]byte, error) {

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	record := make([]string, len(meta.Fields))

	for rowIdx, row := range rows {
		for i, field := range meta.Fields {
			v, ok := row[field.Name]
			if !ok {
				return nil, dberr.New(dberr.InvalidArgument, "row %d has no value for field %q", rowIdx, field.Name)
			}

			if v.Type() != field.Type {
				return nil, dberr.New(dberr.TypeMismatch, "row %d field %q: expected %s, got %s", rowIdx, field.Name, field.Type, v.Type())
			}

			if field.Type == schema.StrFieldType {
				record[i] = escapeCell(v.Str())
			} else {
				record[i] = v.Text()
			}
		}

		if len(record) == 1 && record[0] == "" {
			w.Flush()
			buf.WriteString(emptyLine)
			continue
		}

		if err := w.Write(record); err != nil {
			return nil, dberr.Wrap(dberr.Internal, err, "unable to encode row %d", rowIdx)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, dberr.Wrap(dberr.Internal, err, "unable to flush csv")
	}

	return buf.Bytes(), nil
}

func (CSV) Decode(meta schema.Metadata, data []byte) ([]schema.Row, error) {

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(meta.Fields)
	r.ReuseRecord = true

	var rows []schema.Row

	for {
		record, readErr := r.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, dberr.Wrap(dberr.Inconsistent, readErr, "unable to decode csv chunk of table %s", meta.TableName)
		}

		row := make(schema.Row, len(meta.Fields))

		for i, field := range meta.Fields {
			cell := record[i]
			if field.Type == schema.StrFieldType {
				unescaped, escErr := unescapeCell(cell)
				if escErr != nil {
					return nil, dberr.Wrap(dberr.Inconsistent, escErr, "column %q of table %s", field.Name, meta.TableName)
				}
				cell = unescaped
			}

			v, parseErr := schema.ParseText(field.Type, cell)
			if parseErr != nil {
				return nil, dberr.Wrap(dberr.Inconsistent, parseErr, "column %q of table %s", field.Name, meta.TableName)
			}
			row[field.Name] = v
		}

		rows = append(rows, row)
	}

	return rows, nil
}
