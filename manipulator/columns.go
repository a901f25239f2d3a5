package manipulator

import (
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

// Projection keeps the requested columns in the requested order. Rows are
// narrowed to the projected fields, schemaless rows keep the requested keys they have.
func (m *Manipulator) Projection(src *table.Table, columns []string) (*table.Table, error) {

	if len(columns) == 0 {
		return nil, dberr.New(dberr.InvalidArgument, "projection of table %s has no columns", src.Name())
	}

	srcMeta := src.Metadata()
	projected := schema.NewMetadata(srcMeta.TableName)

	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if _, dup := seen[col]; dup {
			return nil, dberr.New(dberr.InvalidArgument, "column %q is projected twice", col)
		}
		seen[col] = struct{}{}

		if srcMeta.IsSchemaless() {
			continue
		}

		field, ok := srcMeta.Field(col)
		if !ok {
			return nil, dberr.New(dberr.InvalidArgument, "table %s has no field %q", src.Name(), col)
		}
		projected.Fields = append(projected.Fields, field)
	}

	dst, err := m.manager.CreateTmpTable(projected)
	if err != nil {
		return nil, err
	}

	copyErr := copyInto(dst, src, func(row schema.Row) (schema.Row, error) {
		if !projected.IsSchemaless() {
			return projected.Project(row), nil
		}

		out := make(schema.Row, len(columns))
		for _, col := range columns {
			if v, ok := row[col]; ok {
				out[col] = v
			}
		}
		return out, nil
	})

	if copyErr != nil {
		m.discard(dst)
		return nil, copyErr
	}

	return dst, nil
}

// RenameFields creates an empty tmp table whose fields are renamed, rows are not copied.
func (m *Manipulator) RenameFields(src *table.Table, renames map[string]string) (*table.Table, error) {

	meta := src.Metadata()

	for from, to := range renames {
		if to == "" {
			return nil, dberr.New(dberr.EmptyNotAllowed, "field %q renamed to empty name", from)
		}

		if !meta.IsSchemaless() && !meta.HasField(from) {
			return nil, dberr.New(dberr.InvalidArgument, "table %s has no field %q to rename", src.Name(), from)
		}
	}

	for i, f := range meta.Fields {
		if to, ok := renames[f.Name]; ok {
			meta.Fields[i].Name = to
		}
	}

	return m.manager.CreateTmpTable(meta)
}

// Rename is RenameFields followed by copying the rows under their new keys.
func (m *Manipulator) Rename(src *table.Table, renames map[string]string) (*table.Table, error) {

	dst, err := m.RenameFields(src, renames)
	if err != nil {
		return nil, err
	}

	copyErr := copyInto(dst, src, func(row schema.Row) (schema.Row, error) {
		out := make(schema.Row, len(row))
		for k, v := range row {
			if to, ok := renames[k]; ok {
				k = to
			}

			if _, clash := out[k]; clash {
				return nil, dberr.New(dberr.InvalidArgument, "rename produces field %q twice", k)
			}
			out[k] = v
		}
		return out, nil
	})

	if copyErr != nil {
		m.discard(dst)
		return nil, copyErr
	}

	return dst, nil
}

// Concat appends the rows of every table, in table order, into one tmp table.
// All tables must have element-wise identical fields.
func (m *Manipulator) Concat(tables ...*table.Table) (*table.Table, error) {

	if len(tables) == 0 {
		return nil, dberr.New(dberr.InvalidArgument, "nothing to concat")
	}

	meta := tables[0].Metadata()
	for _, t := range tables[1:] {
		if !meta.SameFields(t.Metadata()) {
			return nil, dberr.New(dberr.InvalidArgument, "unable to concat %s with %s, fields differ", tables[0].Name(), t.Name())
		}
	}

	dst, err := m.manager.CreateTmpTable(meta)
	if err != nil {
		return nil, err
	}

	w := newRowWriter(dst)

	for _, t := range tables {
		copyErr := t.ForEachChunk(func(_ int, rows []schema.Row) error {
			for _, row := range rows {
				if writeErr := w.Write(row); writeErr != nil {
					return writeErr
				}
			}
			return nil
		})

		if copyErr != nil {
			m.discard(dst)
			return nil, copyErr
		}
	}

	if flushErr := w.Flush(); flushErr != nil {
		m.discard(dst)
		return nil, flushErr
	}

	return dst, nil
}
