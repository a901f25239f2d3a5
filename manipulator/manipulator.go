package manipulator

import (
	"log/slog"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/manager"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

const (
	// joined fields are named "{table}.{field}"
	QualifierSeparator = "."
	// reduced fields are named "{field}__{AGGREGATE}"
	AggregateSeparator = "__"
)

func QualifiedName(tableName, field string) string {
	return tableName + QualifierSeparator + field
}

// Manipulator runs table level operations, every result is a fresh tmp table
// registered in the manager it was created with.
type Manipulator struct {
	manager *manager.Manager
	metrics *metrics.Metrics
	logger  *slog.Logger

	ways int
}

func New(mgr *manager.Manager) *Manipulator {
	return &Manipulator{
		manager: mgr,
		metrics: mgr.Metrics(),
		logger:  mgr.Logger().With("component", "manipulator"),
		ways:    mgr.Config().MergeWays,
	}
}

func (m *Manipulator) Manager() *manager.Manager { return m.manager }

// discard drops intermediate tables, user tables are never touched
func (m *Manipulator) discard(tables ...*table.Table) {
	for _, t := range tables {
		if t == nil || !m.manager.IsTmpTable(t.Name()) {
			continue
		}

		if err := m.manager.DropTable(t.Name()); err != nil {
			m.logger.Warn("unable to drop intermediate table", "table", t.Name(), "error", err)
		}
	}
}

// rowWriter buffers rows and flushes them to the table in chunk sized bulks
type rowWriter struct {
	dst   *table.Table
	buf   []schema.Row
	limit int

	written int
}

func newRowWriter(dst *table.Table) *rowWriter {
	limit := dst.MaxChunkSize()
	return &rowWriter{
		dst:   dst,
		buf:   make([]schema.Row, 0, limit),
		limit: limit,
	}
}

func (w *rowWriter) Write(row schema.Row) error {
	w.buf = append(w.buf, row)
	if len(w.buf) >= w.limit {
		return w.Flush()
	}
	return nil
}

func (w *rowWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	if err := w.dst.InsertBulk(w.buf); err != nil {
		return err
	}

	w.written += len(w.buf)
	w.buf = w.buf[:0]
	return nil
}

// copyInto streams every row of src through fn into dst, fn may skip a row by returning nil
func copyInto(dst *table.Table, src *table.Table, fn func(row schema.Row) (schema.Row, error)) error {

	w := newRowWriter(dst)

	err := src.ForEachChunk(func(_ int, rows []schema.Row) error {
		for _, row := range rows {
			out, fnErr := fn(row)
			if fnErr != nil {
				return fnErr
			}

			if out == nil {
				continue
			}

			if writeErr := w.Write(out); writeErr != nil {
				return writeErr
			}
		}
		return nil
	})

	if err != nil {
		return err
	}

	return w.Flush()
}

func keyOf(row schema.Row, column string) (schema.Value, error) {
	v, ok := row[column]
	if !ok {
		return schema.Value{}, dberr.New(dberr.InvalidArgument, "row has no field %q", column)
	}
	return v, nil
}

func requireField(t *table.Table, column string) error {
	meta := t.Metadata()
	if meta.IsSchemaless() || meta.HasField(column) {
		return nil
	}
	return dberr.New(dberr.InvalidArgument, "table %s has no field %q", t.Name(), column)
}
