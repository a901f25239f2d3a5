package manipulator

import (
	"strings"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/expr"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
	RightJoin JoinType = "right"
	FullJoin  JoinType = "full"
)

func ParseJoinType(name string) (JoinType, error) {
	if name == "" {
		return InnerJoin, nil
	}

	switch jt := JoinType(strings.ToLower(name)); jt {
	case InnerJoin:
		return jt, nil
	case LeftJoin, RightJoin, FullJoin, "outer":
		return "", dberr.New(dberr.NotImplemented, "%s join is not implemented", jt)
	default:
		return "", dberr.New(dberr.InvalidArgument, "unknown join type %q", name)
	}
}

// Join pairs rows of two tables on an equality condition, slot 0 is the left
// row and slot 1 the right one. Output fields are "{table}.{field}", left first.
func (m *Manipulator) Join(left, right *table.Table, condition *expr.Selector) (*table.Table, error) {

	if !condition.Tree().IsEqualityConjunction() {
		return nil, dberr.New(dberr.Unsupported, "join condition %s is not an equality", condition.Tree())
	}

	for _, ref := range condition.Tree().Refs() {
		if ref.Slot > 1 {
			return nil, dberr.New(dberr.NotImplemented, "join condition %s references more than two tables", condition.Tree())
		}
	}

	if left.Name() == right.Name() {
		return nil, dberr.New(dberr.InvalidArgument, "self join of %s needs an alias", left.Name())
	}

	leftMeta, rightMeta := left.Metadata(), right.Metadata()

	joined := schema.NewMetadata(QualifiedName(left.Name(), right.Name()))
	if !leftMeta.IsSchemaless() && !rightMeta.IsSchemaless() {
		joined.Fields = append(qualifyFields(left.Name(), leftMeta.Fields), qualifyFields(right.Name(), rightMeta.Fields)...)
	}

	dst, err := m.manager.CreateTmpTable(joined)
	if err != nil {
		return nil, err
	}

	w := newRowWriter(dst)
	entries := make([]schema.Row, 2)

	// block nested loop, one chunk of each side in memory
	joinErr := left.ForEachChunk(func(_ int, leftRows []schema.Row) error {
		return right.ForEachChunk(func(_ int, rightRows []schema.Row) error {
			for _, l := range leftRows {
				for _, r := range rightRows {
					entries[0], entries[1] = l, r

					match, matchErr := condition.IsMatch(entries)
					if matchErr != nil {
						return matchErr
					}

					if !match {
						continue
					}

					if writeErr := w.Write(joinRows(left.Name(), l, right.Name(), r)); writeErr != nil {
						return writeErr
					}
				}
			}
			return nil
		})
	})

	if joinErr == nil {
		joinErr = w.Flush()
	}

	if joinErr != nil {
		m.logger.Error("join failed", "left", left.Name(), "right", right.Name(), "error", joinErr)
		m.discard(dst)
		return nil, joinErr
	}

	m.logger.Debug("joined", "left", left.Name(), "right", right.Name(), "rows", w.written, "into", dst.Name())
	return dst, nil
}

// Qualify copies the table with every field renamed to "{qualifier}.{field}".
func (m *Manipulator) Qualify(src *table.Table, qualifier string) (*table.Table, error) {

	if qualifier == "" {
		return nil, dberr.New(dberr.EmptyNotAllowed, "empty qualifier for table %s", src.Name())
	}

	meta := src.Metadata()
	meta.Fields = qualifyFields(qualifier, meta.Fields)

	dst, err := m.manager.CreateTmpTable(meta)
	if err != nil {
		return nil, err
	}

	copyErr := copyInto(dst, src, func(row schema.Row) (schema.Row, error) {
		out := make(schema.Row, len(row))
		for k, v := range row {
			out[QualifiedName(qualifier, k)] = v
		}
		return out, nil
	})

	if copyErr != nil {
		m.discard(dst)
		return nil, copyErr
	}

	return dst, nil
}

func qualifyFields(tableName string, fields []schema.FieldInfo) []schema.FieldInfo {
	out := make([]schema.FieldInfo, len(fields))
	for i, f := range fields {
		out[i] = schema.FieldInfo{Name: QualifiedName(tableName, f.Name), Type: f.Type}
	}
	return out
}

func joinRows(leftName string, l schema.Row, rightName string, r schema.Row) schema.Row {
	out := make(schema.Row, len(l)+len(r))
	for k, v := range l {
		out[QualifiedName(leftName, k)] = v
	}
	for k, v := range r {
		out[QualifiedName(rightName, k)] = v
	}
	return out
}
