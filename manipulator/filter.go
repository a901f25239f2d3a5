package manipulator

import (
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

// Filter copies the rows matching the selector into a tmp table with the
// source's fields. The first evaluation error aborts the whole operation.
func (m *Manipulator) Filter(src *table.Table, selector table.Matcher) (*table.Table, error) {

	dst, err := m.manager.CreateTmpTable(src.Metadata())
	if err != nil {
		return nil, err
	}

	entries := make([]schema.Row, 1)

	copyErr := copyInto(dst, src, func(row schema.Row) (schema.Row, error) {
		entries[0] = row

		match, matchErr := selector.IsMatch(entries)
		if matchErr != nil || !match {
			return nil, matchErr
		}
		return row, nil
	})

	if copyErr != nil {
		m.logger.Error("filter failed", "table", src.Name(), "error", copyErr)
		m.discard(dst)
		return nil, copyErr
	}

	m.logger.Debug("filtered", "table", src.Name(), "into", dst.Name())
	return dst, nil
}
