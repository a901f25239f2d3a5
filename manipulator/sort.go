package manipulator

import (
	"slices"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/lists"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

// Sort orders the table by one column with the configured merge fan-in.
func (m *Manipulator) Sort(src *table.Table, column string, asc bool) (*table.Table, error) {
	return m.SortWays(src, column, asc, m.ways)
}

// SortWays is an external merge sort. Pass 0 sorts runs of one chunk each,
// every following pass merges up to ways runs into one until a single run is left.
// Rows with equal keys keep their source order.
func (m *Manipulator) SortWays(src *table.Table, column string, asc bool, ways int) (*table.Table, error) {

	if ways < 2 {
		return nil, dberr.New(dberr.InvalidArgument, "merge sort needs at least 2 ways, got %d", ways)
	}

	if err := requireField(src, column); err != nil {
		return nil, err
	}

	cmp := rowComparator(column, asc)

	current, err := m.sortRuns(src, cmp)
	if err != nil {
		return nil, err
	}
	m.metrics.SortPasses.Inc()

	// every run spans runChunks chunks, only the last one may be shorter
	runChunks := 1
	passes := 1

	for current.ChunkCount() > runChunks {

		next, mergeErr := m.mergePass(current, cmp, ways, runChunks)
		m.discard(current)

		if mergeErr != nil {
			return nil, mergeErr
		}

		current = next
		runChunks *= ways
		passes++
		m.metrics.SortPasses.Inc()
	}

	m.logger.Debug("sorted", "table", src.Name(), "column", column, "asc", asc, "ways", ways, "passes", passes)
	return current, nil
}

func rowComparator(column string, asc bool) lists.CompareFunc[schema.Row] {
	return func(a, b schema.Row) (int, error) {
		av, err := keyOf(a, column)
		if err != nil {
			return 0, err
		}

		bv, err := keyOf(b, column)
		if err != nil {
			return 0, err
		}

		c, err := av.Compare(bv)
		if err != nil {
			return 0, err
		}

		if !asc {
			c = -c
		}
		return c, nil
	}
}

// sortRuns regroups the source into full chunks and sorts each one in memory.
// Source chunks may be partially filled after deletes, runs never are.
func (m *Manipulator) sortRuns(src *table.Table, cmp lists.CompareFunc[schema.Row]) (*table.Table, error) {

	dst, err := m.manager.CreateTmpTable(src.Metadata())
	if err != nil {
		return nil, err
	}

	limit := dst.MaxChunkSize()
	run := make([]schema.Row, 0, limit)

	flush := func() error {
		if len(run) == 0 {
			return nil
		}

		var cmpErr error
		slices.SortStableFunc(run, func(a, b schema.Row) int {
			c, err := cmp(a, b)
			if err != nil && cmpErr == nil {
				cmpErr = err
			}
			return c
		})

		if cmpErr != nil {
			return cmpErr
		}

		if err := dst.InsertBulk(run); err != nil {
			return err
		}
		run = run[:0]
		return nil
	}

	scanErr := src.ForEachChunk(func(_ int, rows []schema.Row) error {
		for _, row := range rows {
			run = append(run, row)
			if len(run) == limit {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if scanErr == nil {
		scanErr = flush()
	}

	if scanErr != nil {
		m.discard(dst)
		return nil, scanErr
	}

	return dst, nil
}

// mergePass merges groups of ways consecutive runs into a new table
func (m *Manipulator) mergePass(src *table.Table, cmp lists.CompareFunc[schema.Row], ways int, runChunks int) (*table.Table, error) {

	dst, err := m.manager.CreateTmpTable(src.Metadata())
	if err != nil {
		return nil, err
	}

	total := src.ChunkCount()
	groupChunks := runChunks * ways
	w := newRowWriter(dst)

	for groupStart := 0; groupStart < total; groupStart += groupChunks {

		var sources []lists.Source[schema.Row]
		for runStart := groupStart; runStart < min(groupStart+groupChunks, total); runStart += runChunks {
			sources = append(sources, newChunkRangeSource(src, runStart, min(runStart+runChunks, total)))
		}

		if mergeErr := mergeInto(w, cmp, sources); mergeErr != nil {
			m.discard(dst)
			return nil, mergeErr
		}
	}

	if flushErr := w.Flush(); flushErr != nil {
		m.discard(dst)
		return nil, flushErr
	}

	return dst, nil
}

func mergeInto(w *rowWriter, cmp lists.CompareFunc[schema.Row], sources []lists.Source[schema.Row]) error {

	merger, err := lists.NewMerger(cmp, sources...)
	if err != nil {
		return err
	}

	for {
		row, ok, nextErr := merger.Next()
		if nextErr != nil {
			return nextErr
		}

		if !ok {
			return nil
		}

		if writeErr := w.Write(row); writeErr != nil {
			return writeErr
		}
	}
}

// chunkRangeSource reads one run, a chunk is loaded only when the previous one is used up
type chunkRangeSource struct {
	t        *table.Table
	next     int
	end      int
	rows     []schema.Row
	position int
}

func newChunkRangeSource(t *table.Table, start, end int) *chunkRangeSource {
	return &chunkRangeSource{t: t, next: start, end: end}
}

func (s *chunkRangeSource) Next() (schema.Row, bool, error) {

	for s.position >= len(s.rows) {
		if s.next >= s.end {
			return nil, false, nil
		}

		rows, err := s.t.LoadChunk(s.next)
		if err != nil {
			return nil, false, err
		}

		s.next++
		s.rows = rows
		s.position = 0
	}

	row := s.rows[s.position]
	s.position++
	return row, true, nil
}
