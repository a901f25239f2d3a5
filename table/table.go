package table

import (
	"log/slog"
	"sync"

	"github.com/dot5enko/simple-chunk-db/chunk"
	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/schema"
)

// Matcher decides whether a row takes part in an update or delete.
// Entries are the row sets a predicate may reference, slot 0 is the row itself.
type Matcher interface {
	IsMatch(entries []schema.Row) (bool, error)
}

// Table pairs metadata with the chunk store holding its rows.
type Table struct {
	meta  schema.Metadata
	store *chunk.Store

	kind   config.Kind
	logger *slog.Logger

	mu sync.RWMutex
}

func New(meta schema.Metadata, store *chunk.Store, kind config.Kind, logger *slog.Logger) *Table {
	return &Table{
		meta:   meta,
		store:  store,
		kind:   kind,
		logger: logger.With("table", meta.TableName),
	}
}

func (t *Table) Name() string {
	return t.meta.TableName
}

// Metadata returns a copy, the table's own column list is never altered.
func (t *Table) Metadata() schema.Metadata {
	return t.meta.Clone()
}

func (t *Table) Kind() config.Kind {
	return t.kind
}

func (t *Table) Store() *chunk.Store {
	return t.store
}

func (t *Table) MaxChunkSize() int {
	return t.store.MaxChunkSize()
}

func (t *Table) ChunkCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.store.ChunkCount()
}

func (t *Table) LoadChunk(idx int) ([]schema.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.store.LoadChunk(idx)
}

// ForEachChunk scans chunks in order, each chunk is read under the table read lock.
func (t *Table) ForEachChunk(fn func(idx int, rows []schema.Row) error) error {
	for idx := 0; idx < t.ChunkCount(); idx++ {
		rows, err := t.LoadChunk(idx)
		if err != nil {
			return err
		}

		if err := fn(idx, rows); err != nil {
			return err
		}
	}

	return nil
}

func (t *Table) RowCount() (int, error) {
	total := 0
	err := t.ForEachChunk(func(_ int, rows []schema.Row) error {
		total += len(rows)
		return nil
	})
	return total, err
}

func (t *Table) Insert(row schema.Row) error {
	return t.InsertBulk([]schema.Row{row})
}

func (t *Table) InsertBulk(rows []schema.Row) error {

	normalized := make([]schema.Row, len(rows))
	for i, r := range rows {
		n, err := t.normalize(r)
		if err != nil {
			return err
		}
		normalized[i] = n
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.AppendBulk(normalized); err != nil {
		t.logger.Warn("failed to insert records", "count", len(rows), "error", err)
		return err
	}

	return nil
}

// Update merges values into every matching row and returns the number of rows changed.
func (t *Table) Update(selector Matcher, values schema.Row) (int, error) {

	if err := t.checkValues(values); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rewrite(selector, func(row schema.Row) (schema.Row, bool) {
		for k, v := range values {
			row[k] = t.coerce(k, v)
		}
		return row, true
	})
}

// Delete drops matching rows. Emptied chunks stay in place, indices are never reused.
func (t *Table) Delete(selector Matcher) (int, error) {

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rewrite(selector, func(row schema.Row) (schema.Row, bool) {
		return nil, false
	})
}

// rewrite applies fn to matching rows chunk by chunk, only changed chunks are written back
func (t *Table) rewrite(selector Matcher, fn func(row schema.Row) (schema.Row, bool)) (int, error) {

	affected := 0
	entries := make([]schema.Row, 1)

	for idx := 0; idx < t.store.ChunkCount(); idx++ {

		rows, loadErr := t.store.LoadChunk(idx)
		if loadErr != nil {
			return affected, loadErr
		}

		changed := false
		out := rows[:0]

		for _, row := range rows {
			entries[0] = row

			match, matchErr := selector.IsMatch(entries)
			if matchErr != nil {
				t.logger.Error("unable to evaluate selector", "chunk", idx, "error", matchErr)
				return affected, matchErr
			}

			if !match {
				out = append(out, row)
				continue
			}

			changed = true
			affected++

			if kept, keep := fn(row); keep {
				out = append(out, kept)
			}
		}

		if changed {
			if err := t.store.UpdateChunk(idx, out); err != nil {
				return affected, err
			}
			t.logger.Debug("chunk rewritten", "chunk", idx, "rows", len(out))
		}
	}

	if affected == 0 {
		t.logger.Warn("no record matched")
	}

	return affected, nil
}
