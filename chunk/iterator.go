package chunk

import "github.com/dot5enko/simple-chunk-db/schema"

// Iterator yields chunks in index order. A chunk that fails to load ends the
// scan and is reported by Err, chunks are never skipped.
type Iterator struct {
	store *Store

	idx  int
	rows []schema.Row
	err  error
}

func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}

	next := it.idx + 1
	if next >= it.store.ChunkCount() {
		return false
	}

	rows, err := it.store.LoadChunk(next)
	if err != nil {
		it.err = err
		it.rows = nil
		return false
	}

	it.idx = next
	it.rows = rows
	return true
}

func (it *Iterator) Rows() []schema.Row { return it.rows }

func (it *Iterator) Index() int { return it.idx }

func (it *Iterator) Err() error { return it.err }
