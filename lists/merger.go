package lists

import (
	"container/heap"
)

// Source yields the items of one sorted run in order.
type Source[T any] interface {
	Next() (item T, ok bool, err error)
}

// CompareFunc orders two items, it fails when they are not comparable.
type CompareFunc[T any] func(a, b T) (int, error)

type head[T any] struct {
	item T
	run  int
}

type mergeHeap[T any] struct {
	heads []head[T]
	cmp   CompareFunc[T]
	err   error
}

func (h *mergeHeap[T]) Len() int { return len(h.heads) }

// equal items come out in run order, which keeps the merge stable
func (h *mergeHeap[T]) Less(i, j int) bool {
	c, err := h.cmp(h.heads[i].item, h.heads[j].item)
	if err != nil {
		if h.err == nil {
			h.err = err
		}
		return false
	}

	if c != 0 {
		return c < 0
	}
	return h.heads[i].run < h.heads[j].run
}

func (h *mergeHeap[T]) Swap(i, j int) { h.heads[i], h.heads[j] = h.heads[j], h.heads[i] }

func (h *mergeHeap[T]) Push(x any) { h.heads = append(h.heads, x.(head[T])) }

func (h *mergeHeap[T]) Pop() any {
	last := len(h.heads) - 1
	item := h.heads[last]
	h.heads = h.heads[:last]
	return item
}

// Merger streams the k-way merge of sorted runs, holding one buffered item per run.
type Merger[T any] struct {
	sources []Source[T]
	h       *mergeHeap[T]
}

func NewMerger[T any](cmp CompareFunc[T], sources ...Source[T]) (*Merger[T], error) {

	m := &Merger[T]{
		sources: sources,
		h:       &mergeHeap[T]{cmp: cmp, heads: make([]head[T], 0, len(sources))},
	}

	for run, src := range sources {
		item, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			m.h.heads = append(m.h.heads, head[T]{item: item, run: run})
		}
	}

	heap.Init(m.h)
	if m.h.err != nil {
		return nil, m.h.err
	}

	return m, nil
}

// Next returns the smallest buffered item and refills its run.
func (m *Merger[T]) Next() (item T, ok bool, err error) {

	if m.h.Len() == 0 {
		return item, false, nil
	}

	top := m.h.heads[0]

	next, more, srcErr := m.sources[top.run].Next()
	if srcErr != nil {
		return item, false, srcErr
	}

	if more {
		m.h.heads[0] = head[T]{item: next, run: top.run}
		heap.Fix(m.h, 0)
	} else {
		heap.Pop(m.h)
	}

	if m.h.err != nil {
		return item, false, m.h.err
	}

	return top.item, true, nil
}

// SliceSource serves a sorted in-memory run.
type SliceSource[T any] struct {
	items []T
	pos   int
}

func NewSliceSource[T any](items []T) *SliceSource[T] {
	return &SliceSource[T]{items: items}
}

func (s *SliceSource[T]) Next() (item T, ok bool, err error) {
	if s.pos >= len(s.items) {
		return item, false, nil
	}
	item = s.items[s.pos]
	s.pos++
	return item, true, nil
}
