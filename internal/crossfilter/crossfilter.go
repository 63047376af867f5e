// Package crossfilter indexes a fixed set of records by several dimensions
// and keeps grouped aggregates current while filters change.
package crossfilter

import (
	"math"
	"sync"
)

// maxDimensions is bounded by the width of the per-record filter mask.
const maxDimensions = 64

// Crossfilter owns a dataset and the filter state shared by its dimensions.
// Reads may run concurrently; filter changes are serialized.
type Crossfilter[T any] struct {
	mu        sync.RWMutex
	records   []T
	masks     []uint64
	usedBits  int
	listeners []listener
}

// listener is notified synchronously after each filter change.
type listener interface {
	ownBit() uint64
	update(changes []change)
}

// change records how one record's filter mask moved.
type change struct {
	index  uint32
	before uint64
	after  uint64
}

// New copies records into a new engine with no dimensions.
func New[T any](records []T) *Crossfilter[T] {
	rs := make([]T, len(records))
	copy(rs, records)
	return &Crossfilter[T]{
		records: rs,
		masks:   make([]uint64, len(rs)),
	}
}

// Size returns the number of records regardless of filters.
func (cf *Crossfilter[T]) Size() int {
	return len(cf.records)
}

// FilteredCount returns the number of records passing every active filter.
func (cf *Crossfilter[T]) FilteredCount() int {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	n := 0
	for _, m := range cf.masks {
		if m == 0 {
			n++
		}
	}
	return n
}

// Filtered returns the records passing every active filter in load order.
func (cf *Crossfilter[T]) Filtered() []T {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	out := make([]T, 0, len(cf.records))
	for i, m := range cf.masks {
		if m == 0 {
			out = append(out, cf.records[i])
		}
	}
	return out
}

// GroupAll creates a single-bucket aggregate over the filtered records.
func (cf *Crossfilter[T]) GroupAll(r Reducer[T]) *GroupAll[T] {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	g := &GroupAll[T]{cf: cf, reducer: r}
	for i, m := range cf.masks {
		if m == 0 {
			g.sum.add(r.Weight(cf.records[i]))
			g.count++
		}
	}
	cf.listeners = append(cf.listeners, g)
	return g
}

func (cf *Crossfilter[T]) allocBit() (uint64, int, error) {
	if cf.usedBits >= maxDimensions {
		return 0, 0, ErrTooManyDimensions
	}
	if uint64(len(cf.records)) > math.MaxUint32 {
		return 0, 0, ErrTooManyRecords
	}
	id := cf.usedBits
	cf.usedBits++
	return uint64(1) << uint(id), id, nil
}

// notify must be called with the write lock held.
func (cf *Crossfilter[T]) notify(bit uint64, changes []change) {
	if len(changes) == 0 {
		return
	}
	for _, l := range cf.listeners {
		if l.ownBit() == bit {
			continue
		}
		l.update(changes)
	}
}

// GroupAll is an aggregate over all records that pass every active filter.
type GroupAll[T any] struct {
	cf      *Crossfilter[T]
	reducer Reducer[T]
	sum     exactSum
	count   int
}

// Value returns the current aggregate.
func (g *GroupAll[T]) Value() float64 {
	g.cf.mu.RLock()
	defer g.cf.mu.RUnlock()
	return g.sum.value()
}

func (g *GroupAll[T]) ownBit() uint64 { return 0 }

func (g *GroupAll[T]) update(changes []change) {
	for _, c := range changes {
		was, is := c.before == 0, c.after == 0
		switch {
		case was && !is:
			g.sum.add(-g.reducer.Weight(g.cf.records[c.index]))
			g.count--
		case !was && is:
			g.sum.add(g.reducer.Weight(g.cf.records[c.index]))
			g.count++
		}
	}
	if g.count == 0 {
		g.sum.reset()
	}
}
