package crossfilter

import (
	"cmp"
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// FilterKind identifies the shape of a dimension filter.
type FilterKind int

const (
	// KindNone means the dimension is unfiltered.
	KindNone FilterKind = iota
	// KindExact matches a single key.
	KindExact
	// KindSet matches any of several keys.
	KindSet
	// KindRange matches keys in [Lo, Hi).
	KindRange
	// KindFunc matches keys accepted by a predicate.
	KindFunc
)

// Filter describes the active filter of a dimension.
type Filter[K cmp.Ordered] struct {
	Kind   FilterKind
	Values []K
	Lo     K
	Hi     K
}

// Active reports whether the filter restricts anything.
func (f Filter[K]) Active() bool {
	return f.Kind != KindNone
}

// Dimension is a sorted projection of records onto an ordered key.
type Dimension[T any, K cmp.Ordered] struct {
	cf   *Crossfilter[T]
	name string
	id   int
	bit  uint64

	// keys[i] is the key of record index[i]; both are in key order.
	keys  []K
	index []uint32
	// recordKeys is indexed by record position.
	recordKeys []K

	matched *roaring.Bitmap
	filter  Filter[K]
}

// NewDimension indexes every record of cf by keyFn. Ties keep load order.
func NewDimension[T any, K cmp.Ordered](cf *Crossfilter[T], name string, keyFn func(T) K) (*Dimension[T, K], error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	bit, id, err := cf.allocBit()
	if err != nil {
		return nil, err
	}
	n := len(cf.records)
	d := &Dimension[T, K]{
		cf:         cf,
		name:       name,
		id:         id,
		bit:        bit,
		keys:       make([]K, n),
		index:      make([]uint32, n),
		recordKeys: make([]K, n),
	}
	for i, r := range cf.records {
		d.recordKeys[i] = keyFn(r)
		d.index[i] = uint32(i)
	}
	slices.SortStableFunc(d.index, func(a, b uint32) int {
		return cmp.Compare(d.recordKeys[a], d.recordKeys[b])
	})
	for i, pos := range d.index {
		d.keys[i] = d.recordKeys[pos]
	}
	return d, nil
}

// Name returns the dimension name.
func (d *Dimension[T, K]) Name() string {
	return d.name
}

// Filter returns a copy of the active filter.
func (d *Dimension[T, K]) Filter() Filter[K] {
	d.cf.mu.RLock()
	defer d.cf.mu.RUnlock()
	f := d.filter
	f.Values = slices.Clone(f.Values)
	return f
}

// FilterExact keeps records whose key equals v.
func (d *Dimension[T, K]) FilterExact(v K) {
	d.cf.mu.Lock()
	defer d.cf.mu.Unlock()
	lo, hi := d.lowerBound(v), d.upperBound(v)
	d.apply(d.positions(lo, hi), Filter[K]{Kind: KindExact, Values: []K{v}})
}

// FilterIn keeps records whose key is one of vs. An empty set clears the filter.
func (d *Dimension[T, K]) FilterIn(vs ...K) {
	d.cf.mu.Lock()
	defer d.cf.mu.Unlock()
	if len(vs) == 0 {
		d.apply(nil, Filter[K]{})
		return
	}
	values := slices.Clone(vs)
	slices.Sort(values)
	values = slices.Compact(values)
	bm := roaring.New()
	for _, v := range values {
		lo, hi := d.lowerBound(v), d.upperBound(v)
		bm.AddMany(d.index[lo:hi])
	}
	d.apply(bm, Filter[K]{Kind: KindSet, Values: values})
}

// FilterRange keeps records whose key is in [lo, hi). It fails without
// touching the current filter when lo > hi.
func (d *Dimension[T, K]) FilterRange(lo, hi K) error {
	if cmp.Less(hi, lo) {
		return &InvalidRangeError{Dimension: d.name, Lo: lo, Hi: hi}
	}
	d.cf.mu.Lock()
	defer d.cf.mu.Unlock()
	d.apply(d.positions(d.lowerBound(lo), d.lowerBound(hi)), Filter[K]{Kind: KindRange, Lo: lo, Hi: hi})
	return nil
}

// FilterFunc keeps records whose key satisfies fn.
func (d *Dimension[T, K]) FilterFunc(fn func(K) bool) {
	d.cf.mu.Lock()
	defer d.cf.mu.Unlock()
	bm := roaring.New()
	for i, k := range d.keys {
		if fn(k) {
			bm.Add(d.index[i])
		}
	}
	d.apply(bm, Filter[K]{Kind: KindFunc})
}

// ClearFilter removes the dimension's filter.
func (d *Dimension[T, K]) ClearFilter() {
	d.cf.mu.Lock()
	defer d.cf.mu.Unlock()
	d.apply(nil, Filter[K]{})
}

// Top returns up to n records with the greatest keys, ignoring this
// dimension's own filter but honoring all others.
func (d *Dimension[T, K]) Top(n int) []T {
	d.cf.mu.RLock()
	defer d.cf.mu.RUnlock()
	out := make([]T, 0, max(0, min(n, len(d.index))))
	for i := len(d.index) - 1; i >= 0 && len(out) < n; i-- {
		if pos := d.index[i]; d.cf.masks[pos]&^d.bit == 0 {
			out = append(out, d.cf.records[pos])
		}
	}
	return out
}

// Bottom returns up to n records with the least keys, ignoring this
// dimension's own filter but honoring all others.
func (d *Dimension[T, K]) Bottom(n int) []T {
	d.cf.mu.RLock()
	defer d.cf.mu.RUnlock()
	out := make([]T, 0, max(0, min(n, len(d.index))))
	for i := 0; i < len(d.index) && len(out) < n; i++ {
		if pos := d.index[i]; d.cf.masks[pos]&^d.bit == 0 {
			out = append(out, d.cf.records[pos])
		}
	}
	return out
}

func (d *Dimension[T, K]) lowerBound(v K) int {
	i, _ := slices.BinarySearch(d.keys, v)
	return i
}

func (d *Dimension[T, K]) upperBound(v K) int {
	return sort.Search(len(d.keys), func(i int) bool {
		return cmp.Less(v, d.keys[i])
	})
}

func (d *Dimension[T, K]) positions(lo, hi int) *roaring.Bitmap {
	bm := roaring.New()
	if lo < hi {
		bm.AddMany(d.index[lo:hi])
	}
	return bm
}

// apply swaps the matched set and propagates the difference. A nil set
// means every record passes. Must be called with the write lock held.
func (d *Dimension[T, K]) apply(next *roaring.Bitmap, f Filter[K]) {
	prev := d.matched
	d.matched = next
	d.filter = f

	size := uint64(len(d.index))
	var entered, exited *roaring.Bitmap
	switch {
	case prev == nil && next == nil:
		return
	case prev == nil:
		exited = roaring.Flip(next, 0, size)
	case next == nil:
		entered = roaring.Flip(prev, 0, size)
	default:
		entered = roaring.AndNot(next, prev)
		exited = roaring.AndNot(prev, next)
	}

	masks := d.cf.masks
	changes := make([]change, 0, cardinality(entered)+cardinality(exited))
	if exited != nil {
		it := exited.Iterator()
		for it.HasNext() {
			pos := it.Next()
			before := masks[pos]
			masks[pos] = before | d.bit
			changes = append(changes, change{index: pos, before: before, after: masks[pos]})
		}
	}
	if entered != nil {
		it := entered.Iterator()
		for it.HasNext() {
			pos := it.Next()
			before := masks[pos]
			masks[pos] = before &^ d.bit
			changes = append(changes, change{index: pos, before: before, after: masks[pos]})
		}
	}
	d.cf.notify(d.bit, changes)
}

func cardinality(bm *roaring.Bitmap) int {
	if bm == nil {
		return 0
	}
	return int(bm.GetCardinality())
}
