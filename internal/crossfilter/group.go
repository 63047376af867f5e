package crossfilter

import (
	"cmp"
	"slices"
)

// Bucket is one key/value pair of a group.
type Bucket[K cmp.Ordered] struct {
	Key   K
	Value float64
}

// Group aggregates records bucketed by a dimension's key. It honors every
// active filter except its own dimension's.
type Group[T any, K cmp.Ordered] struct {
	cf      *Crossfilter[T]
	dim     *Dimension[T, K]
	reducer Reducer[T]

	keys     []K
	sums     []exactSum
	counts   []int
	bucketOf []int
}

// Group buckets records by their dimension key.
func (d *Dimension[T, K]) Group(r Reducer[T]) *Group[T, K] {
	return d.GroupBy(nil, r)
}

// GroupBy buckets records by fn applied to their dimension key. A nil fn
// groups by the key itself.
func (d *Dimension[T, K]) GroupBy(fn func(K) K, r Reducer[T]) *Group[T, K] {
	cf := d.cf
	cf.mu.Lock()
	defer cf.mu.Unlock()

	bucketKey := func(k K) K { return k }
	if fn != nil {
		bucketKey = fn
	}

	// Buckets come from the whole dataset so series over the same
	// dimension always line up, even when a bucket is empty.
	keys := make([]K, 0)
	for i, k := range d.keys {
		bk := bucketKey(k)
		if i == 0 || bk != keys[len(keys)-1] {
			keys = append(keys, bk)
		}
	}
	if fn != nil {
		slices.Sort(keys)
		keys = slices.Compact(keys)
	}

	g := &Group[T, K]{
		cf:       cf,
		dim:      d,
		reducer:  r,
		keys:     keys,
		sums:     make([]exactSum, len(keys)),
		counts:   make([]int, len(keys)),
		bucketOf: make([]int, len(cf.records)),
	}
	for pos, k := range d.recordKeys {
		b, _ := slices.BinarySearch(keys, bucketKey(k))
		g.bucketOf[pos] = b
		if cf.masks[pos]&^d.bit == 0 {
			g.sums[b].add(r.Weight(cf.records[pos]))
			g.counts[b]++
		}
	}
	cf.listeners = append(cf.listeners, g)
	return g
}

// Name returns the name of the grouped dimension.
func (g *Group[T, K]) Name() string {
	return g.dim.name
}

// Size returns the number of buckets.
func (g *Group[T, K]) Size() int {
	return len(g.keys)
}

// All returns every bucket in key order.
func (g *Group[T, K]) All() []Bucket[K] {
	g.cf.mu.RLock()
	defer g.cf.mu.RUnlock()
	out := make([]Bucket[K], len(g.keys))
	for i, k := range g.keys {
		out[i] = Bucket[K]{Key: k, Value: g.sums[i].value()}
	}
	return out
}

// Value returns the aggregate for key k.
func (g *Group[T, K]) Value(k K) (float64, bool) {
	g.cf.mu.RLock()
	defer g.cf.mu.RUnlock()
	i, ok := slices.BinarySearch(g.keys, k)
	if !ok {
		return 0, false
	}
	return g.sums[i].value(), true
}

// Top returns up to n buckets with the largest values. Ties keep key order.
func (g *Group[T, K]) Top(n int) []Bucket[K] {
	all := g.All()
	slices.SortStableFunc(all, func(a, b Bucket[K]) int {
		return cmp.Compare(b.Value, a.Value)
	})
	if n < len(all) {
		all = all[:max(0, n)]
	}
	return all
}

func (g *Group[T, K]) ownBit() uint64 { return g.dim.bit }

func (g *Group[T, K]) update(changes []change) {
	for _, c := range changes {
		was, is := c.before&^g.dim.bit == 0, c.after&^g.dim.bit == 0
		if was == is {
			continue
		}
		b := g.bucketOf[c.index]
		w := g.reducer.Weight(g.cf.records[c.index])
		if is {
			g.sums[b].add(w)
			g.counts[b]++
			continue
		}
		g.sums[b].add(-w)
		g.counts[b]--
		if g.counts[b] == 0 {
			g.sums[b].reset()
		}
	}
}

// Layer names one series of a stack.
type Layer[T any, K cmp.Ordered] struct {
	Name  string
	Group *Group[T, K]
}

// Series is a named, key-ordered bucket list.
type Series[K cmp.Ordered] struct {
	Name    string
	Buckets []Bucket[K]
}

// Stack snapshots several groups over one dimension as aligned series.
func Stack[T any, K cmp.Ordered](layers ...Layer[T, K]) ([]Series[K], error) {
	if len(layers) == 0 {
		return nil, nil
	}
	first := layers[0].Group
	for _, l := range layers[1:] {
		if l.Group.dim != first.dim || !slices.Equal(l.Group.keys, first.keys) {
			return nil, ErrMisalignedSeries
		}
	}
	out := make([]Series[K], 0, len(layers))
	for _, l := range layers {
		out = append(out, Series[K]{Name: l.Name, Buckets: l.Group.All()})
	}
	return out, nil
}
