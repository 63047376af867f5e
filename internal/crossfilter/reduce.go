package crossfilter

import "math"

// Reducer maps a record to the amount it contributes to its bucket. Groups
// sum these amounts exactly, so removing a record undoes adding it and a
// filter followed by a clear restores every value bit for bit.
type Reducer[T any] struct {
	Weight func(r T) float64
}

// ReduceCount counts records.
func ReduceCount[T any]() Reducer[T] {
	return Reducer[T]{Weight: func(T) float64 { return 1 }}
}

// ReduceSum sums fn over records.
func ReduceSum[T any](fn func(T) float64) Reducer[T] {
	return Reducer[T]{Weight: fn}
}

// ReduceSumIf sums fn over records for which pred holds; others add zero.
func ReduceSumIf[T any](pred func(T) bool, fn func(T) float64) Reducer[T] {
	return Reducer[T]{Weight: func(r T) float64 {
		if !pred(r) {
			return 0
		}
		return fn(r)
	}}
}

// exactSum holds a running total as non-overlapping partials in increasing
// magnitude. Their sum is the exact real sum of every added value.
type exactSum struct {
	partials []float64
}

func (s *exactSum) add(x float64) {
	i := 0
	for _, y := range s.partials {
		if math.Abs(x) < math.Abs(y) {
			x, y = y, x
		}
		hi := x + y
		lo := y - (hi - x)
		if lo != 0 {
			s.partials[i] = lo
			i++
		}
		x = hi
	}
	s.partials = append(s.partials[:i], x)
}

func (s *exactSum) reset() {
	s.partials = s.partials[:0]
}

// value returns the exact total rounded to the nearest float64.
func (s *exactSum) value() float64 {
	p := s.partials
	n := len(p)
	if n == 0 {
		return 0
	}
	n--
	hi := p[n]
	var lo float64
	for n > 0 {
		x := hi
		n--
		y := p[n]
		hi = x + y
		lo = y - (hi - x)
		if lo != 0 {
			break
		}
	}
	// hi sits halfway between two floats; the next partial breaks the tie.
	if n > 0 && ((lo < 0 && p[n-1] < 0) || (lo > 0 && p[n-1] > 0)) {
		y := lo * 2
		x := hi + y
		if y == x-hi {
			hi = x
		}
	}
	return hi
}
