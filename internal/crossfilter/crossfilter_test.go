package crossfilter

import (
	"errors"
	"math/rand"
	"testing"
)

type project struct {
	state     string
	donations float64
	poverty   string
	month     int
}

func sampleProjects() []project {
	return []project{
		{state: "CA", donations: 100, poverty: "high", month: 3},
		{state: "CA", donations: 50, poverty: "low", month: 1},
		{state: "NY", donations: 30, poverty: "high", month: 2},
	}
}

func mustDimension[K string | int | float64](t *testing.T, cf *Crossfilter[project], name string, fn func(project) K) *Dimension[project, K] {
	t.Helper()
	d, err := NewDimension(cf, name, fn)
	if err != nil {
		t.Fatalf("new dimension %s: %v", name, err)
	}
	return d
}

func donations(p project) float64 { return p.donations }

func TestDonationsByStateFollowsPovertyFilter(t *testing.T) {
	cf := New(sampleProjects())
	state := mustDimension(t, cf, "state", func(p project) string { return p.state })
	poverty := mustDimension(t, cf, "poverty", func(p project) string { return p.poverty })
	byState := state.Group(ReduceSum(donations))

	assertBuckets(t, byState.All(), map[string]float64{"CA": 150, "NY": 30})

	poverty.FilterExact("high")
	assertBuckets(t, byState.All(), map[string]float64{"CA": 100, "NY": 30})

	poverty.ClearFilter()
	assertBuckets(t, byState.All(), map[string]float64{"CA": 150, "NY": 30})
}

func TestStackedSeriesAlign(t *testing.T) {
	cf := New(sampleProjects())
	state := mustDimension(t, cf, "state", func(p project) string { return p.state })
	tier := func(level string) Reducer[project] {
		return ReduceSumIf(func(p project) bool { return p.poverty == level }, donations)
	}
	high := state.Group(tier("high"))
	low := state.Group(tier("low"))

	series, err := Stack(
		Layer[project, string]{Name: "High", Group: high},
		Layer[project, string]{Name: "Low", Group: low},
	)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(series))
	}
	assertBuckets(t, series[0].Buckets, map[string]float64{"CA": 100, "NY": 30})
	assertBuckets(t, series[1].Buckets, map[string]float64{"CA": 50, "NY": 0})
	for i := range series[0].Buckets {
		if series[0].Buckets[i].Key != series[1].Buckets[i].Key {
			t.Fatalf("bucket %d misaligned: %q vs %q", i, series[0].Buckets[i].Key, series[1].Buckets[i].Key)
		}
	}
}

func TestStackRejectsForeignDimension(t *testing.T) {
	cf := New(sampleProjects())
	state := mustDimension(t, cf, "state", func(p project) string { return p.state })
	poverty := mustDimension(t, cf, "poverty", func(p project) string { return p.poverty })
	_, err := Stack(
		Layer[project, string]{Name: "a", Group: state.Group(ReduceCount[project]())},
		Layer[project, string]{Name: "b", Group: poverty.Group(ReduceCount[project]())},
	)
	if !errors.Is(err, ErrMisalignedSeries) {
		t.Fatalf("expected ErrMisalignedSeries, got %v", err)
	}
}

func TestGroupIgnoresOwnFilter(t *testing.T) {
	cf := New(sampleProjects())
	state := mustDimension(t, cf, "state", func(p project) string { return p.state })
	byState := state.Group(ReduceCount[project]())
	all := cf.GroupAll(ReduceCount[project]())

	state.FilterExact("NY")
	assertBuckets(t, byState.All(), map[string]float64{"CA": 2, "NY": 1})
	if got := all.Value(); got != 1 {
		t.Fatalf("expected group-all count 1, got %v", got)
	}
	if got := cf.FilteredCount(); got != 1 {
		t.Fatalf("expected filtered count 1, got %d", got)
	}
}

func TestTopAndBottomOnMonth(t *testing.T) {
	cf := New(sampleProjects())
	month := mustDimension(t, cf, "month", func(p project) int { return p.month })
	state := mustDimension(t, cf, "state", func(p project) string { return p.state })

	if top := month.Top(1); len(top) != 1 || top[0].month != 3 {
		t.Fatalf("unexpected top: %+v", top)
	}
	if bottom := month.Bottom(1); len(bottom) != 1 || bottom[0].month != 1 {
		t.Fatalf("unexpected bottom: %+v", bottom)
	}

	// Own filter is ignored, other filters are honored.
	if err := month.FilterRange(2, 3); err != nil {
		t.Fatalf("filter range: %v", err)
	}
	if top := month.Top(1); top[0].month != 3 {
		t.Fatalf("own filter should be ignored, got %+v", top)
	}
	state.FilterExact("NY")
	if top := month.Top(5); len(top) != 1 || top[0].month != 2 {
		t.Fatalf("expected only NY record, got %+v", top)
	}
}

func TestFilterRangeRejectsInvertedBounds(t *testing.T) {
	cf := New(sampleProjects())
	month := mustDimension(t, cf, "month", func(p project) int { return p.month })
	all := cf.GroupAll(ReduceCount[project]())

	month.FilterExact(1)
	err := month.FilterRange(3, 1)
	var rangeErr *InvalidRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected InvalidRangeError, got %v", err)
	}
	if rangeErr.Dimension != "month" {
		t.Fatalf("unexpected dimension in error: %q", rangeErr.Dimension)
	}
	if f := month.Filter(); f.Kind != KindExact || f.Values[0] != 1 {
		t.Fatalf("previous filter should be kept, got %+v", f)
	}
	if got := all.Value(); got != 1 {
		t.Fatalf("expected count 1 after rejected range, got %v", got)
	}
}

func TestFilterRangeIsHalfOpen(t *testing.T) {
	cf := New(sampleProjects())
	month := mustDimension(t, cf, "month", func(p project) int { return p.month })
	all := cf.GroupAll(ReduceCount[project]())

	if err := month.FilterRange(1, 3); err != nil {
		t.Fatalf("filter range: %v", err)
	}
	if got := all.Value(); got != 2 {
		t.Fatalf("expected 2 records in [1,3), got %v", got)
	}
	if err := month.FilterRange(2, 2); err != nil {
		t.Fatalf("empty range should be accepted: %v", err)
	}
	if got := all.Value(); got != 0 {
		t.Fatalf("expected empty range to match nothing, got %v", got)
	}
}

func TestFilterInAndFunc(t *testing.T) {
	cf := New(sampleProjects())
	month := mustDimension(t, cf, "month", func(p project) int { return p.month })
	total := cf.GroupAll(ReduceSum(donations))

	month.FilterIn(1, 3, 3)
	if got := total.Value(); got != 150 {
		t.Fatalf("expected 150, got %v", got)
	}
	if f := month.Filter(); f.Kind != KindSet || len(f.Values) != 2 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	month.FilterIn()
	if month.Filter().Active() {
		t.Fatalf("empty set should clear the filter")
	}
	month.FilterFunc(func(m int) bool { return m%2 == 0 })
	if got := total.Value(); got != 30 {
		t.Fatalf("expected 30, got %v", got)
	}
}

func TestGroupByBucketsKeys(t *testing.T) {
	cf := New(sampleProjects())
	month := mustDimension(t, cf, "month", func(p project) int { return p.month })
	byHalf := month.GroupBy(func(m int) int { return m / 2 }, ReduceSum(donations))
	assertBuckets(t, byHalf.All(), map[int]float64{0: 50, 1: 130})
	if v, ok := byHalf.Value(1); !ok || v != 130 {
		t.Fatalf("unexpected bucket 1: %v %v", v, ok)
	}
	if _, ok := byHalf.Value(9); ok {
		t.Fatalf("expected missing bucket")
	}
	top := byHalf.Top(1)
	if len(top) != 1 || top[0].Key != 1 {
		t.Fatalf("unexpected top bucket: %+v", top)
	}
}

func TestTooManyDimensions(t *testing.T) {
	cf := New(sampleProjects())
	for i := 0; i < maxDimensions; i++ {
		if _, err := NewDimension(cf, "d", func(p project) int { return p.month }); err != nil {
			t.Fatalf("dimension %d: %v", i, err)
		}
	}
	if _, err := NewDimension(cf, "overflow", func(p project) int { return p.month }); !errors.Is(err, ErrTooManyDimensions) {
		t.Fatalf("expected ErrTooManyDimensions, got %v", err)
	}
}

func TestRandomFiltersMatchBruteForce(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	states := []string{"CA", "NY", "TX", "WA"}
	levels := []string{"high", "low", "moderate", "minimal", "unknown"}
	records := make([]project, 500)
	for i := range records {
		records[i] = project{
			state:     states[rnd.Intn(len(states))],
			poverty:   levels[rnd.Intn(len(levels))],
			donations: float64(rnd.Intn(1000)),
			month:     rnd.Intn(24),
		}
	}

	cf := New(records)
	state := mustDimension(t, cf, "state", func(p project) string { return p.state })
	poverty := mustDimension(t, cf, "poverty", func(p project) string { return p.poverty })
	month := mustDimension(t, cf, "month", func(p project) int { return p.month })
	byState := state.Group(ReduceSum(donations))
	byPoverty := poverty.Group(ReduceCount[project]())
	count := cf.GroupAll(ReduceCount[project]())

	unfiltered := byPoverty.All()
	var sum float64
	for _, b := range byState.All() {
		sum += b.Value
	}
	var want float64
	for _, r := range records {
		want += r.donations
	}
	if sum != want {
		t.Fatalf("bucket sum %v != dataset sum %v", sum, want)
	}

	var stateSel, povertySel map[string]bool
	var monthLo, monthHi = 0, 24
	for step := 0; step < 200; step++ {
		switch rnd.Intn(4) {
		case 0:
			pick := states[rnd.Intn(len(states))]
			state.FilterExact(pick)
			stateSel = map[string]bool{pick: true}
		case 1:
			a, b := levels[rnd.Intn(len(levels))], levels[rnd.Intn(len(levels))]
			poverty.FilterIn(a, b)
			povertySel = map[string]bool{a: true, b: true}
		case 2:
			lo := rnd.Intn(24)
			hi := lo + rnd.Intn(24-lo+1)
			if err := month.FilterRange(lo, hi); err != nil {
				t.Fatalf("filter range: %v", err)
			}
			monthLo, monthHi = lo, hi
		default:
			state.ClearFilter()
			stateSel = nil
		}

		passState := func(p project) bool { return stateSel == nil || stateSel[p.state] }
		passPoverty := func(p project) bool { return povertySel == nil || povertySel[p.poverty] }
		passMonth := func(p project) bool { return p.month >= monthLo && p.month < monthHi }

		wantCount := 0
		wantState := map[string]float64{}
		for _, r := range records {
			if passState(r) && passPoverty(r) && passMonth(r) {
				wantCount++
			}
			if passPoverty(r) && passMonth(r) {
				wantState[r.state] += r.donations
			}
		}
		if got := count.Value(); got != float64(wantCount) {
			t.Fatalf("step %d: count %v, want %d", step, got, wantCount)
		}
		if got := len(cf.Filtered()); got != wantCount {
			t.Fatalf("step %d: filtered %d, want %d", step, got, wantCount)
		}
		for _, b := range byState.All() {
			if b.Value != wantState[b.Key] {
				t.Fatalf("step %d: state %s = %v, want %v", step, b.Key, b.Value, wantState[b.Key])
			}
		}
	}

	state.ClearFilter()
	month.ClearFilter()
	poverty.ClearFilter()
	after := byPoverty.All()
	for i := range unfiltered {
		if unfiltered[i] != after[i] {
			t.Fatalf("bucket %v not restored: %v", unfiltered[i], after[i])
		}
	}
}

func TestFilterClearRestoresFractionalSums(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	states := []string{"CA", "NY", "TX"}
	levels := []string{"high", "low", "moderate", "minimal"}
	records := make([]project, 2000)
	for i := range records {
		records[i] = project{
			state:     states[rnd.Intn(len(states))],
			poverty:   levels[rnd.Intn(len(levels))],
			donations: float64(rnd.Intn(100000)) / 100,
		}
	}

	cf := New(records)
	state := mustDimension(t, cf, "state", func(p project) string { return p.state })
	poverty := mustDimension(t, cf, "poverty", func(p project) string { return p.poverty })
	byState := state.Group(ReduceSum(donations))
	total := cf.GroupAll(ReduceSum(donations))

	before := byState.All()
	totalBefore := total.Value()
	for cycle := 0; cycle < 50; cycle++ {
		switch cycle % 3 {
		case 0:
			poverty.FilterExact(levels[rnd.Intn(len(levels))])
		case 1:
			poverty.FilterIn(levels[rnd.Intn(len(levels))], levels[rnd.Intn(len(levels))])
		default:
			poverty.ClearFilter()
		}
	}
	poverty.ClearFilter()

	after := byState.All()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("bucket %s: before %v after %v", before[i].Key, before[i].Value, after[i].Value)
		}
	}
	if got := total.Value(); got != totalBefore {
		t.Fatalf("total: before %v after %v", totalBefore, got)
	}
}

func TestExactSumIsOrderIndependent(t *testing.T) {
	var a, b exactSum
	values := []float64{0.1, 1e16, 0.2, -1e16, 0.3, 12.34}
	for _, v := range values {
		a.add(v)
	}
	for i := len(values) - 1; i >= 0; i-- {
		b.add(values[i])
	}
	if a.value() != b.value() {
		t.Fatalf("order changed the sum: %v vs %v", a.value(), b.value())
	}
	a.add(-12.34)
	a.add(12.34)
	if a.value() != b.value() {
		t.Fatalf("add then remove changed the sum: %v vs %v", a.value(), b.value())
	}
	a.reset()
	if a.value() != 0 {
		t.Fatalf("expected reset sum to be 0, got %v", a.value())
	}
}

func assertBuckets[K string | int](t *testing.T, got []Bucket[K], want map[K]float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d buckets, got %d: %+v", len(want), len(got), got)
	}
	for i, b := range got {
		if i > 0 && !(got[i-1].Key < b.Key) {
			t.Fatalf("buckets out of order: %+v", got)
		}
		w, ok := want[b.Key]
		if !ok {
			t.Fatalf("unexpected bucket %v", b.Key)
		}
		if b.Value != w {
			t.Fatalf("bucket %v: expected %v, got %v", b.Key, w, b.Value)
		}
	}
}
