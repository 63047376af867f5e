// Package generator builds synthetic project datasets for demos and tests.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/verte-zerg/donordash/internal/model"
)

type weighted[T any] struct {
	value  T
	weight float64
}

var (
	resourceTypes = []weighted[string]{
		{"Supplies", 35}, {"Technology", 30}, {"Books", 20},
		{"Other", 10}, {"Trips", 3}, {"Visitors", 2},
	}
	povertyLevels = []weighted[model.PovertyLevel]{
		{model.PovertyHigh, 45}, {model.PovertyModerate, 25},
		{model.PovertyLow, 20}, {model.PovertyMinimal, 10},
	}
	gradeLevels = []weighted[string]{
		{"Grades PreK-2", 35}, {"Grades 3-5", 30},
		{"Grades 6-8", 20}, {"Grades 9-12", 15},
	}
	states = []weighted[string]{
		{"CA", 14}, {"NY", 10}, {"TX", 8}, {"IL", 6}, {"NC", 5},
		{"FL", 5}, {"SC", 4}, {"GA", 4}, {"PA", 3}, {"OK", 3},
		{"MI", 3}, {"WA", 3}, {"MA", 2}, {"NJ", 2}, {"AZ", 2},
		{"OH", 2}, {"IN", 2}, {"MO", 2}, {"VA", 2}, {"LA", 2},
		{"UT", 1}, {"OR", 1}, {"TN", 1}, {"MD", 1}, {"AL", 1},
		{"CT", 1}, {"CO", 1}, {"NV", 1}, {"KY", 1}, {"MN", 1},
		{"AR", 1}, {"MS", 1}, {"WI", 1}, {"HI", 1}, {"DC", 1},
	}
)

// Generator produces randomized project records.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns count projects posted between from and to inclusive.
// Categories follow fixed weights; donations are log-normal, rounded to
// cents, with about one project in ten unfunded.
func (g *Generator) Generate(count int, from, to model.Month) []model.Project {
	if to < from {
		from, to = to, from
	}
	span := int(to-from) + 1
	projects := make([]model.Project, 0, count)
	for i := 0; i < count; i++ {
		projects = append(projects, model.Project{
			DatePosted:     from + model.Month(g.rnd.Intn(span)),
			ResourceType:   pick(g.rnd, resourceTypes),
			PovertyLevel:   pick(g.rnd, povertyLevels),
			SchoolState:    pick(g.rnd, states),
			TotalDonations: g.donation(),
			GradeLevel:     pick(g.rnd, gradeLevels),
		})
	}
	return projects
}

func (g *Generator) donation() float64 {
	if g.rnd.Float64() < 0.1 {
		return 0
	}
	v := math.Exp(5.5 + g.rnd.NormFloat64())
	return math.Round(v*100) / 100
}

func pick[T any](rnd *rand.Rand, choices []weighted[T]) T {
	total := 0.0
	for _, c := range choices {
		total += c.weight
	}
	r := rnd.Float64() * total
	acc := 0.0
	for _, c := range choices {
		acc += c.weight
		if r < acc {
			return c.value
		}
	}
	return choices[len(choices)-1].value
}
