package rank

import (
	"cmp"
	"strings"

	"github.com/Sternrassler/swapi-etl/pkg/swapi"
)

// ByAppearances is the ranking key for people: their film count.
func ByAppearances(p swapi.EnrichedPerson) int {
	return p.Person.Appearances()
}

// HasHeight is the validity predicate for people: only people with a
// numeric height can be displayed.
func HasHeight(p swapi.EnrichedPerson) bool {
	return p.Person.HasHeight()
}

// ByHeightDesc orders people tallest first. Equal heights fall back to
// more appearances first, then name.
func ByHeightDesc(a, b swapi.EnrichedPerson) int {
	if a.Person.Height != nil && b.Person.Height != nil {
		if c := b.Person.Height.Cmp(*a.Person.Height); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(b.Person.Appearances(), a.Person.Appearances()); c != 0 {
		return c
	}
	return strings.Compare(a.Person.Name, b.Person.Name)
}

// NewPeople creates a selector for the k people with the most
// appearances among those with a height.
func NewPeople(k int) *Selector[swapi.EnrichedPerson] {
	return New(k, ByAppearances, HasHeight)
}
