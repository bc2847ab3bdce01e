package swapi

import (
	"time"

	"github.com/shopspring/decimal"
)

// Person is a record from the api/people/ collection.
type Person struct {
	Name       string
	Height     *decimal.Decimal // nil when upstream reports no numeric height
	Mass       *decimal.Decimal
	HairColors []string
	SkinColors []string
	EyeColors  []string
	BirthYear  *string
	Gender     *string
	Homeworld  *string
	Films      []string
	Species    []string
	Vehicles   []string
	Starships  []string
	Created    time.Time
	Edited     time.Time
	URL        string
}

// Appearances returns the number of films the person appears in.
func (p Person) Appearances() int {
	return len(p.Films)
}

// HasHeight reports whether the person carries a numeric height.
func (p Person) HasHeight() bool {
	return p.Height != nil
}

// PersonPage is one decoded page of the people collection.
type PersonPage struct {
	Count    int
	Next     *string
	Previous *string
	Results  []Person
}

// Items returns the records on the page.
func (p PersonPage) Items() []Person {
	return p.Results
}

// Total returns the item count across all pages.
func (p PersonPage) Total() int {
	return p.Count
}

// Species is the projection of an api/species/ resource kept in memory.
// The rest of the upstream schema is dropped at decode time.
type Species struct {
	Name string
}

// EnrichedPerson is a Person with its species references resolved.
type EnrichedPerson struct {
	Person  Person
	Species []Species
}

// SpeciesNames returns the species names in reference order.
func (e EnrichedPerson) SpeciesNames() []string {
	names := make([]string, 0, len(e.Species))
	for _, s := range e.Species {
		names = append(names, s.Name)
	}
	return names
}
