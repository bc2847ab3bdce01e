package rank

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/Sternrassler/swapi-etl/pkg/swapi"
	"github.com/shopspring/decimal"
)

func ints(xs ...int) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for _, x := range xs {
			if !yield(x, nil) {
				return
			}
		}
	}
}

func identity(x int) int { return x }

func desc(a, b int) int { return cmp.Compare(b, a) }

func TestSelector_TopK(t *testing.T) {
	tests := []struct {
		name  string
		k     int
		input []int
		want  []int
	}{
		{"fewer than k", 5, []int{3, 1, 2}, []int{3, 2, 1}},
		{"exactly k", 3, []int{3, 1, 2}, []int{3, 2, 1}},
		{"more than k", 3, []int{5, 1, 9, 7, 3, 8}, []int{9, 8, 7}},
		{"k zero", 0, []int{5, 1, 9}, []int{}},
		{"negative k", -1, []int{5, 1, 9}, []int{}},
		{"empty input", 3, nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.k, identity, nil)
			got, err := Select(s, ints(tt.input...), desc)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Select() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelector_ValidityPredicate(t *testing.T) {
	even := func(x int) bool { return x%2 == 0 }
	s := New(2, identity, even)

	got, err := Select(s, ints(9, 4, 7, 2, 6, 1), desc)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if fmt.Sprint(got) != "[6 4]" {
		t.Errorf("Select() = %v, want [6 4]", got)
	}

	stats := s.Stats()
	if stats.Seen != 6 || stats.Rejected != 3 || stats.Discarded != 1 {
		t.Errorf("Stats() = %+v, want Seen=6 Rejected=3 Discarded=1", stats)
	}
}

func TestSelector_TieAtMinimumDiscarded(t *testing.T) {
	type rec struct {
		key  int
		name string
	}
	s := New(2, func(r rec) int { return r.key }, nil)

	s.Offer(rec{5, "first"})
	s.Offer(rec{3, "kept"})
	if s.Offer(rec{3, "late"}) {
		t.Error("Offer() with key equal to minimum = true, want false")
	}

	got := s.Sorted(func(a, b rec) int { return cmp.Compare(b.key, a.key) })
	if got[1].name != "kept" {
		t.Errorf("retained %v, want earlier record to win the tie", got)
	}
}

func TestSelector_Error(t *testing.T) {
	cause := errors.New("walk failed")
	seq := func(yield func(int, error) bool) {
		if !yield(1, nil) {
			return
		}
		yield(0, cause)
	}

	got, err := Select(New(3, identity, nil), seq, desc)
	if !errors.Is(err, cause) {
		t.Errorf("Select() error = %v, want %v", err, cause)
	}
	if got != nil {
		t.Errorf("Select() = %v, want nil on error", got)
	}
}

// Every retained key is >= every discarded key, for random streams.
func TestSelector_Property(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 100; round++ {
		n := r.IntN(200)
		k := r.IntN(20)
		input := make([]int, n)
		for i := range input {
			input[i] = r.IntN(1000)
		}

		s := New(k, identity, nil)
		got, _ := Select(s, ints(input...), desc)

		sorted := slices.Clone(input)
		slices.SortFunc(sorted, desc)
		want := sorted[:min(k, n)]

		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("round %d: Select(k=%d) = %v, want %v", round, k, got, want)
		}
		if s.Len() != min(k, n) {
			t.Fatalf("round %d: Len() = %d, want %d", round, s.Len(), min(k, n))
		}
	}
}

func person(name, height string, films int) swapi.EnrichedPerson {
	p := swapi.Person{Name: name, Films: make([]string, films)}
	if height != "" {
		h := decimal.RequireFromString(height)
		p.Height = &h
	}
	return swapi.EnrichedPerson{Person: p}
}

func TestNewPeople(t *testing.T) {
	s := NewPeople(3)

	input := []swapi.EnrichedPerson{
		person("Luke Skywalker", "172", 4),
		person("R2-D2", "96", 7),
		person("Unknown Height", "", 9),
		person("Yoda", "66", 5),
		person("Wedge Antilles", "170", 3),
		person("Obi-Wan Kenobi", "182", 6),
	}
	for _, p := range input {
		s.Offer(p)
	}

	got := s.Sorted(ByHeightDesc)
	var names []string
	for _, p := range got {
		names = append(names, p.Person.Name)
	}

	want := []string{"Obi-Wan Kenobi", "R2-D2", "Yoda"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("Sorted() = %v, want %v", names, want)
	}
	if s.Stats().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", s.Stats().Rejected)
	}
}

func TestByHeightDesc_TieBreak(t *testing.T) {
	people := []swapi.EnrichedPerson{
		person("Beta", "180", 2),
		person("Alpha", "180", 2),
		person("Gamma", "180", 5),
		person("Tall", "200", 1),
	}
	slices.SortFunc(people, ByHeightDesc)

	var names []string
	for _, p := range people {
		names = append(names, p.Person.Name)
	}
	if fmt.Sprint(names) != "[Tall Gamma Alpha Beta]" {
		t.Errorf("order = %v, want [Tall Gamma Alpha Beta]", names)
	}
}
