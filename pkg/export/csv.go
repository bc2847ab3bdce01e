// Package export renders ranked people as rows.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/swapi-etl/pkg/swapi"
)

// ContentType is the media type of CSV output.
const ContentType = "text/csv; charset=utf-8"

// Header is the column row of every export.
var Header = []string{"name", "species", "height", "appearances"}

// Row renders one person.
func Row(p swapi.EnrichedPerson) []string {
	height := ""
	if p.Person.Height != nil {
		height = p.Person.Height.String()
	}
	return []string{
		p.Person.Name,
		strings.Join(p.SpeciesNames(), ", "),
		height,
		strconv.Itoa(p.Person.Appearances()),
	}
}

// Rows renders people in input order, without the header.
func Rows(people []swapi.EnrichedPerson) [][]string {
	rows := make([][]string, 0, len(people))
	for _, p := range people {
		rows = append(rows, Row(p))
	}
	return rows
}

// CSV writes a header and one row per person to w.
func CSV(w io.Writer, people []swapi.EnrichedPerson) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(people)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// CSVBytes returns the CSV rendering of people.
func CSVBytes(people []swapi.EnrichedPerson) ([]byte, error) {
	var buf bytes.Buffer
	if err := CSV(&buf, people); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Table writes an aligned plain-text table for terminals and logs.
func Table(w io.Writer, people []swapi.EnrichedPerson) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Header, "\t"))
	for _, row := range Rows(people) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
