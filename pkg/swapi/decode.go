package swapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Field parsing failures, wrapped in a *FieldError.
var (
	ErrMissingField = errors.New("missing required field")
	ErrWrongType    = errors.New("wrong type")
	ErrInvalidURL   = errors.New("invalid absolute url")
	ErrNegative     = errors.New("negative measurement")
)

// FieldError reports the first field of a payload that failed to parse.
type FieldError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// fields holds the raw members of one JSON object.
type fields map[string]json.RawMessage

func objectFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &FieldError{Field: "$", Err: fmt.Errorf("%w: %v", ErrWrongType, err)}
	}
	if f == nil {
		return nil, &FieldError{Field: "$", Err: ErrMissingField}
	}
	return f, nil
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (f fields) requiredString(name string) (string, error) {
	raw, ok := f[name]
	if !ok || isNullJSON(raw) {
		return "", &FieldError{Field: name, Err: ErrMissingField}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &FieldError{Field: name, Err: ErrWrongType}
	}
	return s, nil
}

func (f fields) optionalString(name string) (*string, error) {
	raw, ok := f[name]
	if !ok || isNullJSON(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &FieldError{Field: name, Err: ErrWrongType}
	}
	return ConvertNull(s), nil
}

func (f fields) requiredInt(name string) (int, error) {
	raw, ok := f[name]
	if !ok || isNullJSON(raw) {
		return 0, &FieldError{Field: name, Err: ErrMissingField}
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &FieldError{Field: name, Err: ErrWrongType}
	}
	return n, nil
}

// measurement accepts a JSON string (with placeholders and thousands
// separators) or a JSON number. Absent and unparsable values are nil.
func (f fields) measurement(name string) (*decimal.Decimal, error) {
	raw, ok := f[name]
	if !ok || isNullJSON(raw) {
		return nil, nil
	}

	var d *decimal.Decimal
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		d = ConvertDecimal(s)
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, &FieldError{Field: name, Err: ErrWrongType}
		}
		d = ConvertDecimal(n.String())
	}

	if d != nil && d.IsNegative() {
		return nil, &FieldError{Field: name, Err: ErrNegative}
	}
	return d, nil
}

func (f fields) colors(name string) ([]string, error) {
	s, err := f.requiredString(name)
	if err != nil {
		return nil, err
	}
	return ExtractColors(s), nil
}

func (f fields) urlList(name string) ([]string, error) {
	raw, ok := f[name]
	if !ok || isNullJSON(raw) {
		return nil, &FieldError{Field: name, Err: ErrMissingField}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &FieldError{Field: name, Err: ErrWrongType}
	}
	for i, u := range list {
		if !isAbsoluteURL(u) {
			return nil, &FieldError{Field: fmt.Sprintf("%s[%d]", name, i), Err: ErrInvalidURL}
		}
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (f fields) optionalURL(name string) (*string, error) {
	s, err := f.optionalString(name)
	if err != nil || s == nil {
		return nil, err
	}
	if !isAbsoluteURL(*s) {
		return nil, &FieldError{Field: name, Err: ErrInvalidURL}
	}
	return s, nil
}

func (f fields) requiredURL(name string) (string, error) {
	s, err := f.requiredString(name)
	if err != nil {
		return "", err
	}
	if !isAbsoluteURL(s) {
		return "", &FieldError{Field: name, Err: ErrInvalidURL}
	}
	return s, nil
}

func (f fields) timestamp(name string) (time.Time, error) {
	s, err := f.requiredString(name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &FieldError{Field: name, Err: fmt.Errorf("%w: %v", ErrWrongType, err)}
	}
	return t, nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DecodePerson decodes a single api/people/ resource.
func DecodePerson(data []byte) (Person, error) {
	f, err := objectFields(data)
	if err != nil {
		return Person{}, err
	}
	return decodePerson(f)
}

func decodePerson(f fields) (Person, error) {
	var p Person
	var err error

	if p.Name, err = f.requiredString("name"); err != nil {
		return Person{}, err
	}
	if p.Height, err = f.measurement("height"); err != nil {
		return Person{}, err
	}
	if p.Mass, err = f.measurement("mass"); err != nil {
		return Person{}, err
	}
	if p.HairColors, err = f.colors("hair_color"); err != nil {
		return Person{}, err
	}
	if p.SkinColors, err = f.colors("skin_color"); err != nil {
		return Person{}, err
	}
	if p.EyeColors, err = f.colors("eye_color"); err != nil {
		return Person{}, err
	}
	if p.BirthYear, err = f.optionalString("birth_year"); err != nil {
		return Person{}, err
	}
	if p.Gender, err = f.optionalString("gender"); err != nil {
		return Person{}, err
	}
	if p.Homeworld, err = f.optionalURL("homeworld"); err != nil {
		return Person{}, err
	}
	if p.Films, err = f.urlList("films"); err != nil {
		return Person{}, err
	}
	if p.Species, err = f.urlList("species"); err != nil {
		return Person{}, err
	}
	if p.Vehicles, err = f.urlList("vehicles"); err != nil {
		return Person{}, err
	}
	if p.Starships, err = f.urlList("starships"); err != nil {
		return Person{}, err
	}
	if p.Created, err = f.timestamp("created"); err != nil {
		return Person{}, err
	}
	if p.Edited, err = f.timestamp("edited"); err != nil {
		return Person{}, err
	}
	if p.URL, err = f.requiredURL("url"); err != nil {
		return Person{}, err
	}
	return p, nil
}

// DecodePersonPage decodes one page of the api/people/ collection.
func DecodePersonPage(data []byte) (PersonPage, error) {
	f, err := objectFields(data)
	if err != nil {
		return PersonPage{}, err
	}

	var page PersonPage
	if page.Count, err = f.requiredInt("count"); err != nil {
		return PersonPage{}, err
	}
	if page.Count < 0 {
		return PersonPage{}, &FieldError{Field: "count", Err: ErrNegative}
	}
	if page.Next, err = f.optionalURL("next"); err != nil {
		return PersonPage{}, err
	}
	if page.Previous, err = f.optionalURL("previous"); err != nil {
		return PersonPage{}, err
	}

	raw, ok := f["results"]
	if !ok || isNullJSON(raw) {
		return PersonPage{}, &FieldError{Field: "results", Err: ErrMissingField}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return PersonPage{}, &FieldError{Field: "results", Err: ErrWrongType}
	}

	page.Results = make([]Person, 0, len(items))
	for i, item := range items {
		pf, err := objectFields(item)
		if err == nil {
			var p Person
			if p, err = decodePerson(pf); err == nil {
				page.Results = append(page.Results, p)
				continue
			}
		}
		var fe *FieldError
		if errors.As(err, &fe) {
			return PersonPage{}, &FieldError{Field: fmt.Sprintf("results[%d].%s", i, fe.Field), Err: fe.Err}
		}
		return PersonPage{}, err
	}
	return page, nil
}

// DecodeSpecies decodes an api/species/ resource, keeping only its name.
func DecodeSpecies(data []byte) (Species, error) {
	f, err := objectFields(data)
	if err != nil {
		return Species{}, err
	}
	name, err := f.requiredString("name")
	if err != nil {
		return Species{}, err
	}
	return Species{Name: name}, nil
}
