package swapi

import (
	"strings"

	"github.com/shopspring/decimal"
)

// nullTokens are the upstream spellings of a missing value, compared
// case-insensitively after trimming whitespace.
var nullTokens = map[string]struct{}{
	"unknown": {},
	"n/a":     {},
	"":        {},
}

// IsNull reports whether s is one of the upstream placeholders for "no value".
func IsNull(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ConvertNull returns nil for placeholder values and a pointer to s otherwise.
func ConvertNull(s string) *string {
	if IsNull(s) {
		return nil
	}
	return &s
}

// ConvertDecimal parses a numeric string that may contain thousands
// separators. Placeholders and unparsable text yield nil, not an error.
func ConvertDecimal(s string) *decimal.Decimal {
	if IsNull(s) {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return nil
	}
	return &d
}

// ExtractColors splits a comma separated color attribute into lower-cased,
// trimmed names. Placeholders yield an empty, non-nil slice.
func ExtractColors(s string) []string {
	colors := []string{}
	if IsNull(s) {
		return colors
	}
	for _, c := range strings.Split(s, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		colors = append(colors, c)
	}
	return colors
}
