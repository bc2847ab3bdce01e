// Package swapi defines the records consumed from the Star Wars API and the
// typed decoders that turn its loosely typed JSON into them.
//
// The upstream API encodes almost every field as a string. Missing values are
// spelled as placeholder tokens ("unknown", "n/a" or the empty string),
// numbers may carry thousands separators ("1,358") and color attributes are
// comma separated lists ("blond, grey"). Decoding happens in two steps:
//
//   - the payload is split into raw fields (map of json.RawMessage)
//   - each field is parsed by an explicit function in a fixed order, and the
//     first failure is reported as a *FieldError naming the field
//
// Only the fields needed for ranking and export are guaranteed to be
// preserved faithfully; everything else is decoded on a best-effort basis.
package swapi
