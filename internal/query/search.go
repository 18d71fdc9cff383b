package query

import "strings"

// SuggestionMinLength is the minimum query length for typeahead endpoints.
// Shorter queries return an empty result without touching storage.
const SuggestionMinLength = 2

// SuggestionLimit caps typeahead result sets.
const SuggestionLimit = 10

// Terms splits a free-text query on whitespace. An empty or blank query
// yields no terms.
func Terms(q string) []string {
	return strings.Fields(q)
}

// Search builds the multi-term search predicate: every term must match
// (AND), and a term matches when any of the configured field paths contains
// it case-insensitively (OR). An empty query yields an empty predicate.
func Search(q string, fields []string) Pred {
	terms := Terms(q)
	if len(terms) == 0 || len(fields) == 0 {
		return Pred{}
	}
	perTerm := make([]Pred, 0, len(terms))
	for _, term := range terms {
		alts := make([]Pred, 0, len(fields))
		for _, f := range fields {
			alts = append(alts, Where(f, OpIContains, term))
		}
		perTerm = append(perTerm, Or(alts...))
	}
	return And(perTerm...)
}
