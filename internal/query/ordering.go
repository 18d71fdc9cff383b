package query

import "strings"

// Order is one resolved sort key.
type Order struct {
	Field string
	Desc  bool
}

// ResolveOrdering maps a raw ordering parameter to sort keys. A leading "-"
// means descending. Aliases expand a public key to one or more field paths
// (a compound alias applies the direction to every path). Keys without an
// alias pass through as raw field paths, matching the historical behavior of
// the list endpoints; unknown columns then simply sort as missing values.
// An empty parameter resolves to def.
func ResolveOrdering(raw string, aliases map[string][]string, def string) []Order {
	key := strings.TrimSpace(raw)
	if key == "" {
		key = def
	}
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")
	if key == "" {
		return nil
	}
	fields, ok := aliases[key]
	if !ok {
		fields = []string{key}
	}
	out := make([]Order, 0, len(fields))
	for _, f := range fields {
		out = append(out, Order{Field: f, Desc: desc})
	}
	return out
}
