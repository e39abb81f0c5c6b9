// Package filter implements the pure attribute-filter predicate used to
// decide whether a published message is admitted to a subscribing queue.
// It is intentionally side-effect free: no database handle is threaded
// through it, per the broker's design note that filtering stay a value
// function of its two inputs.
package filter

import "encoding/json"

// Set is a set of allowed attribute values, represented as a map for
// JSONB round-tripping and O(1) membership tests.
type Set map[string]struct{}

// Filters maps an attribute name to its set of allowed values. A nil
// Filters admits every message.
type Filters map[string]Set

// MarshalJSON encodes the filter as {"key": ["v1", "v2"]}.
func (f Filters) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	out := make(map[string][]string, len(f))
	for k, set := range f {
		vals := make([]string, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		out[k] = vals
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes {"key": ["v1", "v2"]} into the set representation.
func (f *Filters) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Filters, len(raw))
	for k, vals := range raw {
		set := make(Set, len(vals))
		for _, v := range vals {
			set[v] = struct{}{}
		}
		out[k] = set
	}
	*f = out
	return nil
}

// Admit decides whether a message carrying attrs is admitted to a queue
// whose subscription filter is filters.
//
//   - nil filters admit everything.
//   - non-nil filters reject a message with nil attrs.
//   - every key in filters must be present in attrs with a value that is a
//     member of the allowed set; a missing key rejects. Extra keys on the
//     message side are ignored. Equality is exact string equality.
func Admit(filters Filters, attrs map[string]string) bool {
	if filters == nil {
		return true
	}
	if attrs == nil {
		return false
	}
	for key, allowed := range filters {
		val, ok := attrs[key]
		if !ok {
			return false
		}
		if _, ok := allowed[val]; !ok {
			return false
		}
	}
	return true
}
