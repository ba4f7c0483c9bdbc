// Package filter composes a free-text query with structured predicates
// over a list of items. The filter state is plain data; matching is pure.
package filter

import (
	"slices"
	"strings"
	"time"
)

// Key names a structured predicate (e.g. "source", "kind", "age").
type Key string

// Predicate tests one item against the values selected for Key.
// An empty value list never reaches Test: it is vacuously true.
type Predicate[T any] struct {
	Key  Key
	Test func(item T, values []string) bool
}

// OneOf keeps items whose field equals any of the values, ignoring case.
func OneOf[T any](key Key, field func(T) string) Predicate[T] {
	return Predicate[T]{
		Key: key,
		Test: func(item T, values []string) bool {
			got := field(item)
			for _, v := range values {
				if strings.EqualFold(got, v) {
					return true
				}
			}
			return false
		},
	}
}

// Within keeps items whose timestamp is newer than now minus the largest
// duration among the values (e.g. "24h"). Unparseable values are ignored;
// if none parse, every item passes.
func Within[T any](key Key, field func(T) time.Time, now func() time.Time) Predicate[T] {
	if now == nil {
		now = time.Now
	}
	return Predicate[T]{
		Key: key,
		Test: func(item T, values []string) bool {
			var maxAge time.Duration
			for _, v := range values {
				d, err := time.ParseDuration(v)
				if err == nil && d > maxAge {
					maxAge = d
				}
			}
			if maxAge == 0 {
				return true
			}
			return field(item).After(now().Add(-maxAge))
		},
	}
}

// State is the complete filter input: a query plus selected values per key.
type State struct {
	Query  string
	Values map[Key][]string
}

// Active reports whether any part of the state constrains the list.
func (s State) Active() bool {
	if s.Query != "" {
		return true
	}
	for _, vs := range s.Values {
		if len(vs) > 0 {
			return true
		}
	}
	return false
}

// Selected returns the values chosen for key.
func (s State) Selected(key Key) []string {
	return s.Values[key]
}

// Has reports whether value is selected for key.
func (s State) Has(key Key, value string) bool {
	return slices.Contains(s.Values[key], value)
}

func (s State) clone() State {
	out := State{Query: s.Query}
	if len(s.Values) > 0 {
		out.Values = make(map[Key][]string, len(s.Values))
		for k, vs := range s.Values {
			out.Values[k] = slices.Clone(vs)
		}
	}
	return out
}

// IsActive is the pure form of State.Active.
func IsActive(s State) bool {
	return s.Active()
}

func matchQuery(name, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}
