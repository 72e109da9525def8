package config

import (
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Table is a config table that remembers the order its keys were declared
// in. Task listings and env layering both depend on declaration order, which
// plain Go maps lose.
type Table struct {
	m *orderedmap.OrderedMap[string, any]
}

func newTable() *Table {
	return &Table{m: orderedmap.New[string, any]()}
}

// Set stores v under key. A new key goes to the end of the order; an
// existing key keeps its position.
func (t *Table) Set(key string, v any) {
	t.m.Set(key, v)
}

// Get returns the value stored under key.
func (t *Table) Get(key string) (any, bool) {
	return t.m.Get(key)
}

// Keys returns the keys in declaration order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, t.m.Len())
	for p := t.m.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Len returns the number of keys.
func (t *Table) Len() int {
	return t.m.Len()
}

// Lookup follows path through nested tables.
func (t *Table) Lookup(path ...string) (any, bool) {
	var cur any = t
	for _, key := range path {
		tbl, ok := cur.(*Table)
		if !ok {
			return nil, false
		}
		cur, ok = tbl.Get(key)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Plain converts the table into nested map[string]any / []any values, the
// shape mapstructure decodes from.
func (t *Table) Plain() map[string]any {
	out := make(map[string]any, t.m.Len())
	for p := t.m.Oldest(); p != nil; p = p.Next() {
		out[p.Key] = plain(p.Value)
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case *Table:
		return x.Plain()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

// fromMap builds a Table from m. Keys listed in order come first, in that
// order; any remaining keys follow sorted. Nested maps are converted with
// the order recorded under their own path.
func fromMap(m map[string]any, path []string, order keyOrder) *Table {
	t := newTable()
	for _, k := range order.keys(path) {
		if v, ok := m[k]; ok {
			t.Set(k, fromValue(v, append(path, k), order))
		}
	}
	rest := make([]string, 0, len(m))
	for k := range m {
		if _, ok := t.Get(k); !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		t.Set(k, fromValue(m[k], append(path, k), order))
	}
	return t
}

func fromValue(v any, path []string, order keyOrder) any {
	switch x := v.(type) {
	case map[string]any:
		return fromMap(x, append([]string(nil), path...), order)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			// Tables inside arrays keep sorted key order.
			out[i] = fromValue(item, nil, nil)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromMap(item, nil, nil)
		}
		return out
	default:
		return v
	}
}

// keyOrder maps a joined table path to the keys declared in that table.
type keyOrder map[string][]string

func joinKey(path []string) string {
	return strings.Join(path, "\x1f")
}

func (o keyOrder) keys(path []string) []string {
	if o == nil {
		return nil
	}
	return o[joinKey(path)]
}

// note records every segment of path under its parent table, once.
func (o keyOrder) note(path []string, seen map[string]bool) {
	for i := range path {
		full := joinKey(path[:i+1])
		if seen[full] {
			continue
		}
		seen[full] = true
		parent := joinKey(path[:i])
		o[parent] = append(o[parent], path[i])
	}
}
