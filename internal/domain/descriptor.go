// Package domain defines the StaffProof collections that list screens bind
// to, and describes each one's search fields, filters and wire envelope.
package domain

import (
	"fmt"
	"sort"
)

// Envelope is the list response shape a collection is served with.
type Envelope string

const (
	EnvelopeData    Envelope = "data"    // {data, total, totalPages}
	EnvelopeRecords Envelope = "records" // {records, total, totalPages}
	EnvelopeItems   Envelope = "items"   // {items, pagination{...}}
)

// FilterKind says how a filter value constrains a record field.
type FilterKind int

const (
	FilterExact FilterKind = iota // case-insensitive equality
	FilterDate                    // query.DateRange "from..to" over an RFC3339 field
)

// FilterSpec describes one filter a screen offers.
type FilterSpec struct {
	Key    string   // query parameter
	Label  string   // UI label
	Field  string   // JSON field it constrains
	Kind   FilterKind
	Values []string // allowed values in cycling order; empty means free-form

	// Map translates query values to field values, e.g. "unread" -> false.
	Map map[string]any
}

// Column is one TUI table column.
type Column struct {
	Title string
	Width int
}

// Descriptor describes a collection.
type Descriptor struct {
	Name          string // path segment under /api
	Title         string
	Envelope      Envelope
	SearchFields  []string // JSON fields matched by free-text search
	Filters       []FilterSpec
	Columns       []Column
	SortField     string // newest first unless SortAscending
	SortAscending bool
	Required      []string // fields a create or update must carry
	Actions       []string // per-item actions, PUT /{id}/{action}
	Bulk          []string // collection actions, POST /{action}
	ReadOnly      bool     // no create/update/delete
}

// Filter returns the spec for key.
func (d Descriptor) Filter(key string) (FilterSpec, bool) {
	for _, f := range d.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return FilterSpec{}, false
}

// HasAction reports whether action is a per-item action of d.
func (d Descriptor) HasAction(action string) bool {
	return contains(d.Actions, action)
}

// HasBulk reports whether action is a bulk action of d.
func (d Descriptor) HasBulk(action string) bool {
	return contains(d.Bulk, action)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Next returns the value after current in the cycling order of a filter,
// wrapping to "" (no filter) after the last value.
func (f FilterSpec) Next(current string) string {
	if len(f.Values) == 0 {
		return ""
	}
	if current == "" {
		return f.Values[0]
	}
	for i, v := range f.Values {
		if v == current {
			if i+1 < len(f.Values) {
				return f.Values[i+1]
			}
			return ""
		}
	}
	return f.Values[0]
}

var registry = map[string]Descriptor{}

func register(d Descriptor) {
	if _, dup := registry[d.Name]; dup {
		panic(fmt.Sprintf("domain: duplicate descriptor %q", d.Name))
	}
	registry[d.Name] = d
}

// Lookup returns the descriptor for a collection name.
func Lookup(name string) (Descriptor, bool) {
	d, ok := registry[name]
	return d, ok
}

// All returns every descriptor in name order.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every collection name in order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	return names
}
