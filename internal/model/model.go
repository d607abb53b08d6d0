package model

import (
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Well-known property names. Keys are stored upper-case.
const (
	PropUID        = "UID"
	PropRRule      = "RRULE"
	PropLocation   = "LOCATION"
	PropAttendees  = "ATTENDEES"
	PropOrganizer  = "ORGANIZER"
	PropURL        = "URL"
	PropCalendar   = "CALENDAR"
	PropCategories = "CATEGORIES"
	PropStatus     = "STATUS"
	PropAlarms     = "ALARMS"
)

// Properties maps property drawer keys to their values.
type Properties map[string]string

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Item is a single agenda entry: one Org heading with its timestamps,
// property drawer and body text.
type Item struct {
	Title      string
	Timestamps []Timestamp
	Properties Properties
	Body       string
}

// itemFields drops the Equal method so cmp compares Item field by field.
type itemFields Item

var itemCmpOpts = []cmp.Option{cmpopts.EquateEmpty()}

// Equal reports structural equality over all fields. Nil and empty
// collections are treated alike.
func (i Item) Equal(o Item) bool {
	return cmp.Equal(itemFields(i), itemFields(o), itemCmpOpts...)
}

// Diff returns a human-readable difference, empty when equal.
func (i Item) Diff(o Item) string {
	return cmp.Diff(itemFields(i), itemFields(o), itemCmpOpts...)
}

// Normalized collapses whitespace in every text field. It is used for
// duplicate detection only; output always keeps the original text.
func (i Item) Normalized() Item {
	out := i.Clone()
	out.Title = collapse(out.Title)
	out.Body = collapse(out.Body)
	for k, v := range out.Properties {
		out.Properties[k] = collapse(v)
	}
	return out
}

func (i Item) Clone() Item {
	out := i
	if i.Timestamps != nil {
		out.Timestamps = append([]Timestamp(nil), i.Timestamps...)
	}
	out.Properties = i.Properties.Clone()
	return out
}

// Property returns the value stored under name and whether it is set.
func (i Item) Property(name string) (string, bool) {
	v, ok := i.Properties[strings.ToUpper(name)]
	return v, ok
}

// SetProperty stores value under name; an empty value removes the key.
func (i *Item) SetProperty(name, value string) {
	name = strings.ToUpper(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	if value == "" {
		delete(i.Properties, name)
		return
	}
	if i.Properties == nil {
		i.Properties = make(Properties)
	}
	i.Properties[name] = value
}

// SplitProperty splits a comma separated property such as ATTENDEES into
// its trimmed, non-empty parts.
func (i Item) SplitProperty(name string) []string {
	raw, ok := i.Property(name)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Key identifies an item by its title and timestamps.
func (i Item) Key() string {
	parts := make([]string, 0, len(i.Timestamps)+1)
	parts = append(parts, collapse(i.Title))
	for _, ts := range i.Timestamps {
		parts = append(parts, ts.String())
	}
	return strings.Join(parts, "\x1f")
}

// ID is the UID property when present, otherwise Key.
func (i Item) ID() string {
	if uid, ok := i.Property(PropUID); ok && uid != "" {
		return uid
	}
	return i.Key()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
