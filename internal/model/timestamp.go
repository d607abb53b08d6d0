package model

import (
	"sort"
	"time"
)

const (
	// DateLayout is the Org date part, e.g. "2023-01-01 Sun".
	DateLayout = "2006-01-02 Mon"
	// TimeLayout is the Org time part, e.g. "01:00".
	TimeLayout = "15:04"
)

// Timestamp is an active Org timestamp.
type Timestamp struct {
	Start time.Time
	// End is the zero time when the timestamp has no end.
	End time.Time
	// Rule is the Org repeater (e.g. "+1w"), empty when not recurring.
	Rule   string
	AllDay bool
}

func (t Timestamp) HasEnd() bool {
	return !t.End.IsZero()
}

// Duration is End-Start, or zero without an end.
func (t Timestamp) Duration() time.Duration {
	if !t.HasEnd() {
		return 0
	}
	return t.End.Sub(t.Start)
}

// Equal compares all fields; times are compared as instants.
func (t Timestamp) Equal(o Timestamp) bool {
	return t.Start.Equal(o.Start) &&
		t.End.Equal(o.End) &&
		t.Rule == o.Rule &&
		t.AllDay == o.AllDay
}

// Before orders timestamps by start time.
func (t Timestamp) Before(o Timestamp) bool {
	return t.Start.Before(o.Start)
}

// String renders the timestamp in Org syntax. Ranges use the
// "<start>--<end>" form with the repeater on both ends.
func (t Timestamp) String() string {
	start := t.stamp(t.Start)
	if !t.HasEnd() {
		return start
	}
	return start + "--" + t.stamp(t.End)
}

func (t Timestamp) stamp(at time.Time) string {
	layout := DateLayout
	if !t.AllDay {
		layout += " " + TimeLayout
	}
	s := "<" + at.Format(layout)
	if t.Rule != "" {
		s += " " + t.Rule
	}
	return s + ">"
}

// SortTimestamps sorts by start time, keeping the input order of equal
// starts.
func SortTimestamps(ts []Timestamp) {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].Before(ts[j])
	})
}
