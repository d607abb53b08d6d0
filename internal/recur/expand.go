package recur

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "khalorg/internal/log"
	"khalorg/internal/model"
)

const (
	DefaultHorizonDays    = 365
	DefaultMaxOccurrences = 500
)

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// HorizonDays is the inclusive window after the first start in which
	// occurrences are materialized. Zero means DefaultHorizonDays.
	HorizonDays int

	// MaxOccurrences caps the occurrences per item. Zero means
	// DefaultMaxOccurrences.
	MaxOccurrences int
}

func (c ExpandConfig) normalized() ExpandConfig {
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = DefaultMaxOccurrences
	}
	return c
}

// Skipped records a rule that was not expanded.
type Skipped struct {
	ItemID string
	Title  string
	Rule   string
	Err    error
}

// Report collects what expansion and merging did to a set of items.
type Report struct {
	Skipped []Skipped
	// Truncated lists item IDs that hit MaxOccurrences.
	Truncated []string
	// Merged counts items folded into an earlier item.
	Merged int
}

// Skip records and logs an unsupported rule.
func (r *Report) Skip(item model.Item, rule string, err error) {
	r.Skipped = append(r.Skipped, Skipped{ItemID: item.ID(), Title: item.Title, Rule: rule, Err: err})
	appLog.Warn("recurrence rule skipped, using literal timestamps",
		"title", item.Title,
		"rule", rule,
		"reason", err,
	)
}

// Expand returns the concrete occurrences of item within the configured
// horizon. Items without a rule yield their literal timestamps. For an
// unsupported rule the literal timestamps are returned together with an
// error wrapping ErrUnsupportedRule.
func Expand(item model.Item, cfg ExpandConfig) ([]model.Timestamp, bool, error) {
	cfg = cfg.normalized()

	literal := append([]model.Timestamp(nil), item.Timestamps...)
	model.SortTimestamps(literal)
	if len(literal) == 0 {
		return nil, false, nil
	}

	raw := RuleOf(item)
	if raw == "" {
		return uniq(literal), false, nil
	}

	base := literal[0]
	rule, err := Normalize(raw, base.Start)
	if err != nil {
		return uniq(literal), false, err
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rule.Freq,
		Interval: rule.Interval,
		Dtstart:  base.Start,
	})
	if err != nil {
		return uniq(literal), false, errors.Join(ErrUnsupportedRule, err)
	}

	until := base.Start.AddDate(0, 0, cfg.HorizonDays)
	starts := r.Between(base.Start, until, true)

	truncated := false
	if len(starts) > cfg.MaxOccurrences {
		starts = starts[:cfg.MaxOccurrences]
		truncated = true
	}

	out := make([]model.Timestamp, 0, len(starts)+len(literal)-1)
	for _, start := range starts {
		out = append(out, shift(base, start))
	}
	for _, ts := range literal[1:] {
		ts.Rule = ""
		out = append(out, ts)
	}
	return uniq(out), truncated, nil
}

// shift moves base to start, keeping its length. All-day spans keep their
// day count, timed spans their duration.
func shift(base model.Timestamp, start time.Time) model.Timestamp {
	ts := model.Timestamp{Start: start, AllDay: base.AllDay}
	if !base.HasEnd() {
		return ts
	}
	if base.AllDay {
		ts.End = start.AddDate(0, 0, daysBetween(base.Start, base.End))
	} else {
		ts.End = start.Add(base.Duration())
	}
	return ts
}

func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// uniq sorts ts and drops equal neighbours.
func uniq(ts []model.Timestamp) []model.Timestamp {
	model.SortTimestamps(ts)
	out := ts[:0]
	for i, t := range ts {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// DateCollection maps Item.ID to the occurrences of every item carrying
// that ID.
type DateCollection map[string][]model.Timestamp

// Collect expands every item and groups the occurrences by item ID.
// Unsupported rules are recorded in the report and degrade to literal
// timestamps.
func Collect(items []model.Item, cfg ExpandConfig) (DateCollection, *Report) {
	dates := make(DateCollection)
	report := &Report{}

	for _, item := range items {
		occ, truncated, err := Expand(item, cfg)
		if err != nil {
			report.Skip(item, RuleOf(item), err)
		}
		id := item.ID()
		if truncated {
			report.Truncated = append(report.Truncated, id)
			appLog.Info("recurrence expansion truncated", "title", item.Title, "cap", cfg.normalized().MaxOccurrences)
		}
		dates[id] = uniq(append(dates[id], occ...))
	}
	return dates, report
}

// SameDates reports whether two occurrence sets are identical.
func SameDates(a, b []model.Timestamp) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
