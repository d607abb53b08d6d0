package org

import (
	"io"
	"strings"

	appLog "khalorg/internal/log"
	"khalorg/internal/model"
	"khalorg/internal/recur"
)

// File is an ordered list of agenda items, one per first-level heading.
type File struct {
	Items []model.Item
}

// ParseFile loads every first-level heading of text as an item. Each
// item takes its timestamps from the first child of its heading.
func ParseFile(text string) (*File, error) {
	preamble, chunks := splitChunks(text)

	f := &File{}
	for _, c := range chunks {
		item, err := LoadItem(c)
		if err != nil {
			return nil, err
		}
		f.Items = append(f.Items, item)
	}
	appLog.Debug("parsed org file", "items", len(f.Items), "preamble_bytes", len(preamble))
	return f, nil
}

// ReadFile is ParseFile over a reader.
func ReadFile(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseFile(string(data))
}

// Dates expands every item; see recur.Collect.
func (f *File) Dates(cfg recur.ExpandConfig) (recur.DateCollection, *recur.Report) {
	return recur.Collect(f.Items, cfg)
}

type series struct {
	pos   int
	rule  recur.Rule
	first model.Timestamp
}

// ApplyRules folds the instances of recurring items into one item each.
//
// Items sharing an ID and a supported rule become the earliest-declared
// item, moved to the earliest start of the group and given the rule as an
// Org repeater. Recurring items with identical occurrences are then
// merged, keeping the earliest-declared one; this second merge also
// requires the normalized titles to match, so unrelated events that
// happen to share a schedule stay apart. Items with unsupported rules are
// kept as they are and recorded in the report.
func (f *File) ApplyRules(cfg recur.ExpandConfig) *recur.Report {
	report := &recur.Report{}
	groups := make(map[string]*series)
	out := make([]model.Item, 0, len(f.Items))

	for _, item := range f.Items {
		raw := recur.RuleOf(item)
		if raw == "" || len(item.Timestamps) == 0 {
			out = append(out, item)
			continue
		}
		rule, err := recur.Normalize(raw, item.Timestamps[0].Start)
		if err != nil {
			report.Skip(item, raw, err)
			out = append(out, item)
			continue
		}

		id := item.ID()
		if g, ok := groups[id]; ok {
			if item.Timestamps[0].Before(g.first) {
				g.first = item.Timestamps[0]
			}
			report.Merged++
			continue
		}
		groups[id] = &series{pos: len(out), rule: rule, first: item.Timestamps[0]}
		out = append(out, item.Clone())
	}

	for _, g := range groups {
		item := &out[g.pos]
		first := g.first
		first.Rule = g.rule.Repeater()
		item.Timestamps[0] = first
		model.SortTimestamps(item.Timestamps)
	}

	f.Items = mergeIdenticalSeries(out, cfg, report)
	return report
}

func mergeIdenticalSeries(items []model.Item, cfg recur.ExpandConfig, report *recur.Report) []model.Item {
	type kept struct {
		title string
		dates []model.Timestamp
	}
	var seen []kept
	out := items[:0]

	for _, item := range items {
		if recur.RuleOf(item) == "" {
			out = append(out, item)
			continue
		}
		dates, _, err := recur.Expand(item, cfg)
		if err != nil {
			out = append(out, item)
			continue
		}
		title := item.Normalized().Title
		duplicate := false
		for _, k := range seen {
			if k.title == title && recur.SameDates(k.dates, dates) {
				duplicate = true
				break
			}
		}
		if duplicate {
			report.Merged++
			continue
		}
		seen = append(seen, kept{title: title, dates: dates})
		out = append(out, item)
	}
	return out
}

// RemoveDuplicates drops items structurally equal (after whitespace
// normalization) to an earlier item.
func (f *File) RemoveDuplicates() int {
	var kept []model.Item
	out := f.Items[:0]
	removed := 0
	for _, item := range f.Items {
		norm := item.Normalized()
		if containsItem(kept, norm) {
			removed++
			continue
		}
		kept = append(kept, norm)
		out = append(out, item)
	}
	f.Items = out
	return removed
}

func containsItem(items []model.Item, item model.Item) bool {
	for _, other := range items {
		if other.Equal(item) {
			return true
		}
	}
	return false
}

// Format renders every item with template; see Format.
func (f *File) Format(template string) string {
	var b strings.Builder
	for _, item := range f.Items {
		b.WriteString(Format(item, template))
	}
	return b.String()
}
