package org

import (
	"errors"
	"strings"
	"testing"

	"khalorg/internal/recur"
)

// khalWeekly is what `khal list` prints for three instances of a weekly
// event.
const khalWeekly = `* Meeting
:PROPERTIES:
:RRULE: FREQ=WEEKLY
:UID: 123
:END:
<2023-01-08 Sun 01:00>--<2023-01-08 Sun 02:00>
Some text
* Meeting
:PROPERTIES:
:RRULE: FREQ=WEEKLY
:UID: 123
:END:
<2023-01-01 Sun 01:00>--<2023-01-01 Sun 02:00>
Some text
* Meeting
:PROPERTIES:
:RRULE: FREQ=WEEKLY
:UID: 123
:END:
<2023-01-15 Sun 01:00>--<2023-01-15 Sun 02:00>
Some text
`

const weeklyFormatted = `* Meeting
:PROPERTIES:
:RRULE: FREQ=WEEKLY
:UID: 123
:END:
<2023-01-01 Sun 01:00 +1w>--<2023-01-01 Sun 02:00 +1w>
Some text
`

func TestParseFile(t *testing.T) {
	f, err := ParseFile(khalWeekly)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(f.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(f.Items))
	}
	for i, item := range f.Items {
		if len(item.Timestamps) != 1 {
			t.Errorf("item %d: expected one timestamp, got %v", i, item.Timestamps)
		}
	}
}

func TestReadFile(t *testing.T) {
	doc := "#+TITLE: agenda\n\n" +
		"#+BEGIN_SRC org\n* Not an item\n#+END_SRC\n" +
		"* First\n<2023-01-01 Sun>\n" +
		"** Child\nchild text\n" +
		"* Second\n<2023-01-02 Mon 09:00>\n"

	f, err := ReadFile(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(f.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(f.Items))
	}
	for i, title := range []string{"First", "Second"} {
		item := f.Items[i]
		if item.Title != title || len(item.Timestamps) != 1 {
			t.Errorf("item %d = %q with %v", i, item.Title, item.Timestamps)
		}
		if item.Body != "" {
			t.Errorf("item %d body = %q, want empty", i, item.Body)
		}
	}
}

func TestParseFileEmpty(t *testing.T) {
	f, err := ParseFile("")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(f.Items) != 0 {
		t.Errorf("expected no items, got %d", len(f.Items))
	}
}

func TestApplyRulesMergesInstances(t *testing.T) {
	// An ordinal BYDAY on a weekly rule only names the weekday.
	for _, rule := range []string{"FREQ=WEEKLY", "FREQ=WEEKLY;BYDAY=1SU"} {
		t.Run(rule, func(t *testing.T) {
			f, err := ParseFile(strings.ReplaceAll(khalWeekly, "FREQ=WEEKLY", rule))
			if err != nil {
				t.Fatalf("ParseFile: %v", err)
			}
			want := strings.ReplaceAll(weeklyFormatted, "FREQ=WEEKLY", rule)

			report := f.ApplyRules(recur.ExpandConfig{})
			if report.Merged != 2 {
				t.Errorf("merged = %d, want 2", report.Merged)
			}
			if len(report.Skipped) != 0 {
				t.Errorf("unexpected skipped rules: %+v", report.Skipped)
			}

			if got := f.Format(DefaultFormat); got != want {
				t.Errorf("Format() =\n%s\nwant\n%s", got, want)
			}

			// A second pass finds nothing left to fold.
			again := f.ApplyRules(recur.ExpandConfig{})
			if again.Merged != 0 || len(f.Items) != 1 {
				t.Errorf("ApplyRules not idempotent: merged=%d items=%d", again.Merged, len(f.Items))
			}
			if got := f.Format(DefaultFormat); got != want {
				t.Errorf("second Format() =\n%s", got)
			}
		})
	}
}

func TestApplyRulesUnsupportedDegrades(t *testing.T) {
	doc := strings.ReplaceAll(khalWeekly, "FREQ=WEEKLY", "FREQ=WEEKLY;COUNT=3")
	f, err := ParseFile(doc)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	report := f.ApplyRules(recur.ExpandConfig{})
	if len(f.Items) != 3 {
		t.Fatalf("unsupported rules must keep the literal items, got %d", len(f.Items))
	}
	if len(report.Skipped) != 3 {
		t.Fatalf("expected 3 skipped rules, got %d", len(report.Skipped))
	}
	if !errors.Is(report.Skipped[0].Err, recur.ErrUnsupportedRule) {
		t.Errorf("skip reason should wrap ErrUnsupportedRule: %v", report.Skipped[0].Err)
	}
	for _, item := range f.Items {
		if item.Timestamps[0].Rule != "" {
			t.Errorf("degraded item must stay non-recurring, got rule %q", item.Timestamps[0].Rule)
		}
	}
}

func TestApplyRulesMergesIdenticalSeries(t *testing.T) {
	doc := `* Standup
:PROPERTIES:
:UID: a
:END:
<2023-01-02 Mon 09:00 +1d>
* Standup
:PROPERTIES:
:UID: b
:END:
<2023-01-02 Mon 09:00 +1d>
* Review
:PROPERTIES:
:UID: c
:END:
<2023-01-02 Mon 09:00 +1d>
* Lunch
<2023-01-02 Mon 12:00>
`
	f, err := ParseFile(doc)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	report := f.ApplyRules(recur.ExpandConfig{HorizonDays: 30})

	if len(f.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(f.Items))
	}
	if uid := f.Items[0].Properties["UID"]; uid != "a" {
		t.Errorf("earliest-declared item must win, got UID %q", uid)
	}
	if f.Items[1].Title != "Review" || f.Items[2].Title != "Lunch" {
		t.Errorf("unexpected order: %q, %q", f.Items[1].Title, f.Items[2].Title)
	}
	if report.Merged != 1 {
		t.Errorf("merged = %d, want 1", report.Merged)
	}
}

func TestFileRemoveDuplicates(t *testing.T) {
	doc := validOrg + validOrg + strings.Replace(validOrg, "Meeting", "Other", 1)
	f, err := ParseFile(doc)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if removed := f.RemoveDuplicates(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if len(f.Items) != 2 || f.Items[0].Title != "Meeting" || f.Items[1].Title != "Other" {
		t.Errorf("unexpected items after dedup: %+v", f.Items)
	}
}

func TestFileDates(t *testing.T) {
	f, err := ParseFile(khalWeekly)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	dates, report := f.Dates(recur.ExpandConfig{HorizonDays: 14})
	if len(report.Skipped) != 0 {
		t.Fatalf("unexpected skipped rules: %+v", report.Skipped)
	}
	// Each instance expands two weeks ahead: Jan 1..29 in weekly steps.
	got := dates["123"]
	if len(got) != 5 {
		t.Fatalf("expected 5 occurrences, got %d: %v", len(got), got)
	}
	if !got[0].Start.Equal(local(2023, 1, 1, 1, 0)) || !got[4].Start.Equal(local(2023, 1, 29, 1, 0)) {
		t.Errorf("unexpected occurrence range %v .. %v", got[0].Start, got[4].Start)
	}
}
