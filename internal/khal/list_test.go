package khal

import (
	"testing"

	"khalorg/internal/org"
	"khalorg/internal/recur"
)

// listing is DefaultListFormat output for a weekly meeting (two instances)
// and an all-day event.
const listing = `
* Meeting
:PROPERTIES:
:UID: 123
:RRULE: FREQ=WEEKLY
:LOCATION: Office
:ORGANIZER:
:URL:
:CATEGORIES:
:STATUS:
:CALENDAR: work
:END:
<2023-01-01 Sun 01:00>--<2023-01-01 Sun 02:00>
Some text

* Holiday
:PROPERTIES:
:UID: h1
:RRULE:
:LOCATION:
:ORGANIZER:
:URL:
:CATEGORIES:
:STATUS:
:CALENDAR: work
:END:
<2023-01-02 Mon >--<2023-01-02 Mon >


* Meeting
:PROPERTIES:
:UID: 123
:RRULE: FREQ=WEEKLY
:LOCATION: Office
:ORGANIZER:
:URL:
:CATEGORIES:
:STATUS:
:CALENDAR: work
:END:
<2023-01-08 Sun 01:00>--<2023-01-08 Sun 02:00>
Some text
`

const listingOrg = `* Meeting
:PROPERTIES:
:CALENDAR: work
:LOCATION: Office
:RRULE: FREQ=WEEKLY
:UID: 123
:END:
<2023-01-01 Sun 01:00 +1w>--<2023-01-01 Sun 02:00 +1w>
Some text
* Holiday
:PROPERTIES:
:CALENDAR: work
:UID: h1
:END:
<2023-01-02 Mon>
`

func TestListToOrg(t *testing.T) {
	got, report, err := ListToOrg(listing, org.DefaultFormat, recur.ExpandConfig{})
	if err != nil {
		t.Fatalf("ListToOrg: %v", err)
	}
	if got != listingOrg {
		t.Errorf("ListToOrg() =\n%s\nwant\n%s", got, listingOrg)
	}
	if report.Merged != 1 || len(report.Skipped) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestListToOrgBadStamp(t *testing.T) {
	if _, _, err := ListToOrg("* X\n<2023-02-30 Thu 01:00>\n", org.DefaultFormat, recur.ExpandConfig{}); err == nil {
		t.Fatal("expected parse error")
	}
}
