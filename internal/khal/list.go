package khal

import (
	"fmt"

	appLog "khalorg/internal/log"
	"khalorg/internal/org"
	"khalorg/internal/recur"
)

// DefaultListFormat makes `khal list` print one Org heading per event.
// khal's longdateformat must be "%Y-%m-%d %a" for the stamps to parse.
const DefaultListFormat = `* {title}
:PROPERTIES:
:UID: {uid}
:RRULE: {repeat-pattern}
:LOCATION: {location}
:ORGANIZER: {organizer}
:URL: {url}
:CATEGORIES: {categories}
:STATUS: {status}
:CALENDAR: {calendar}
:END:
<{start-date-long} {start-time}>--<{end-date-long} {end-time}>
{description}
`

// ListToOrg turns `khal list` output into Org text: instances of one
// recurring event are folded back into a single repeating item, exact
// duplicates are dropped and every item is rendered with template.
func ListToOrg(listing, template string, cfg recur.ExpandConfig) (string, *recur.Report, error) {
	f, err := org.ParseFile(listing)
	if err != nil {
		return "", nil, fmt.Errorf("parse khal listing: %w", err)
	}

	report := f.ApplyRules(cfg)
	removed := f.RemoveDuplicates()
	appLog.Debug("khal listing converted",
		"items", len(f.Items),
		"merged", report.Merged,
		"duplicates", removed,
		"skipped_rules", len(report.Skipped),
	)
	return f.Format(template), report, nil
}
