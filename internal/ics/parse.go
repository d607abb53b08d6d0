package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "khalorg/internal/log"
	"khalorg/internal/model"
	"khalorg/internal/recur"
)

// ParseICS converts the VEVENTs of a VCALENDAR into items.
//
//   - DTSTART/DTEND become the single timestamp; a DATE-valued DTSTART
//     makes it all-day and the exclusive DTEND is turned into an inclusive
//     end day.
//   - RRULE is kept as the RRULE property and, when it reduces to an Org
//     repeater, also set on the timestamp.
//   - Events without UID and RECURRENCE-ID overrides are skipped.
func ParseICS(body []byte) ([]model.Item, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	calName := ""
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyXWRCalName) {
			calName = p.Value
		}
	}

	items := make([]model.Item, 0)
	for _, ve := range cal.Events() {
		item, perr := itemFromVEvent(ve)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "reason", perr)
			continue
		}
		if calName != "" {
			if _, ok := item.Property(model.PropCalendar); !ok {
				item.SetProperty(model.PropCalendar, calName)
			}
		}
		items = append(items, item)
	}

	appLog.Info("ics parse completed", "event_count", len(items))
	return items, nil
}

func itemFromVEvent(ve *ical.VEvent) (model.Item, error) {
	var item model.Item

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return item, errors.New("missing UID")
	}
	if ve.GetProperty("RECURRENCE-ID") != nil {
		return item, errors.New("RECURRENCE-ID override of " + uidProp.Value)
	}
	item.SetProperty(model.PropUID, uidProp.Value)

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		item.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		item.Body = p.Value
	}

	simple := map[ical.ComponentProperty]string{
		ical.ComponentPropertyLocation:   model.PropLocation,
		ical.ComponentPropertyUrl:        model.PropURL,
		ical.ComponentPropertyCategories: model.PropCategories,
		ical.ComponentPropertyStatus:     model.PropStatus,
	}
	for icsProp, orgProp := range simple {
		if p := ve.GetProperty(icsProp); p != nil {
			item.SetProperty(orgProp, p.Value)
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		item.SetProperty(model.PropOrganizer, trimMailto(p.Value))
	}

	var attendees []string
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		if a := trimMailto(p.Value); a != "" {
			attendees = append(attendees, a)
		}
	}
	item.SetProperty(model.PropAttendees, strings.Join(attendees, ", "))

	ts, err := timestampOf(ve)
	if err != nil {
		return item, err
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		item.SetProperty(model.PropRRule, p.Value)
		if rule, err := recur.Normalize(p.Value, ts.Start); err == nil {
			ts.Rule = rule.Repeater()
		}
	}
	if len(ve.GetProperties(ical.ComponentPropertyExdate)) > 0 {
		appLog.Debug("EXDATE ignored", "uid", uidProp.Value)
	}

	item.Timestamps = []model.Timestamp{ts}
	return item, nil
}

func timestampOf(ve *ical.VEvent) (model.Timestamp, error) {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return model.Timestamp{}, errors.New("missing DTSTART")
	}

	if isDateValue(dtStart) {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return model.Timestamp{}, err
		}
		ts := model.Timestamp{Start: localDay(start), AllDay: true}
		if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
			end, err := ve.GetAllDayEndAt()
			if err != nil {
				return model.Timestamp{}, err
			}
			// DTEND is exclusive; Org ranges name the last day.
			last := localDay(end).AddDate(0, 0, -1)
			if last.After(ts.Start) {
				ts.End = last
			}
		}
		return ts, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return model.Timestamp{}, err
	}
	ts := model.Timestamp{Start: start.In(time.Local)}
	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		end, err := ve.GetEndAt()
		if err != nil {
			return model.Timestamp{}, err
		}
		if end.After(start) {
			ts.End = end.In(time.Local)
		}
	}
	return ts, nil
}

// isDateValue detects all-day events: VALUE=DATE or a value without time.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func localDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func trimMailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	return v
}
