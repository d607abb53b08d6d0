package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "khalorg/internal/log"
	"khalorg/internal/model"
	"khalorg/internal/recur"
)

const productID = "-//khalorg//khalorg//EN"

// now stamps DTSTAMP; tests pin it.
var now = time.Now

// EncodeItems renders items as a VCALENDAR named calendar, one VEVENT per
// item built from its first timestamp. Items without timestamps are left
// out.
func EncodeItems(items []model.Item, calendar string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if calendar != "" {
		cal.SetXWRCalName(calendar)
	}

	stamp := now().UTC()
	for _, item := range items {
		if len(item.Timestamps) == 0 {
			appLog.Warn("item without timestamp left out of ics", "title", item.Title)
			continue
		}
		addEvent(cal, item, stamp)
	}
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, item model.Item, stamp time.Time) {
	ev := cal.AddEvent(uidOf(item))
	ev.SetDtStampTime(stamp)
	ev.SetSummary(item.Title)

	ts := item.Timestamps[0]
	if ts.AllDay {
		ev.SetAllDayStartAt(ts.Start)
		last := ts.Start
		if ts.HasEnd() {
			last = ts.End
		}
		// DTEND is exclusive.
		ev.SetAllDayEndAt(last.AddDate(0, 0, 1))
	} else {
		ev.SetStartAt(ts.Start)
		if ts.HasEnd() {
			ev.SetEndAt(ts.End)
		}
	}
	if len(item.Timestamps) > 1 {
		appLog.Debug("only the first timestamp is exported", "title", item.Title, "timestamps", len(item.Timestamps))
	}

	if rrule := rruleOf(item, ts); rrule != "" {
		ev.AddRrule(rrule)
	}

	if v, ok := item.Property(model.PropLocation); ok {
		ev.SetLocation(v)
	}
	if v, ok := item.Property(model.PropURL); ok {
		ev.SetURL(v)
	}
	if v, ok := item.Property(model.PropCategories); ok {
		ev.AddProperty(ical.ComponentPropertyCategories, v)
	}
	if v, ok := item.Property(model.PropStatus); ok {
		ev.AddProperty(ical.ComponentPropertyStatus, strings.ToUpper(v))
	}
	if v, ok := item.Property(model.PropOrganizer); ok {
		ev.SetOrganizer("mailto:" + trimMailto(v))
	}
	for _, a := range item.SplitProperty(model.PropAttendees) {
		ev.AddAttendee(trimMailto(a))
	}
	if body := strings.TrimSpace(item.Body); body != "" {
		ev.SetDescription(body)
	}
}

// uidOf returns the UID property, or a stable UID derived from title and
// timestamps.
func uidOf(item model.Item) string {
	if uid, ok := item.Property(model.PropUID); ok {
		return uid
	}
	sum := sha256.Sum256([]byte(item.Key()))
	return hex.EncodeToString(sum[:12]) + "@khalorg"
}

// rruleOf prefers a verbatim RRULE property and otherwise converts the
// timestamp repeater.
func rruleOf(item model.Item, ts model.Timestamp) string {
	if raw, ok := item.Property(model.PropRRule); ok {
		raw = strings.TrimSpace(raw)
		if len(raw) >= 6 && strings.EqualFold(raw[:6], "RRULE:") {
			raw = raw[6:]
		}
		return strings.ToUpper(raw)
	}
	if ts.Rule == "" {
		return ""
	}
	rule, err := recur.Normalize(ts.Rule, ts.Start)
	if err != nil {
		appLog.Warn("repeater not exported", "title", item.Title, "rule", ts.Rule, "reason", err)
		return ""
	}
	return rule.RRule()
}
