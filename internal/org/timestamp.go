package org

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"khalorg/internal/model"
)

// ErrParse is matched by every parse failure of this package.
var ErrParse = errors.New("org parse error")

// ParseError describes input that matches none of the accepted grammars.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("org: cannot parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// A single active stamp: date, optional weekday name, optional time or
// time range, optional repeater. Whitespace before ">" is tolerated since
// khal leaves the time field empty for all-day events.
const stampPattern = `<(\d{4}-\d{2}-\d{2})` +
	`(?:[ \t]+[^\s\d<>+.\-][^\s<>]*)?` +
	`(?:[ \t]+(\d{1,2}:\d{2})(?:-(\d{1,2}:\d{2}))?)?` +
	`(?:[ \t]+((?:\+\+|\.\+|\+)\d+[hdwmy]))?` +
	`[ \t]*>`

var (
	stampRe     = regexp.MustCompile(stampPattern)
	timestampRe = regexp.MustCompile(stampPattern + `(?:--` + stampPattern + `)?`)
	exactRe     = regexp.MustCompile(`^` + timestampRe.String() + `$`)
	planningRe  = regexp.MustCompile(`^[ \t]*(?:(?:SCHEDULED|DEADLINE|CLOSED):[ \t]*)*\r?\n?$`)
)

type stamp struct {
	date    time.Time
	hasTime bool
	from    time.Duration
	to      time.Duration
	hasTo   bool
	rule    string
}

// ParseTimestamp parses one Org timestamp: a plain date, a date with time,
// a time range inside one stamp, a "<a>--<b>" range, each optionally with
// a repeater such as "+1w".
func ParseTimestamp(s string) (model.Timestamp, error) {
	raw := strings.TrimSpace(s)
	if !exactRe.MatchString(raw) {
		return model.Timestamp{}, &ParseError{Input: s, Reason: "not an active org timestamp"}
	}

	matches := stampRe.FindAllStringSubmatch(raw, -1)
	stamps := make([]stamp, 0, len(matches))
	for _, m := range matches {
		st, err := parseStamp(m)
		if err != nil {
			return model.Timestamp{}, &ParseError{Input: s, Reason: err.Error()}
		}
		stamps = append(stamps, st)
	}

	ts, err := combine(stamps)
	if err != nil {
		return model.Timestamp{}, &ParseError{Input: s, Reason: err.Error()}
	}
	return ts, nil
}

func parseStamp(m []string) (stamp, error) {
	var st stamp

	date, err := time.ParseInLocation("2006-01-02", m[1], time.Local)
	if err != nil {
		return st, fmt.Errorf("invalid date %q", m[1])
	}
	st.date = date
	st.rule = m[4]

	if m[2] != "" {
		st.hasTime = true
		if st.from, err = parseClock(m[2]); err != nil {
			return st, err
		}
	}
	if m[3] != "" {
		st.hasTo = true
		if st.to, err = parseClock(m[3]); err != nil {
			return st, err
		}
	}
	return st, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// at returns the wall-clock time d after midnight of day. AddDate/Date
// keep the result correct across DST changes.
func at(day time.Time, d time.Duration) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		int(d/time.Hour), int(d%time.Hour/time.Minute), 0, 0, day.Location())
}

func combine(stamps []stamp) (model.Timestamp, error) {
	first := stamps[0]
	ts := model.Timestamp{Rule: first.rule, AllDay: !first.hasTime}

	if len(stamps) == 1 {
		ts.Start = at(first.date, first.from)
		if first.hasTo {
			ts.End = at(first.date, first.to)
			if ts.End.Before(ts.Start) {
				ts.End = ts.End.AddDate(0, 0, 1)
			}
		}
		return ts, nil
	}

	second := stamps[1]
	if first.hasTo || second.hasTo {
		return ts, errors.New("time ranges cannot be combined with a date range")
	}
	if first.hasTime != second.hasTime {
		return ts, errors.New("range mixes all-day and timed ends")
	}
	if ts.Rule == "" {
		ts.Rule = second.rule
	}

	ts.Start = at(first.date, first.from)
	ts.End = at(second.date, second.from)
	if ts.End.Before(ts.Start) {
		return ts, errors.New("range ends before it starts")
	}
	if ts.AllDay && ts.End.Equal(ts.Start) {
		ts.End = time.Time{}
	}
	return ts, nil
}

// FindTimestamps returns every timestamp substring of text in order.
func FindTimestamps(text string) []string {
	return timestampRe.FindAllString(text, -1)
}

// ParseTimestamps parses every timestamp found in text.
func ParseTimestamps(text string) ([]model.Timestamp, error) {
	var out []model.Timestamp
	for _, raw := range FindTimestamps(text) {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}

// RemoveTimestamps deletes every timestamp substring from text. A line
// left blank by the removal, or holding only planning keywords such as
// SCHEDULED:, is dropped together with its newline; all other text is
// kept verbatim.
func RemoveTimestamps(text string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		stripped := timestampRe.ReplaceAllString(line, "")
		if stripped != line && planningRe.MatchString(stripped) {
			continue
		}
		b.WriteString(stripped)
	}
	return b.String()
}
