package recur

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"khalorg/internal/model"
)

// ErrUnsupportedRule marks rule forms that are not expanded. Callers
// degrade the item to its literal timestamps.
var ErrUnsupportedRule = errors.New("unsupported recurrence rule")

var repeaterRe = regexp.MustCompile(`^(\+\+|\.\+|\+)(\d+)([hdwmy])$`)

// Rule is a recurrence rule reduced to frequency and interval, the forms
// that an Org repeater can express.
type Rule struct {
	Freq     rrule.Frequency
	Interval int
}

var freqUnits = map[rrule.Frequency]string{
	rrule.DAILY:   "d",
	rrule.WEEKLY:  "w",
	rrule.MONTHLY: "m",
	rrule.YEARLY:  "y",
}

var freqNames = map[rrule.Frequency]string{
	rrule.DAILY:   "daily",
	rrule.WEEKLY:  "weekly",
	rrule.MONTHLY: "monthly",
	rrule.YEARLY:  "yearly",
}

// Repeater renders the rule as an Org repeater, e.g. "+2w".
func (r Rule) Repeater() string {
	return "+" + strconv.Itoa(r.Interval) + freqUnits[r.Freq]
}

// RRule renders the rule as an RFC 5545 RRULE value.
func (r Rule) RRule() string {
	return fmt.Sprintf("FREQ=%s;INTERVAL=%d", strings.ToUpper(freqNames[r.Freq]), r.Interval)
}

// Name is the lower-case frequency name ("weekly").
func (r Rule) Name() string {
	return freqNames[r.Freq]
}

// RuleOf returns the raw rule text of an item: its RRULE property, or the
// repeater of its first timestamp.
func RuleOf(item model.Item) string {
	if raw, ok := item.Property(model.PropRRule); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	if len(item.Timestamps) > 0 {
		return item.Timestamps[0].Rule
	}
	return ""
}

// Normalize reduces raw (an Org repeater or an RRULE value) to a Rule.
// start is the first occurrence; BYDAY, BYMONTHDAY and BYMONTH are only
// accepted when they restate it.
func Normalize(raw string, start time.Time) (Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rule{}, fmt.Errorf("%w: empty rule", ErrUnsupportedRule)
	}

	if m := repeaterRe.FindStringSubmatch(raw); m != nil {
		return normalizeRepeater(raw, m)
	}

	body := raw
	if len(body) >= 6 && strings.EqualFold(body[:6], "RRULE:") {
		body = body[6:]
	}
	opt, err := rrule.StrToROption(strings.ToUpper(body))
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %v", ErrUnsupportedRule, raw, err)
	}
	if reason := unsupported(opt, start); reason != "" {
		return Rule{}, fmt.Errorf("%w: %q: %s", ErrUnsupportedRule, raw, reason)
	}

	interval := opt.Interval
	if interval <= 0 {
		interval = 1
	}
	return Rule{Freq: opt.Freq, Interval: interval}, nil
}

func normalizeRepeater(raw string, m []string) (Rule, error) {
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return Rule{}, fmt.Errorf("%w: %q: interval must be positive", ErrUnsupportedRule, raw)
	}
	for freq, unit := range freqUnits {
		if unit == m[3] {
			return Rule{Freq: freq, Interval: n}, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %q: sub-daily repeaters are not expanded", ErrUnsupportedRule, raw)
}

func unsupported(opt *rrule.ROption, start time.Time) string {
	if _, ok := freqUnits[opt.Freq]; !ok {
		return "frequency must be DAILY, WEEKLY, MONTHLY or YEARLY"
	}
	switch {
	case opt.Count != 0:
		return "COUNT is not supported"
	case !opt.Until.IsZero():
		return "UNTIL is not supported"
	case len(opt.Bysetpos) > 0, len(opt.Byyearday) > 0, len(opt.Byweekno) > 0,
		len(opt.Byhour) > 0, len(opt.Byminute) > 0, len(opt.Bysecond) > 0,
		len(opt.Byeaster) > 0:
		return "BY* parts other than BYDAY, BYMONTHDAY and BYMONTH are not supported"
	}

	if len(opt.Byweekday) > 1 {
		return "BYDAY with more than one day is not supported"
	}
	if len(opt.Byweekday) == 1 && opt.Freq == rrule.DAILY {
		return "BYDAY on a daily rule is not supported"
	}
	if len(opt.Byweekday) == 1 {
		wd := opt.Byweekday[0]
		// Ordinals only select within a month or year; rrule ignores them
		// for weekly rules.
		if wd.N() != 0 && (opt.Freq == rrule.MONTHLY || opt.Freq == rrule.YEARLY) {
			return "ordinal BYDAY is not supported"
		}
		if wd.Day() != mondayIndex(start.Weekday()) {
			return "BYDAY differs from the start weekday"
		}
	}
	if len(opt.Bymonthday) > 1 || (len(opt.Bymonthday) == 1 && opt.Bymonthday[0] != start.Day()) {
		return "BYMONTHDAY differs from the start day"
	}
	if len(opt.Bymonth) > 1 || (len(opt.Bymonth) == 1 && opt.Bymonth[0] != int(start.Month())) {
		return "BYMONTH differs from the start month"
	}
	return ""
}

// mondayIndex converts time.Weekday (Sunday=0) to rrule's Monday=0.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
