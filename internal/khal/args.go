package khal

import (
	"errors"
	"sort"
	"strings"

	appLog "khalorg/internal/log"
	"khalorg/internal/model"
	"khalorg/internal/recur"
)

const (
	DefaultDateFormat = "2006-01-02"
	DefaultTimeFormat = "15:04"
)

// ErrNoTimestamp is returned when an item has nothing to schedule.
var ErrNoTimestamp = errors.New("item has no timestamp")

// DefaultPropertyFlags maps Org properties to `khal new` options.
func DefaultPropertyFlags() map[string]string {
	return map[string]string{
		model.PropLocation:   "--location",
		model.PropCategories: "--categories",
		model.PropURL:        "--url",
		model.PropAlarms:     "--alarms",
		model.PropAttendees:  "--attendees",
	}
}

// ArgsOptions controls how an item is mapped to `khal new` arguments.
type ArgsOptions struct {
	DateFormat    string
	TimeFormat    string
	PropertyFlags map[string]string
	// Until, when set, is passed as --until for recurring items.
	Until string
}

type option struct {
	name  string
	value string
}

// Args is an ordered `khal new` argument list: options, then START,
// [END], TITLE and [:: DESCRIPTION].
type Args struct {
	options []option

	Start       string
	End         string
	Title       string
	Description string
}

// Set stores an option, keeping the position of an existing one. An
// empty value removes the option.
func (a *Args) Set(name, value string) {
	value = strings.TrimSpace(value)
	for i, opt := range a.options {
		if opt.name != name {
			continue
		}
		if value == "" {
			a.options = append(a.options[:i], a.options[i+1:]...)
		} else {
			a.options[i].value = value
		}
		return
	}
	if value != "" {
		a.options = append(a.options, option{name: name, value: value})
	}
}

// Get returns the value of an option.
func (a *Args) Get(name string) (string, bool) {
	for _, opt := range a.options {
		if opt.name == name {
			return opt.value, true
		}
	}
	return "", false
}

// List flattens the arguments. Empty positionals are left out.
func (a *Args) List() []string {
	out := make([]string, 0, 2*len(a.options)+5)
	for _, opt := range a.options {
		out = append(out, opt.name, opt.value)
	}
	for _, p := range []string{a.Start, a.End, a.Title} {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if d := strings.TrimSpace(a.Description); d != "" {
		out = append(out, "::", d)
	}
	return out
}

func (a *Args) String() string {
	return strings.Join(a.List(), " ")
}

// NewArgs maps item onto `khal new` arguments for calendar. Only the first
// timestamp is scheduled; its rule becomes --repeat when khal can express
// it.
func NewArgs(item model.Item, calendar string, opts ArgsOptions) (*Args, error) {
	if len(item.Timestamps) == 0 {
		return nil, ErrNoTimestamp
	}
	if opts.DateFormat == "" {
		opts.DateFormat = DefaultDateFormat
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = DefaultTimeFormat
	}
	if opts.PropertyFlags == nil {
		opts.PropertyFlags = DefaultPropertyFlags()
	}

	args := &Args{}
	args.Set("-a", calendar)

	props := make([]string, 0, len(opts.PropertyFlags))
	for prop := range opts.PropertyFlags {
		props = append(props, prop)
	}
	sort.Strings(props)
	for _, prop := range props {
		var value string
		if prop == model.PropAttendees {
			value = strings.Join(item.SplitProperty(prop), ",")
		} else {
			value, _ = item.Property(prop)
		}
		args.Set(opts.PropertyFlags[prop], value)
	}

	ts := item.Timestamps[0]
	if raw := recur.RuleOf(item); raw != "" {
		rule, err := recur.Normalize(raw, ts.Start)
		switch {
		case err != nil:
			appLog.Warn("recurrence rule not passed to khal", "title", item.Title, "rule", raw, "reason", err)
		case rule.Interval != 1:
			appLog.Warn("khal cannot repeat with an interval, rule dropped", "title", item.Title, "rule", raw)
		default:
			args.Set("--repeat", rule.Name())
			args.Set("--until", opts.Until)
		}
	}

	layout := opts.DateFormat
	if !ts.AllDay {
		layout += " " + opts.TimeFormat
	}
	args.Start = ts.Start.Format(layout)
	if ts.HasEnd() {
		args.End = ts.End.Format(layout)
	}
	args.Title = item.Title
	args.Description = item.Body

	return args, nil
}
