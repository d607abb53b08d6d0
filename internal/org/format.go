package org

import (
	"regexp"
	"strings"

	"khalorg/internal/model"
)

// DefaultFormat renders an item as a first-level heading with its
// property drawer, timestamps and body.
const DefaultFormat = `* {title}
{properties}
{timestamps}
{description}
`

var placeholderRe = regexp.MustCompile(`\{([a-z][a-z-]*)\}`)

// Format fills the {placeholder} tokens of template from item. A template
// line made only of placeholders that all render empty is dropped.
// Unknown placeholders are left in place.
func Format(item model.Item, template string) string {
	values := placeholders(item)

	var b strings.Builder
	for _, line := range strings.SplitAfter(template, "\n") {
		if line == "" {
			continue
		}
		if blankAfterFill(line, values) {
			continue
		}
		b.WriteString(placeholderRe.ReplaceAllStringFunc(line, func(tok string) string {
			if v, ok := values[tok[1:len(tok)-1]]; ok {
				return v
			}
			return tok
		}))
	}

	out := b.String()
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

func blankAfterFill(line string, values map[string]string) bool {
	matches := placeholderRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		v, ok := values[m[1]]
		if !ok || v != "" {
			return false
		}
	}
	return strings.TrimSpace(placeholderRe.ReplaceAllString(line, "")) == ""
}

func placeholders(item model.Item) map[string]string {
	values := map[string]string{
		"title":       item.Title,
		"timestamps":  "",
		"start":       "",
		"end":         "",
		"all-day":     "",
		"repeat":      "",
		"description": strings.TrimRight(item.Body, "\n"),
		"properties":  propertyDrawer(item.Properties),
	}

	props := map[string]string{
		"rrule":      model.PropRRule,
		"uid":        model.PropUID,
		"location":   model.PropLocation,
		"attendees":  model.PropAttendees,
		"organizer":  model.PropOrganizer,
		"url":        model.PropURL,
		"calendar":   model.PropCalendar,
		"categories": model.PropCategories,
		"status":     model.PropStatus,
	}
	for name, key := range props {
		values[name] = item.Properties[key]
	}

	if len(item.Timestamps) == 0 {
		return values
	}

	stamps := make([]string, 0, len(item.Timestamps))
	for _, ts := range item.Timestamps {
		stamps = append(stamps, ts.String())
	}
	values["timestamps"] = strings.Join(stamps, "\n")

	first := item.Timestamps[0]
	layout := model.DateLayout
	if !first.AllDay {
		layout += " " + model.TimeLayout
	}
	values["start"] = first.Start.Format(layout)
	if first.HasEnd() {
		values["end"] = first.End.Format(layout)
	}
	if first.AllDay {
		values["all-day"] = "true"
	} else {
		values["all-day"] = "false"
	}
	values["repeat"] = first.Rule
	return values
}

func propertyDrawer(props model.Properties) string {
	if len(props) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(":PROPERTIES:\n")
	for _, k := range props.Keys() {
		b.WriteString(":" + k + ": " + props[k] + "\n")
	}
	b.WriteString(":END:")
	return b.String()
}
