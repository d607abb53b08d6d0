package org

import (
	"fmt"
	"io"
	"strings"

	gorg "github.com/niklasfasching/go-org/org"

	appLog "khalorg/internal/log"
	"khalorg/internal/model"
)

// ErrNoHeading is returned when a document contains no heading at all.
var ErrNoHeading = fmt.Errorf("%w: document has no heading", ErrParse)

func parseDocument(text string) (*gorg.Document, error) {
	doc := gorg.New().Silent().Parse(strings.NewReader(text), "")
	if doc.Error != nil {
		return nil, &ParseError{Input: firstLine(text), Reason: doc.Error.Error()}
	}
	return doc, nil
}

// LoadItem builds an Item from the first heading of an Org document.
//
// Timestamps are only taken from the first child of that heading, and
// only when it is a first-level heading preceded by nothing but blank,
// keyword or comment lines. Otherwise the item keeps its title, properties
// and body but gets no timestamps. The body is the source text under the
// heading, minus the property drawer and timestamps.
func LoadItem(text string) (model.Item, error) {
	doc, err := parseDocument(text)
	if err != nil {
		return model.Item{}, err
	}

	var h gorg.Headline
	found := false
	for _, node := range doc.Nodes {
		if h, found = node.(gorg.Headline); found {
			break
		}
	}
	lines := sourceLines(text)
	levels := headingLevels(lines)
	at := -1
	for i, lvl := range levels {
		if lvl > 0 {
			at = i
			break
		}
	}
	if !found || at < 0 {
		return model.Item{}, ErrNoHeading
	}

	attach := h.Lvl == 1 && onlyPreamble(lines[:at])
	if !attach {
		appLog.Debug("heading does not open the document at first level, ignoring its timestamps",
			"title", headlineTitle(h), "line", at+1, "level", h.Lvl)
	}
	return itemFromHeadline(h, attach, rawBody(lines, levels, at))
}

// ReadItem is LoadItem over a reader.
func ReadItem(r io.Reader) (model.Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Item{}, err
	}
	return LoadItem(string(data))
}

func itemFromHeadline(h gorg.Headline, attach bool, body string) (model.Item, error) {
	item := model.Item{
		Title:      headlineTitle(h),
		Properties: model.Properties{},
	}

	if h.Properties != nil {
		for _, kv := range h.Properties.Properties {
			if len(kv) < 2 {
				continue
			}
			item.SetProperty(kv[0], kv[1])
		}
	}

	if attach && len(h.Children) > 0 {
		if _, ok := h.Children[0].(gorg.Headline); !ok {
			ts, err := ParseTimestamps(writeOrg(h.Children[0]))
			if err != nil {
				return model.Item{}, err
			}
			model.SortTimestamps(ts)
			item.Timestamps = ts
		}
	}

	item.Body = RemoveTimestamps(body)
	return item, nil
}

func headlineTitle(h gorg.Headline) string {
	return strings.TrimSpace(writeOrg(h.Title...))
}

func writeOrg(nodes ...gorg.Node) string {
	return gorg.NewOrgWriter().WriteNodesAsString(nodes...)
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
