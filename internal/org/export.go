package org

import (
	"strings"

	"khalorg/internal/model"
)

// chunk is the verbatim text of one first-level heading and everything up
// to the next one.
type chunk struct {
	text string
	item model.Item
}

// splitChunks cuts text at first-level headings. Text before the first one
// is returned as the preamble.
func splitChunks(text string) (preamble string, chunks []string) {
	lines := sourceLines(text)
	levels := headingLevels(lines)

	var b strings.Builder
	started := false
	for i, line := range lines {
		if levels[i] == 1 {
			if started {
				chunks = append(chunks, b.String())
			} else {
				preamble = b.String()
			}
			b.Reset()
			started = true
		}
		b.WriteString(line)
	}
	if started {
		chunks = append(chunks, b.String())
	} else {
		preamble = b.String()
	}
	return preamble, chunks
}

// RemoveDuplicates drops every first-level item that is structurally equal
// to an earlier one. Whitespace is collapsed for the comparison only; kept
// items and any text before the first heading are emitted verbatim, in
// their original order.
func RemoveDuplicates(text string) (string, error) {
	preamble, raw := splitChunks(text)

	var kept []chunk
	for _, c := range raw {
		item, err := LoadItem(c)
		if err != nil {
			return "", err
		}
		norm := item.Normalized()
		duplicate := false
		for _, k := range kept {
			if k.item.Equal(norm) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, chunk{text: c, item: norm})
		}
	}

	var b strings.Builder
	b.WriteString(preamble)
	for _, k := range kept {
		b.WriteString(k.text)
	}
	return b.String(), nil
}
