package org

import (
	"regexp"
	"strings"
)

var (
	headingRe     = regexp.MustCompile(`^(\*+)[ \t]`)
	blockBeginRe  = regexp.MustCompile(`(?i)^[ \t]*#\+begin_`)
	blockEndRe    = regexp.MustCompile(`(?i)^[ \t]*#\+end_`)
	preambleRe    = regexp.MustCompile(`^[ \t]*(?:#\+[^ \t:]+:.*|#(?:[ \t].*)?)?[ \t]*\r?\n?$`)
	drawerBeginRe = regexp.MustCompile(`(?i)^[ \t]*:PROPERTIES:[ \t]*\r?\n?$`)
	drawerEndRe   = regexp.MustCompile(`(?i)^[ \t]*:END:[ \t]*\r?\n?$`)
)

// sourceLines splits text into lines that keep their newline.
func sourceLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// headingLevels reports the heading level of every line, 0 for lines that
// are not headings. Lines inside #+BEGIN_/#+END_ blocks are never headings.
func headingLevels(lines []string) []int {
	levels := make([]int, len(lines))
	inBlock := false
	for i, line := range lines {
		switch {
		case inBlock:
			inBlock = !blockEndRe.MatchString(line)
		case blockBeginRe.MatchString(line):
			inBlock = true
		default:
			if m := headingRe.FindStringSubmatch(line); m != nil {
				levels[i] = len(m[1])
			}
		}
	}
	return levels
}

// onlyPreamble is true when lines hold nothing but blank, keyword
// (#+TITLE:) or comment lines.
func onlyPreamble(lines []string) bool {
	for _, line := range lines {
		if !preambleRe.MatchString(line) {
			return false
		}
	}
	return true
}

// rawBody returns the verbatim text under the heading at lines[at], up to
// the next heading of any level, without a leading property drawer.
func rawBody(lines []string, levels []int, at int) string {
	end := len(lines)
	for j := at + 1; j < len(lines); j++ {
		if levels[j] > 0 {
			end = j
			break
		}
	}

	start := at + 1
	if start < end && drawerBeginRe.MatchString(lines[start]) {
		for j := start + 1; j < end; j++ {
			if drawerEndRe.MatchString(lines[j]) {
				start = j + 1
				break
			}
		}
	}
	return strings.Join(lines[start:end], "")
}
