package layout

import (
	"strings"

	"golang.org/x/image/font"
)

// Measurer reports the rendered pixel width of a string
type Measurer interface {
	MeasureString(s string) int
}

// FaceMeasurer measures strings with a font face
type FaceMeasurer struct {
	Face font.Face
}

// MeasureString returns the advance width of s rounded up to whole pixels
func (fm FaceMeasurer) MeasureString(s string) int {
	return font.MeasureString(fm.Face, s).Ceil()
}

// Wrap greedily fills lines with whitespace-delimited words.
// A word is appended to the current line only while the result stays strictly
// narrower than maxWidth. Words are never split, so a single long word may exceed
// maxWidth on its own line. Empty input yields one empty line.
func Wrap(text string, maxWidth int, m Measurer) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	lines := make([]string, 0, 4)
	current := words[0]

	for _, word := range words[1:] {
		candidate := current + " " + word
		if m.MeasureString(candidate) < maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}

	return append(lines, current)
}

// Truncate keeps at most max lines
func Truncate(lines []string, max int) []string {
	if max < 0 {
		max = 0
	}
	if len(lines) <= max {
		return lines
	}
	return lines[:max]
}
