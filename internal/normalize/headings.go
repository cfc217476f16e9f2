package normalize

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// TextRun is a piece of text drawn with a single font size.
type TextRun struct {
	Text string
	Size float64
}

const (
	sizeTolerance      = 0.1
	headingStdFactor   = 0.6
	maxFontHeadingWord = 10
)

// MergeRuns joins consecutive runs whose font sizes differ by less than 0.1pt
// into lines.
func MergeRuns(runs []TextRun) []TextRun {
	var lines []TextRun
	for _, r := range runs {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if n := len(lines); n > 0 && math.Abs(lines[n-1].Size-r.Size) < sizeTolerance {
			lines[n-1].Text += " " + r.Text
			continue
		}
		lines = append(lines, r)
	}
	return lines
}

// FontHeadings returns merged lines drawn noticeably larger than the body text:
// size >= mean + 0.6*std over all sized runs, with at most 10 words.
func FontHeadings(runs []TextRun) []string {
	var sizes []float64
	for _, r := range runs {
		if r.Size > 0 && strings.TrimSpace(r.Text) != "" {
			sizes = append(sizes, r.Size)
		}
	}
	if len(sizes) == 0 {
		return nil
	}

	var mean float64
	for _, s := range sizes {
		mean += s
	}
	mean /= float64(len(sizes))
	var variance float64
	for _, s := range sizes {
		variance += (s - mean) * (s - mean)
	}
	std := math.Sqrt(variance / float64(len(sizes)))
	// A single font size means there is nothing to stand out from.
	if std == 0 {
		return nil
	}
	threshold := mean + headingStdFactor*std

	var out []string
	for _, line := range MergeRuns(runs) {
		txt := strings.TrimSpace(line.Text)
		if line.Size >= threshold && len(strings.Fields(txt)) <= maxFontHeadingWord {
			out = append(out, Normalize(txt))
		}
	}
	return out
}

// Anchor places a heading at a character offset in normalized text.
type Anchor struct {
	Offset int
	Text   string
}

// Locate finds each heading in normalized text, searching forward from the
// previous match so repeated headings anchor in document order. Headings that
// cannot be found are dropped.
func Locate(normalized string, headings []string) []Anchor {
	var anchors []Anchor
	byteFrom := 0
	for _, h := range headings {
		if h == "" {
			continue
		}
		idx := strings.Index(normalized[byteFrom:], h)
		if idx < 0 {
			continue
		}
		at := byteFrom + idx
		anchors = append(anchors, Anchor{
			Offset: utf8.RuneCountInString(normalized[:at]),
			Text:   h,
		})
		byteFrom = at + len(h)
	}
	return anchors
}

// HeadingAt returns the nearest heading at or before offset, or "".
// anchors must be sorted by Offset, as returned by Locate.
func HeadingAt(anchors []Anchor, offset int) string {
	i := sort.Search(len(anchors), func(i int) bool { return anchors[i].Offset > offset })
	if i == 0 {
		return ""
	}
	return anchors[i-1].Text
}
