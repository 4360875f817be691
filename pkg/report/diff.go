package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
)

// CanonicalLines dumps idx one fact per line in a stable order.
func CanonicalLines(idx *index.Index) []string {
	var lines []string

	for _, name := range idx.Annotations().Names() {
		lines = append(lines, "annotation "+name)
	}

	for _, s := range idx.Sources() {
		lines = append(lines, fmt.Sprintf("source %s %s", s.Path, s.XXH3))
	}

	for _, c := range idx.Classes() {
		lines = append(lines, fmt.Sprintf("class %s %s", c.Class, c.Annotations))
	}

	for _, f := range idx.Fields() {
		lines = append(lines, fmt.Sprintf("field %s.%s %s", f.Class, f.Field, f.Annotations))
	}

	for _, m := range idx.Methods() {
		lines = append(lines, fmt.Sprintf("method %s.%s%s %s", m.Class, m.Method, m.Descriptor, m.Annotations))
	}

	return lines
}

// DiffLine is one changed line between two indexes.
type DiffLine struct {
	Added bool
	Text  string
}

func (l DiffLine) String() string {
	if l.Added {
		return "+ " + l.Text
	}

	return "- " + l.Text
}

// DiffIndexes returns the lines removed from before and added in after, in dump order.
func DiffIndexes(before, after *index.Index) []DiffLine {
	a := joinLines(CanonicalLines(before))
	b := joinLines(CanonicalLines(after))

	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	var out []DiffLine

	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				continue
			}

			out = append(out, DiffLine{Added: d.Type == diffmatchpatch.DiffInsert, Text: line})
		}
	}

	return out
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}

// WriteDiff renders lines, green for additions and red for removals.
func WriteDiff(w io.Writer, lines []DiffLine, opts Options) error {
	added := opts.paint(color.FgGreen)
	removed := opts.paint(color.FgRed)

	for _, l := range lines {
		c := removed
		if l.Added {
			c = added
		}

		_, err := c.Fprintln(w, l.String())
		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	return nil
}
