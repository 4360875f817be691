package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/annoscan/pkg/inspect"
	"github.com/Sumatoshi-tech/annoscan/pkg/scan"
)

// Row is one usage in serializable form.
type Row struct {
	Kind        string   `json:"kind"                 yaml:"kind"`
	SourceClass string   `json:"source_class"         yaml:"source_class"`
	TargetClass string   `json:"target_class"         yaml:"target_class"`
	Member      string   `json:"member,omitempty"     yaml:"member,omitempty"`
	Descriptor  string   `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Annotations []string `json:"annotations"          yaml:"annotations"`

	kind inspect.Kind
}

// Failure is a class that could not be inspected.
type Failure struct {
	Archive string `json:"archive" yaml:"archive"`
	Entry   string `json:"entry"   yaml:"entry"`
	Error   string `json:"error"   yaml:"error"`
}

// Summary totals a scan.
type Summary struct {
	Archives  int `json:"archives"  yaml:"archives"`
	Classes   int `json:"classes"   yaml:"classes"`
	Usages    int `json:"usages"    yaml:"usages"`
	Malformed int `json:"malformed" yaml:"malformed"`
}

// ScanReport is the serializable form of a scan.Result.
type ScanReport struct {
	Summary  Summary   `json:"summary"            yaml:"summary"`
	Usages   []Row     `json:"usages"             yaml:"usages"`
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Rows converts usages to rows sorted by source class, kind, then target.
func Rows(usages *inspect.UsageSet) []Row {
	rows := make([]Row, 0, usages.Len())

	for u := range usages.All() {
		r := u.Record()
		rows = append(rows, Row{
			Kind:        r.Kind.String(),
			SourceClass: r.SourceClass,
			TargetClass: r.TargetClass,
			Member:      r.Member,
			Descriptor:  r.Descriptor,
			Annotations: r.Annotations,
			kind:        r.Kind,
		})
	}

	slices.SortStableFunc(rows, func(a, b Row) int {
		return cmp.Or(
			cmp.Compare(a.SourceClass, b.SourceClass),
			cmp.Compare(a.kind, b.kind),
			cmp.Compare(a.TargetClass, b.TargetClass),
			cmp.Compare(a.Member, b.Member),
			cmp.Compare(a.Descriptor, b.Descriptor),
		)
	})

	return rows
}

// NewScanReport builds the serializable report for res.
func NewScanReport(res *scan.Result) ScanReport {
	rep := ScanReport{
		Summary: Summary{
			Archives:  res.Archives,
			Classes:   res.Classes,
			Usages:    res.Usages.Len(),
			Malformed: len(res.Failures),
		},
		Usages: Rows(res.Usages),
	}

	for _, f := range res.Failures {
		rep.Failures = append(rep.Failures, Failure{Archive: f.Archive, Entry: f.Entry, Error: f.Err.Error()})
	}

	return rep
}

// WriteScan renders res to w.
func WriteScan(w io.Writer, res *scan.Result, opts Options) error {
	rep := NewScanReport(res)

	if opts.format() != FormatText {
		return writeEncoded(w, opts.format(), rep)
	}

	if len(rep.Usages) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"KIND", "SOURCE", "TARGET", "MEMBER", "ANNOTATIONS"})

		for _, r := range rep.Usages {
			tbl.AppendRow(table.Row{
				opts.paint(kindColor(r.kind)).Sprint(r.Kind),
				r.SourceClass,
				r.TargetClass,
				r.Member + r.Descriptor,
				strings.Join(r.Annotations, ", "),
			})
		}

		_, err := fmt.Fprintln(w, tbl.Render())
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	for _, f := range rep.Failures {
		_, err := opts.paint(color.FgYellow).Fprintf(w, "malformed: %s!%s: %s\n", f.Archive, f.Entry, f.Error)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	s := rep.Summary

	_, err := fmt.Fprintf(w, "%s %s in %s %s (%s %s), %s malformed\n",
		humanize.Comma(int64(s.Usages)), plural(s.Usages, "usage"),
		humanize.Comma(int64(s.Classes)), plural(s.Classes, "class"),
		humanize.Comma(int64(s.Archives)), plural(s.Archives, "archive"),
		humanize.Comma(int64(s.Malformed)))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func kindColor(k inspect.Kind) color.Attribute {
	switch k {
	case inspect.KindExtends, inspect.KindImplements:
		return color.FgMagenta
	case inspect.KindField:
		return color.FgCyan
	case inspect.KindMethod:
		return color.FgBlue
	default:
		return color.FgWhite
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}

	if strings.HasSuffix(word, "s") {
		return word + "es"
	}

	return word + "s"
}
