package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
)

// IndexDump is the serializable listing of an index.
type IndexDump struct {
	Stats       IndexStats   `json:"stats"       yaml:"stats"`
	Annotations []string     `json:"annotations" yaml:"annotations"`
	Sources     []SourceRow  `json:"sources"     yaml:"sources"`
	Elements    []ElementRow `json:"elements"    yaml:"elements"`
}

// IndexStats mirrors index.Stats.
type IndexStats struct {
	Annotations int `json:"annotations" yaml:"annotations"`
	Sources     int `json:"sources"     yaml:"sources"`
	Classes     int `json:"classes"     yaml:"classes"`
	Fields      int `json:"fields"      yaml:"fields"`
	Methods     int `json:"methods"     yaml:"methods"`
}

// SourceRow is one indexed archive.
type SourceRow struct {
	Path string `json:"path" yaml:"path"`
	XXH3 string `json:"xxh3" yaml:"xxh3"`
}

// ElementRow is one annotated class, field or method.
type ElementRow struct {
	Kind        string   `json:"kind"                 yaml:"kind"`
	Class       string   `json:"class"                yaml:"class"`
	Member      string   `json:"member,omitempty"     yaml:"member,omitempty"`
	Descriptor  string   `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Annotations []string `json:"annotations"          yaml:"annotations"`
}

// NewIndexDump lists idx: classes, then fields, then methods, each sorted by key.
func NewIndexDump(idx *index.Index) IndexDump {
	st := idx.Stats()

	dump := IndexDump{
		Stats: IndexStats{
			Annotations: st.Annotations,
			Sources:     st.Sources,
			Classes:     st.Classes,
			Fields:      st.Fields,
			Methods:     st.Methods,
		},
		Annotations: idx.Annotations().Names(),
		Sources:     []SourceRow{},
		Elements:    []ElementRow{},
	}

	for _, s := range idx.Sources() {
		dump.Sources = append(dump.Sources, SourceRow{Path: s.Path, XXH3: s.XXH3})
	}

	for _, c := range idx.Classes() {
		dump.Elements = append(dump.Elements, ElementRow{
			Kind:        index.ElementClass.String(),
			Class:       c.Class,
			Annotations: c.Annotations.Names(),
		})
	}

	for _, f := range idx.Fields() {
		dump.Elements = append(dump.Elements, ElementRow{
			Kind:        index.ElementField.String(),
			Class:       f.Class,
			Member:      f.Field,
			Annotations: f.Annotations.Names(),
		})
	}

	for _, m := range idx.Methods() {
		dump.Elements = append(dump.Elements, ElementRow{
			Kind:        index.ElementMethod.String(),
			Class:       m.Class,
			Member:      m.Method,
			Descriptor:  m.Descriptor,
			Annotations: m.Annotations.Names(),
		})
	}

	return dump
}

// WriteIndex renders the listing of idx to w.
func WriteIndex(w io.Writer, idx *index.Index, opts Options) error {
	dump := NewIndexDump(idx)

	if opts.format() != FormatText {
		return writeEncoded(w, opts.format(), dump)
	}

	st := dump.Stats

	_, err := fmt.Fprintf(w, "annotations: %s\nsources: %s, classes: %s, fields: %s, methods: %s\n",
		strings.Join(dump.Annotations, ", "),
		humanize.Comma(int64(st.Sources)),
		humanize.Comma(int64(st.Classes)),
		humanize.Comma(int64(st.Fields)),
		humanize.Comma(int64(st.Methods)))
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	if len(dump.Sources) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"SOURCE", "XXH3"})

		for _, s := range dump.Sources {
			tbl.AppendRow(table.Row{s.Path, s.XXH3})
		}

		_, err = fmt.Fprintf(w, "\n%s\n", tbl.Render())
		if err != nil {
			return fmt.Errorf("write index: %w", err)
		}
	}

	if len(dump.Elements) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"KIND", "CLASS", "MEMBER", "ANNOTATIONS"})

		for _, e := range dump.Elements {
			tbl.AppendRow(table.Row{e.Kind, e.Class, e.Member + e.Descriptor, strings.Join(e.Annotations, ", ")})
		}

		_, err = fmt.Fprintf(w, "\n%s\n", tbl.Render())
		if err != nil {
			return fmt.Errorf("write index: %w", err)
		}
	}

	return nil
}
