// Package index holds the annotated element index: which classes, fields
// and methods carry one of a configured set of annotations.
//
// An Index is immutable once built and safe for concurrent readers. Class
// names are internal (slash separated) names; annotation names are binary
// (dotted) names.
package index

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// AnnotationSet is a sorted, duplicate-free set of annotation names.
type AnnotationSet struct {
	names []string
}

// NewAnnotationSet returns the set of the given names.
func NewAnnotationSet(names ...string) AnnotationSet {
	out := slices.Clone(names)
	slices.Sort(out)

	return AnnotationSet{names: slices.Compact(out)}
}

// Names returns the names in sorted order.
func (s AnnotationSet) Names() []string { return slices.Clone(s.names) }

// Len returns the number of names.
func (s AnnotationSet) Len() int { return len(s.names) }

// Empty reports whether the set has no names.
func (s AnnotationSet) Empty() bool { return len(s.names) == 0 }

// Contains reports whether name is in the set.
func (s AnnotationSet) Contains(name string) bool {
	_, found := slices.BinarySearch(s.names, name)

	return found
}

// Union returns the union of s and other.
func (s AnnotationSet) Union(other AnnotationSet) AnnotationSet {
	if other.Empty() {
		return s
	}

	if s.Empty() {
		return other
	}

	return NewAnnotationSet(append(slices.Clone(s.names), other.names...)...)
}

// Equal reports whether both sets hold the same names.
func (s AnnotationSet) Equal(other AnnotationSet) bool {
	return slices.Equal(s.names, other.names)
}

func (s AnnotationSet) String() string {
	return "[" + strings.Join(s.names, " ") + "]"
}

// FieldKey identifies a field by owner class and name.
type FieldKey struct {
	Class string
	Field string
}

// MethodKey identifies a method by owner class, name and full descriptor.
type MethodKey struct {
	Class      string
	Method     string
	Descriptor string
}

// Source is an archive the index was built from, with its content fingerprint.
type Source struct {
	Path string
	XXH3 string
}

// ClassEntry, FieldEntry and MethodEntry are the sorted listings of an Index.
type (
	ClassEntry struct {
		Class       string
		Annotations AnnotationSet
	}

	FieldEntry struct {
		FieldKey

		Annotations AnnotationSet
	}

	MethodEntry struct {
		MethodKey

		Annotations AnnotationSet
	}
)

// Stats counts what an Index holds.
type Stats struct {
	Annotations int
	Sources     int
	Classes     int
	Fields      int
	Methods     int
}

// Index is the annotated element lookup table.
type Index struct {
	annotations AnnotationSet
	sources     []Source
	classes     map[string]AnnotationSet
	fields      map[FieldKey]AnnotationSet
	methods     map[MethodKey]AnnotationSet
}

// Empty returns an index with no entries.
func Empty() *Index {
	return &Index{
		classes: map[string]AnnotationSet{},
		fields:  map[FieldKey]AnnotationSet{},
		methods: map[MethodKey]AnnotationSet{},
	}
}

// ClassAnnotations returns the annotations of a class, interface or annotation type.
func (idx *Index) ClassAnnotations(class string) (AnnotationSet, bool) {
	set, ok := idx.classes[class]

	return set, ok
}

// FieldAnnotations returns the annotations of a field declared by owner.
func (idx *Index) FieldAnnotations(owner, field string) (AnnotationSet, bool) {
	set, ok := idx.fields[FieldKey{Class: owner, Field: field}]

	return set, ok
}

// MethodAnnotations returns the annotations of a method or constructor
// ("<init>") declared by owner. The descriptor must match exactly.
func (idx *Index) MethodAnnotations(owner, method, descriptor string) (AnnotationSet, bool) {
	set, ok := idx.methods[MethodKey{Class: owner, Method: method, Descriptor: descriptor}]

	return set, ok
}

// Annotations returns the annotation names the index was built against.
func (idx *Index) Annotations() AnnotationSet { return idx.annotations }

// Sources returns the archives the index was built from, sorted by path.
func (idx *Index) Sources() []Source { return slices.Clone(idx.sources) }

// Stats returns entry counts.
func (idx *Index) Stats() Stats {
	return Stats{
		Annotations: idx.annotations.Len(),
		Sources:     len(idx.sources),
		Classes:     len(idx.classes),
		Fields:      len(idx.fields),
		Methods:     len(idx.methods),
	}
}

// Classes lists class entries sorted by name.
func (idx *Index) Classes() []ClassEntry {
	out := make([]ClassEntry, 0, len(idx.classes))

	for _, class := range slices.Sorted(maps.Keys(idx.classes)) {
		out = append(out, ClassEntry{Class: class, Annotations: idx.classes[class]})
	}

	return out
}

// Fields lists field entries sorted by owner then name.
func (idx *Index) Fields() []FieldEntry {
	out := make([]FieldEntry, 0, len(idx.fields))

	for key, set := range idx.fields {
		out = append(out, FieldEntry{FieldKey: key, Annotations: set})
	}

	slices.SortFunc(out, func(a, b FieldEntry) int {
		return cmp.Or(cmp.Compare(a.Class, b.Class), cmp.Compare(a.Field, b.Field))
	})

	return out
}

// Methods lists method entries sorted by owner, name, then descriptor.
func (idx *Index) Methods() []MethodEntry {
	out := make([]MethodEntry, 0, len(idx.methods))

	for key, set := range idx.methods {
		out = append(out, MethodEntry{MethodKey: key, Annotations: set})
	}

	slices.SortFunc(out, func(a, b MethodEntry) int {
		return cmp.Or(
			cmp.Compare(a.Class, b.Class),
			cmp.Compare(a.Method, b.Method),
			cmp.Compare(a.Descriptor, b.Descriptor),
		)
	})

	return out
}

// Equal reports whether two indexes hold the same annotations, sources and entries.
func (idx *Index) Equal(other *Index) bool {
	if idx == nil || other == nil {
		return idx == other
	}

	return idx.annotations.Equal(other.annotations) &&
		slices.Equal(idx.sources, other.sources) &&
		maps.EqualFunc(idx.classes, other.classes, AnnotationSet.Equal) &&
		maps.EqualFunc(idx.fields, other.fields, AnnotationSet.Equal) &&
		maps.EqualFunc(idx.methods, other.methods, AnnotationSet.Equal)
}
