package index

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidFact is returned by Builder.Add for facts with missing keys.
var ErrInvalidFact = errors.New("invalid fact")

// ElementKind tells which mapping a Fact belongs to.
type ElementKind int

// Element kinds.
const (
	ElementClass ElementKind = iota + 1
	ElementField
	ElementMethod
)

func (k ElementKind) String() string {
	switch k {
	case ElementClass:
		return "class"
	case ElementField:
		return "field"
	case ElementMethod:
		return "method"
	default:
		return fmt.Sprintf("ElementKind(%d)", int(k))
	}
}

// Fact states that an element directly carries the given annotations.
// Member is empty for classes; Descriptor is set for methods only.
type Fact struct {
	Kind        ElementKind
	Class       string
	Member      string
	Descriptor  string
	Annotations []string
}

func (f Fact) validate() error {
	switch {
	case f.Class == "":
		return fmt.Errorf("%w: %s without owner class", ErrInvalidFact, f.Kind)
	case f.Kind == ElementClass:
		return nil
	case f.Kind == ElementField && f.Member != "":
		return nil
	case f.Kind == ElementMethod && f.Member != "" && f.Descriptor != "":
		return nil
	case f.Kind != ElementField && f.Kind != ElementMethod:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidFact, f.Kind)
	default:
		return fmt.Errorf("%w: %s of %s without name or descriptor", ErrInvalidFact, f.Kind, f.Class)
	}
}

// Builder accumulates facts into an Index. Every operation is a union:
// nothing recorded is ever overwritten or dropped. A Builder has a single
// writer; Build hands its contents to an immutable Index.
type Builder struct {
	targets AnnotationSet
	sources map[string]string
	classes map[string]AnnotationSet
	fields  map[FieldKey]AnnotationSet
	methods map[MethodKey]AnnotationSet
}

// NewBuilder starts an empty index for the given target annotation names.
func NewBuilder(targets ...string) *Builder {
	b := &Builder{}
	b.reset()
	b.targets = NewAnnotationSet(targets...)

	return b
}

func (b *Builder) reset() {
	b.targets = AnnotationSet{}
	b.sources = map[string]string{}
	b.classes = map[string]AnnotationSet{}
	b.fields = map[FieldKey]AnnotationSet{}
	b.methods = map[MethodKey]AnnotationSet{}
}

// Targets returns the annotation names being indexed.
func (b *Builder) Targets() AnnotationSet { return b.targets }

// Add records a fact, keeping only target annotations. It reports whether
// anything was recorded; a fact without target annotations is a no-op.
func (b *Builder) Add(f Fact) (bool, error) {
	err := f.validate()
	if err != nil {
		return false, err
	}

	var kept []string

	for _, name := range f.Annotations {
		if b.targets.Contains(name) {
			kept = append(kept, name)
		}
	}

	if len(kept) == 0 {
		return false, nil
	}

	set := NewAnnotationSet(kept...)

	switch f.Kind {
	case ElementClass:
		b.classes[f.Class] = b.classes[f.Class].Union(set)
	case ElementField:
		key := FieldKey{Class: f.Class, Field: f.Member}
		b.fields[key] = b.fields[key].Union(set)
	case ElementMethod:
		key := MethodKey{Class: f.Class, Method: f.Member, Descriptor: f.Descriptor}
		b.methods[key] = b.methods[key].Union(set)
	}

	return true, nil
}

// AddSource records an archive the index is built from. A later call for
// the same path replaces its fingerprint.
func (b *Builder) AddSource(src Source) {
	b.sources[src.Path] = src.XXH3
}

// Merge unions another index into the builder: its target names, sources
// and every entry.
func (b *Builder) Merge(idx *Index) {
	b.targets = b.targets.Union(idx.annotations)

	for _, src := range idx.sources {
		b.AddSource(src)
	}

	for class, set := range idx.classes {
		b.classes[class] = b.classes[class].Union(set)
	}

	for key, set := range idx.fields {
		b.fields[key] = b.fields[key].Union(set)
	}

	for key, set := range idx.methods {
		b.methods[key] = b.methods[key].Union(set)
	}
}

// Build returns the accumulated Index and leaves the builder empty.
func (b *Builder) Build() *Index {
	sources := make([]Source, 0, len(b.sources))
	for path, sum := range b.sources {
		sources = append(sources, Source{Path: path, XXH3: sum})
	}

	slices.SortFunc(sources, func(x, y Source) int { return strings.Compare(x.Path, y.Path) })

	idx := &Index{
		annotations: b.targets,
		sources:     sources,
		classes:     b.classes,
		fields:      b.fields,
		methods:     b.methods,
	}

	b.reset()

	return idx
}
