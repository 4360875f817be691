package index

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/annoscan/pkg/persist"
)

// Persisted document identity.
const (
	FormatName    = "annoscan-index"
	FormatVersion = 1
)

// Index load errors.
var (
	// ErrIndexLoad matches every *LoadError.
	ErrIndexLoad = errors.New("index load failed")
	// ErrIncompatibleFormat means the document is not an index of a supported version.
	ErrIncompatibleFormat = errors.New("incompatible index format")
	// ErrCorruptIndex means the document is an index but its content is invalid.
	ErrCorruptIndex = errors.New("corrupt index")
)

//go:embed schema.json
var schemaJSON []byte

var documentSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// LoadError reports why a persisted index could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load index: %v", e.Err)
	}

	return fmt.Sprintf("load index %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches ErrIndexLoad.
func (e *LoadError) Is(target error) bool { return target == ErrIndexLoad }

type document struct {
	Format      string         `json:"format"`
	Version     int            `json:"version"`
	Annotations []string       `json:"annotations"`
	Sources     []sourceRecord `json:"sources"`
	Classes     []classRecord  `json:"classes"`
	Fields      []fieldRecord  `json:"fields"`
	Methods     []methodRecord `json:"methods"`
}

type sourceRecord struct {
	Path string `json:"path"`
	XXH3 string `json:"xxh3"`
}

type classRecord struct {
	Class       string   `json:"class"`
	Annotations []string `json:"annotations"`
}

type fieldRecord struct {
	Class       string   `json:"class"`
	Field       string   `json:"field"`
	Annotations []string `json:"annotations"`
}

type methodRecord struct {
	Class       string   `json:"class"`
	Method      string   `json:"method"`
	Descriptor  string   `json:"descriptor"`
	Annotations []string `json:"annotations"`
}

func toDocument(idx *Index) *document {
	doc := &document{
		Format:      FormatName,
		Version:     FormatVersion,
		Annotations: idx.annotations.Names(),
		Sources:     make([]sourceRecord, 0, len(idx.sources)),
		Classes:     make([]classRecord, 0, len(idx.classes)),
		Fields:      make([]fieldRecord, 0, len(idx.fields)),
		Methods:     make([]methodRecord, 0, len(idx.methods)),
	}

	for _, src := range idx.sources {
		doc.Sources = append(doc.Sources, sourceRecord{Path: src.Path, XXH3: src.XXH3})
	}

	for _, e := range idx.Classes() {
		doc.Classes = append(doc.Classes, classRecord{Class: e.Class, Annotations: e.Annotations.Names()})
	}

	for _, e := range idx.Fields() {
		doc.Fields = append(doc.Fields, fieldRecord{Class: e.Class, Field: e.Field, Annotations: e.Annotations.Names()})
	}

	for _, e := range idx.Methods() {
		doc.Methods = append(doc.Methods, methodRecord{
			Class:       e.Class,
			Method:      e.Method,
			Descriptor:  e.Descriptor,
			Annotations: e.Annotations.Names(),
		})
	}

	return doc
}

// normalize replaces absent lists so the document validates like its JSON form.
func (doc *document) normalize() {
	if doc.Annotations == nil {
		doc.Annotations = []string{}
	}

	if doc.Sources == nil {
		doc.Sources = []sourceRecord{}
	}

	if doc.Classes == nil {
		doc.Classes = []classRecord{}
	}

	if doc.Fields == nil {
		doc.Fields = []fieldRecord{}
	}

	if doc.Methods == nil {
		doc.Methods = []methodRecord{}
	}
}

func (doc *document) validate() error {
	if doc.Format != FormatName {
		return fmt.Errorf("%w: format %q", ErrIncompatibleFormat, doc.Format)
	}

	if doc.Version != FormatVersion {
		return fmt.Errorf("%w: version %d, supported %d", ErrIncompatibleFormat, doc.Version, FormatVersion)
	}

	doc.normalize()

	schema, err := documentSchema()
	if err != nil {
		return fmt.Errorf("compile index schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}

		return fmt.Errorf("%w: %s", ErrCorruptIndex, strings.Join(msgs, "; "))
	}

	return nil
}

func fromDocument(doc *document) (*Index, error) {
	err := doc.validate()
	if err != nil {
		return nil, err
	}

	b := NewBuilder(doc.Annotations...)

	for _, src := range doc.Sources {
		b.AddSource(Source{Path: src.Path, XXH3: src.XXH3})
	}

	facts := make([]Fact, 0, len(doc.Classes)+len(doc.Fields)+len(doc.Methods))

	for _, r := range doc.Classes {
		if _, dup := b.classes[r.Class]; dup {
			return nil, fmt.Errorf("%w: duplicate class %s", ErrCorruptIndex, r.Class)
		}

		facts = append(facts, Fact{Kind: ElementClass, Class: r.Class, Annotations: r.Annotations})
		b.classes[r.Class] = AnnotationSet{}
	}

	for _, r := range doc.Fields {
		key := FieldKey{Class: r.Class, Field: r.Field}
		if _, dup := b.fields[key]; dup {
			return nil, fmt.Errorf("%w: duplicate field %s.%s", ErrCorruptIndex, r.Class, r.Field)
		}

		facts = append(facts, Fact{Kind: ElementField, Class: r.Class, Member: r.Field, Annotations: r.Annotations})
		b.fields[key] = AnnotationSet{}
	}

	for _, r := range doc.Methods {
		key := MethodKey{Class: r.Class, Method: r.Method, Descriptor: r.Descriptor}
		if _, dup := b.methods[key]; dup {
			return nil, fmt.Errorf("%w: duplicate method %s.%s%s", ErrCorruptIndex, r.Class, r.Method, r.Descriptor)
		}

		facts = append(facts, Fact{
			Kind:        ElementMethod,
			Class:       r.Class,
			Member:      r.Method,
			Descriptor:  r.Descriptor,
			Annotations: r.Annotations,
		})
		b.methods[key] = AnnotationSet{}
	}

	for _, f := range facts {
		for _, name := range f.Annotations {
			if !b.targets.Contains(name) {
				return nil, fmt.Errorf("%w: %s %s carries undeclared annotation %s", ErrCorruptIndex, f.Kind, f.Class, name)
			}
		}

		_, err = b.Add(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
		}
	}

	return b.Build(), nil
}

// Encode writes idx as a versioned document. Entries and annotation lists
// are sorted, so equal indexes encode to identical bytes.
func Encode(w io.Writer, codec persist.Codec, idx *Index) error {
	err := codec.Encode(w, toDocument(idx))
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	return nil
}

// Decode reads a document written by Encode. Any failure is a *LoadError
// and no partial index is returned.
func Decode(r io.Reader, codec persist.Codec) (*Index, error) {
	var doc document

	err := codec.Decode(r, &doc)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	idx, err := fromDocument(&doc)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	return idx, nil
}

// Save writes idx to path using the codec implied by the file extension.
func Save(path string, idx *Index) error {
	codec, err := persist.CodecFor(path)
	if err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	err = persist.SaveFile(path, codec, toDocument(idx))
	if err != nil {
		return fmt.Errorf("save index %s: %w", path, err)
	}

	return nil
}

// Load reads the index at path using the codec implied by the file extension.
func Load(path string) (*Index, error) {
	codec, err := persist.CodecFor(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var doc document

	err = persist.LoadFile(path, codec, &doc)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	idx, err := fromDocument(&doc)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	return idx, nil
}
