package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/annoscan/pkg/classfile"
	"github.com/Sumatoshi-tech/annoscan/pkg/index"
)

// ErrClassTooLarge is returned for class entries above the configured size limit.
var ErrClassTooLarge = errors.New("class file exceeds size limit")

// ClassFacts lists the elements of c that directly carry one of targets.
func ClassFacts(c *classfile.Class, targets index.AnnotationSet) []index.Fact {
	var facts []index.Fact

	if kept := filterTargets(c.Annotations, targets); len(kept) > 0 {
		facts = append(facts, index.Fact{Kind: index.ElementClass, Class: c.Name, Annotations: kept})
	}

	for _, f := range c.Fields {
		if kept := filterTargets(f.Annotations, targets); len(kept) > 0 {
			facts = append(facts, index.Fact{Kind: index.ElementField, Class: c.Name, Member: f.Name, Annotations: kept})
		}
	}

	for _, m := range c.Methods {
		if kept := filterTargets(m.Annotations, targets); len(kept) > 0 {
			facts = append(facts, index.Fact{
				Kind:        index.ElementMethod,
				Class:       c.Name,
				Member:      m.Name,
				Descriptor:  m.Descriptor,
				Annotations: kept,
			})
		}
	}

	return facts
}

func filterTargets(names []string, targets index.AnnotationSet) []string {
	var kept []string

	for _, name := range names {
		if targets.Contains(name) {
			kept = append(kept, name)
		}
	}

	return kept
}

// OpenClass opens an entry, enforcing maxSize when positive.
func OpenClass(e Entry, maxSize int64) (io.ReadCloser, error) {
	if maxSize > 0 && e.Size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrClassTooLarge, e.Size, maxSize)
	}

	rc, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}

	return rc, nil
}

// ScanFacts parses every class in a and returns the facts for targets, in
// entry order, with the number of classes read. The first unreadable or
// malformed class fails the whole archive. ctx is checked between classes.
func ScanFacts(ctx context.Context, a *Archive, targets index.AnnotationSet, maxClassSize int64) ([]index.Fact, int, error) {
	var facts []index.Fact

	classes := 0

	for _, e := range a.entries {
		err := ctx.Err()
		if err != nil {
			return nil, classes, err
		}

		class, err := parseEntry(e, maxClassSize)
		if err != nil {
			return nil, classes, &ReadError{Path: a.path, Entry: e.Name, Err: err}
		}

		classes++

		facts = append(facts, ClassFacts(class, targets)...)
	}

	return facts, classes, nil
}

func parseEntry(e Entry, maxClassSize int64) (*classfile.Class, error) {
	rc, err := OpenClass(e, maxClassSize)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return classfile.Parse(rc)
}
