package classfile

import (
	"bytes"
	"errors"
	"slices"
)

// Attribute names carrying annotations on classes, fields and methods.
const (
	AttrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
)

// maxElementDepth bounds nesting of annotation element values.
const maxElementDepth = 64

func isAnnotationAttribute(name string) bool {
	return name == AttrRuntimeVisibleAnnotations || name == AttrRuntimeInvisibleAnnotations
}

// parseAnnotations returns the binary names of the annotation types listed
// in a Runtime(In)VisibleAnnotations attribute body.
func parseAnnotations(data []byte, pool *Pool) ([]string, error) {
	r := newReader(bytes.NewReader(data))

	count, err := r.u2()
	if err != nil {
		return nil, attributeErr(err)
	}

	names := make([]string, 0, count)

	for range count {
		name, annErr := readAnnotation(r, pool, 0)
		if annErr != nil {
			return nil, attributeErr(annErr)
		}

		names = append(names, name)
	}

	return names, nil
}

func readAnnotation(r *reader, pool *Pool, depth int) (string, error) {
	typeIndex, err := r.u2()
	if err != nil {
		return "", err
	}

	descriptor, err := pool.Utf8(typeIndex)
	if err != nil {
		return "", err
	}

	internal, ok := DescriptorClassName(descriptor)
	if !ok {
		return "", malformed(ReasonBadAttribute, int(typeIndex), "annotation type %q", descriptor)
	}

	pairs, err := r.u2()
	if err != nil {
		return "", err
	}

	for range pairs {
		_, err = r.u2()
		if err != nil {
			return "", err
		}

		err = skipElementValue(r, pool, depth+1)
		if err != nil {
			return "", err
		}
	}

	return BinaryName(internal), nil
}

func skipElementValue(r *reader, pool *Pool, depth int) error {
	if depth > maxElementDepth {
		return malformed(ReasonBadAttribute, 0, "element values nested deeper than %d", maxElementDepth)
	}

	tag, err := r.u1()
	if err != nil {
		return err
	}

	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		_, err = r.u2()

		return err
	case 'e':
		return r.skip(4)
	case '@':
		_, err = readAnnotation(r, pool, depth)

		return err
	case '[':
		count, countErr := r.u2()
		if countErr != nil {
			return countErr
		}

		for range count {
			err = skipElementValue(r, pool, depth+1)
			if err != nil {
				return err
			}
		}

		return nil
	default:
		return malformed(ReasonBadAttribute, 0, "element value tag %q", rune(tag))
	}
}

// attributeErr reports truncation inside an attribute body as a bad attribute.
func attributeErr(err error) error {
	var cfErr *Error
	if errors.As(err, &cfErr) && cfErr.Reason == ReasonTruncated {
		return &Error{Reason: ReasonBadAttribute, Msg: "annotation data overruns attribute length", Err: cfErr.Err}
	}

	return err
}

// mergeNames appends names not already present, keeping first-seen order.
func mergeNames(dst []string, names []string) []string {
	for _, name := range names {
		if !slices.Contains(dst, name) {
			dst = append(dst, name)
		}
	}

	return dst
}
