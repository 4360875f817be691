// Package inspect finds references to annotated elements in class bytecode.
package inspect

import (
	"fmt"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
)

// Kind discriminates usage records.
type Kind int

// Usage kinds.
const (
	KindExtends Kind = iota + 1
	KindImplements
	KindField
	KindMethod
	KindClass
)

var kindNames = map[Kind]string{
	KindExtends:    "extends",
	KindImplements: "implements",
	KindField:      "field",
	KindMethod:     "method",
	KindClass:      "class",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return name
}

// Usage is one reference from a scanned class to an annotated element. The
// implementations are ExtendsAnnotatedClass, ImplementsAnnotatedInterface,
// FieldReference, MethodReference and ClassReference.
type Usage interface {
	Kind() Kind
	// Record flattens the usage for rendering.
	Record() Record

	key() usageKey
}

// Record is the flat form of a Usage. Member and Descriptor are empty where
// the kind has none.
type Record struct {
	Kind        Kind
	SourceClass string
	TargetClass string
	Member      string
	Descriptor  string
	Annotations []string
}

type usageKey struct {
	kind        Kind
	source      string
	target      string
	member      string
	descriptor  string
	annotations string
}

func keyOf(r Record) usageKey {
	return usageKey{
		kind:        r.Kind,
		source:      r.SourceClass,
		target:      r.TargetClass,
		member:      r.Member,
		descriptor:  r.Descriptor,
		annotations: index.NewAnnotationSet(r.Annotations...).String(),
	}
}

// ExtendsAnnotatedClass: the source class's superclass is annotated.
type ExtendsAnnotatedClass struct {
	SourceClass string
	SuperClass  string
	Annotations index.AnnotationSet
}

func (ExtendsAnnotatedClass) Kind() Kind { return KindExtends }

func (u ExtendsAnnotatedClass) Record() Record {
	return Record{Kind: KindExtends, SourceClass: u.SourceClass, TargetClass: u.SuperClass, Annotations: u.Annotations.Names()}
}

func (u ExtendsAnnotatedClass) key() usageKey { return keyOf(u.Record()) }

// ImplementsAnnotatedInterface: the source class directly implements an annotated interface.
type ImplementsAnnotatedInterface struct {
	SourceClass string
	Interface   string
	Annotations index.AnnotationSet
}

func (ImplementsAnnotatedInterface) Kind() Kind { return KindImplements }

func (u ImplementsAnnotatedInterface) Record() Record {
	return Record{Kind: KindImplements, SourceClass: u.SourceClass, TargetClass: u.Interface, Annotations: u.Annotations.Names()}
}

func (u ImplementsAnnotatedInterface) key() usageKey { return keyOf(u.Record()) }

// FieldReference: the source class reads or writes an annotated field.
type FieldReference struct {
	SourceClass     string
	FieldOwnerClass string
	FieldName       string
	Annotations     index.AnnotationSet
}

func (FieldReference) Kind() Kind { return KindField }

func (u FieldReference) Record() Record {
	return Record{
		Kind:        KindField,
		SourceClass: u.SourceClass,
		TargetClass: u.FieldOwnerClass,
		Member:      u.FieldName,
		Annotations: u.Annotations.Names(),
	}
}

func (u FieldReference) key() usageKey { return keyOf(u.Record()) }

// MethodReference: the source class invokes an annotated method or
// constructor ("<init>").
type MethodReference struct {
	SourceClass      string
	MethodOwnerClass string
	MethodName       string
	Descriptor       string
	Annotations      index.AnnotationSet
}

func (MethodReference) Kind() Kind { return KindMethod }

func (u MethodReference) Record() Record {
	return Record{
		Kind:        KindMethod,
		SourceClass: u.SourceClass,
		TargetClass: u.MethodOwnerClass,
		Member:      u.MethodName,
		Descriptor:  u.Descriptor,
		Annotations: u.Annotations.Names(),
	}
}

func (u MethodReference) key() usageKey { return keyOf(u.Record()) }

// ClassReference: the source class names an annotated class in its
// constant pool other than as its superclass or an interface (new,
// instanceof, casts, class literals, arrays). Reported only with
// WithClassReferences.
type ClassReference struct {
	SourceClass     string
	ReferencedClass string
	Annotations     index.AnnotationSet
}

func (ClassReference) Kind() Kind { return KindClass }

func (u ClassReference) Record() Record {
	return Record{Kind: KindClass, SourceClass: u.SourceClass, TargetClass: u.ReferencedClass, Annotations: u.Annotations.Names()}
}

func (u ClassReference) key() usageKey { return keyOf(u.Record()) }

// Handlers holds one function per usage kind for Match.
type Handlers[T any] struct {
	Extends    func(ExtendsAnnotatedClass) T
	Implements func(ImplementsAnnotatedInterface) T
	Field      func(FieldReference) T
	Method     func(MethodReference) T
	Class      func(ClassReference) T
}

// Match dispatches u to the handler of its kind. Every handler the input
// can reach must be set; a missing one panics.
func Match[T any](u Usage, h Handlers[T]) T {
	switch v := u.(type) {
	case ExtendsAnnotatedClass:
		return call(h.Extends, v)
	case ImplementsAnnotatedInterface:
		return call(h.Implements, v)
	case FieldReference:
		return call(h.Field, v)
	case MethodReference:
		return call(h.Method, v)
	case ClassReference:
		return call(h.Class, v)
	default:
		panic(fmt.Sprintf("inspect: unknown usage %T", u))
	}
}

func call[U Usage, T any](fn func(U) T, u U) T {
	if fn == nil {
		panic(fmt.Sprintf("inspect: no handler for %s usage", u.Kind()))
	}

	return fn(u)
}
