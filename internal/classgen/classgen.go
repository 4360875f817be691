// Package classgen assembles class files byte by byte. Tests use it to
// produce bytecode fixtures without a Java compiler.
package classgen

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/Sumatoshi-tech/annoscan/pkg/classfile"
	"github.com/Sumatoshi-tech/annoscan/pkg/safeconv"
)

// Default version written by New (Java 17).
const (
	DefaultMajor = 61
	DefaultMinor = 0
)

// ObjectClass is the implicit superclass.
const ObjectClass = "java/lang/Object"

// Annotation describes one annotation attached to a declaration.
// Type is the binary name (com.example.Experimental).
type Annotation struct {
	Type      string
	Invisible bool
	Values    []Pair
}

// Pair is one element_value_pair. Supported Value types: int32, string,
// []string, EnumValue, ClassValue and Annotation.
type Pair struct {
	Name  string
	Value any
}

// EnumValue is an enum constant element value.
type EnumValue struct {
	TypeDescriptor string
	Name           string
}

// ClassValue is a class literal element value, given as a return descriptor.
type ClassValue string

// RawAttribute is written verbatim, e.g. a Code attribute.
type RawAttribute struct {
	Name string
	Data []byte
}

// Member describes a field or method declaration.
type Member struct {
	Access      uint16
	Name        string
	Descriptor  string
	Annotations []Annotation
	Attributes  []RawAttribute
}

type natKey struct{ name, descriptor string }

type refKey struct {
	tag   classfile.Tag
	owner string
	nat   natKey
}

// Builder accumulates a constant pool and declarations.
type Builder struct {
	Major, Minor uint16
	Access       uint16

	name     string
	pool     bytes.Buffer
	next     int
	utf8s    map[string]uint16
	classes  map[string]uint16
	nats     map[natKey]uint16
	refs     map[refKey]uint16
	ints     map[int32]uint16
	this     uint16
	super    uint16
	ifaces   []uint16
	fields   []Member
	methods  []Member
	classAnn []Annotation
	classRaw []RawAttribute
}

// New starts a public class named by its internal name, extending java/lang/Object.
func New(name string) *Builder {
	b := &Builder{
		name:    name,
		Major:   DefaultMajor,
		Minor:   DefaultMinor,
		Access:  0x0021,
		next:    1,
		utf8s:   make(map[string]uint16),
		classes: make(map[string]uint16),
		nats:    make(map[natKey]uint16),
		refs:    make(map[refKey]uint16),
		ints:    make(map[int32]uint16),
	}

	b.this = b.Class(name)
	b.super = b.Class(ObjectClass)

	return b
}

// Name returns the internal name of the class being built.
func (b *Builder) Name() string { return b.name }

// Extends sets the superclass; an empty name writes super_class 0.
func (b *Builder) Extends(name string) *Builder {
	if name == "" {
		b.super = 0

		return b
	}

	b.super = b.Class(name)

	return b
}

// Implements appends interfaces.
func (b *Builder) Implements(names ...string) *Builder {
	for _, name := range names {
		b.ifaces = append(b.ifaces, b.Class(name))
	}

	return b
}

// Interface marks the class as an interface.
func (b *Builder) Interface() *Builder {
	b.Access = 0x0601

	return b
}

// Annotate attaches runtime-visible annotations (binary names) to the class.
func (b *Builder) Annotate(types ...string) *Builder {
	b.classAnn = append(b.classAnn, annotations(types)...)

	return b
}

// AnnotateWith attaches fully described annotations to the class.
func (b *Builder) AnnotateWith(anns ...Annotation) *Builder {
	b.classAnn = append(b.classAnn, anns...)

	return b
}

// ClassAttribute appends a raw class attribute.
func (b *Builder) ClassAttribute(attr RawAttribute) *Builder {
	b.classRaw = append(b.classRaw, attr)

	return b
}

// Field declares a field with runtime-visible annotations.
func (b *Builder) Field(name, descriptor string, types ...string) *Builder {
	return b.AddField(Member{Access: 0x0001, Name: name, Descriptor: descriptor, Annotations: annotations(types)})
}

// AddField declares a field.
func (b *Builder) AddField(m Member) *Builder {
	b.fields = append(b.fields, m)

	return b
}

// Method declares a method with runtime-visible annotations and a dummy Code attribute.
func (b *Builder) Method(name, descriptor string, types ...string) *Builder {
	return b.AddMethod(Member{
		Access:      0x0001,
		Name:        name,
		Descriptor:  descriptor,
		Annotations: annotations(types),
		Attributes:  []RawAttribute{{Name: "Code", Data: dummyCode}},
	})
}

// AddMethod declares a method.
func (b *Builder) AddMethod(m Member) *Builder {
	b.methods = append(b.methods, m)

	return b
}

// dummyCode is a Code attribute body: max_stack, max_locals, code "return", no handlers, no attributes.
var dummyCode = []byte{0, 1, 0, 1, 0, 0, 0, 1, 0xB1, 0, 0, 0, 0}

func annotations(types []string) []Annotation {
	out := make([]Annotation, 0, len(types))
	for _, t := range types {
		out = append(out, Annotation{Type: t})
	}

	return out
}

func (b *Builder) add(tag classfile.Tag, payload []byte, slots int) uint16 {
	idx := safeconv.MustIntToUint16(b.next)

	b.pool.WriteByte(byte(tag))
	b.pool.Write(payload)
	b.next += slots

	return idx
}

// Utf8 interns a Utf8 constant.
func (b *Builder) Utf8(text string) uint16 {
	if idx, ok := b.utf8s[text]; ok {
		return idx
	}

	data := EncodeModifiedUTF8(text)
	idx := b.add(classfile.TagUtf8, append(u2(safeconv.MustIntToUint16(len(data))), data...), 1)
	b.utf8s[text] = idx

	return idx
}

// Class interns a Class constant.
func (b *Builder) Class(name string) uint16 {
	if idx, ok := b.classes[name]; ok {
		return idx
	}

	nameIdx := b.Utf8(name)
	idx := b.add(classfile.TagClass, u2(nameIdx), 1)
	b.classes[name] = idx

	return idx
}

// NameAndType interns a NameAndType constant.
func (b *Builder) NameAndType(name, descriptor string) uint16 {
	key := natKey{name, descriptor}
	if idx, ok := b.nats[key]; ok {
		return idx
	}

	payload := append(u2(b.Utf8(name)), u2(b.Utf8(descriptor))...)
	idx := b.add(classfile.TagNameAndType, payload, 1)
	b.nats[key] = idx

	return idx
}

func (b *Builder) ref(tag classfile.Tag, owner, name, descriptor string) uint16 {
	key := refKey{tag, owner, natKey{name, descriptor}}
	if idx, ok := b.refs[key]; ok {
		return idx
	}

	payload := append(u2(b.Class(owner)), u2(b.NameAndType(name, descriptor))...)
	idx := b.add(tag, payload, 1)
	b.refs[key] = idx

	return idx
}

// FieldRef interns a Fieldref constant, as emitted for getfield/putfield/getstatic/putstatic.
func (b *Builder) FieldRef(owner, name, descriptor string) uint16 {
	return b.ref(classfile.TagFieldref, owner, name, descriptor)
}

// MethodRef interns a Methodref constant, as emitted for invokevirtual/invokespecial/invokestatic.
func (b *Builder) MethodRef(owner, name, descriptor string) uint16 {
	return b.ref(classfile.TagMethodref, owner, name, descriptor)
}

// InterfaceMethodRef interns an InterfaceMethodref constant.
func (b *Builder) InterfaceMethodRef(owner, name, descriptor string) uint16 {
	return b.ref(classfile.TagInterfaceMethodref, owner, name, descriptor)
}

// StringConst adds a String constant.
func (b *Builder) StringConst(text string) uint16 {
	return b.add(classfile.TagString, u2(b.Utf8(text)), 1)
}

// Integer interns an Integer constant.
func (b *Builder) Integer(v int32) uint16 {
	if idx, ok := b.ints[v]; ok {
		return idx
	}

	idx := b.add(classfile.TagInteger, u4(uint32(v)), 1) //nolint:gosec // bit pattern
	b.ints[v] = idx

	return idx
}

// Long adds a Long constant, which takes two slots.
func (b *Builder) Long(v int64) uint16 {
	return b.add(classfile.TagLong, u8(uint64(v)), 2) //nolint:gosec // bit pattern
}

// Double adds a Double constant, which takes two slots.
func (b *Builder) Double(v float64) uint16 {
	return b.add(classfile.TagDouble, u8(math.Float64bits(v)), 2)
}

// MethodHandle adds a MethodHandle constant.
func (b *Builder) MethodHandle(kind byte, ref uint16) uint16 {
	return b.add(classfile.TagMethodHandle, append([]byte{kind}, u2(ref)...), 1)
}

// Bytes serializes the class file.
func (b *Builder) Bytes() []byte {
	var body bytes.Buffer

	body.Write(u2(b.Access))
	body.Write(u2(b.this))
	body.Write(u2(b.super))
	body.Write(u2(safeconv.MustIntToUint16(len(b.ifaces))))

	for _, idx := range b.ifaces {
		body.Write(u2(idx))
	}

	b.writeMembers(&body, b.fields)
	b.writeMembers(&body, b.methods)
	b.writeAttributes(&body, b.classAnn, b.classRaw)

	var out bytes.Buffer

	out.Write(u4(classfile.Magic))
	out.Write(u2(b.Minor))
	out.Write(u2(b.Major))
	out.Write(u2(safeconv.MustIntToUint16(b.next)))
	out.Write(b.pool.Bytes())
	out.Write(body.Bytes())

	return out.Bytes()
}

// Reader returns the serialized class file as a reader.
func (b *Builder) Reader() *bytes.Reader {
	return bytes.NewReader(b.Bytes())
}

func (b *Builder) writeMembers(w *bytes.Buffer, members []Member) {
	w.Write(u2(safeconv.MustIntToUint16(len(members))))

	for _, m := range members {
		w.Write(u2(m.Access))
		w.Write(u2(b.Utf8(m.Name)))
		w.Write(u2(b.Utf8(m.Descriptor)))
		b.writeAttributes(w, m.Annotations, m.Attributes)
	}
}

func (b *Builder) writeAttributes(w *bytes.Buffer, anns []Annotation, raw []RawAttribute) {
	var visible, invisible []Annotation

	for _, a := range anns {
		if a.Invisible {
			invisible = append(invisible, a)
		} else {
			visible = append(visible, a)
		}
	}

	attrs := append([]RawAttribute(nil), raw...)

	if len(visible) > 0 {
		attrs = append(attrs, RawAttribute{Name: classfile.AttrRuntimeVisibleAnnotations, Data: b.annotationTable(visible)})
	}

	if len(invisible) > 0 {
		attrs = append(attrs, RawAttribute{Name: classfile.AttrRuntimeInvisibleAnnotations, Data: b.annotationTable(invisible)})
	}

	w.Write(u2(safeconv.MustIntToUint16(len(attrs))))

	for _, attr := range attrs {
		w.Write(u2(b.Utf8(attr.Name)))
		w.Write(u4(safeconv.MustIntToUint32(len(attr.Data))))
		w.Write(attr.Data)
	}
}

func (b *Builder) annotationTable(anns []Annotation) []byte {
	var w bytes.Buffer

	w.Write(u2(safeconv.MustIntToUint16(len(anns))))

	for _, a := range anns {
		b.writeAnnotation(&w, a)
	}

	return w.Bytes()
}

func (b *Builder) writeAnnotation(w *bytes.Buffer, a Annotation) {
	w.Write(u2(b.Utf8(TypeDescriptor(a.Type))))
	w.Write(u2(safeconv.MustIntToUint16(len(a.Values))))

	for _, p := range a.Values {
		w.Write(u2(b.Utf8(p.Name)))
		b.writeElementValue(w, p.Value)
	}
}

func (b *Builder) writeElementValue(w *bytes.Buffer, value any) {
	switch v := value.(type) {
	case int32:
		w.WriteByte('I')
		w.Write(u2(b.Integer(v)))
	case string:
		w.WriteByte('s')
		w.Write(u2(b.Utf8(v)))
	case []string:
		w.WriteByte('[')
		w.Write(u2(safeconv.MustIntToUint16(len(v))))

		for _, s := range v {
			b.writeElementValue(w, s)
		}
	case EnumValue:
		w.WriteByte('e')
		w.Write(u2(b.Utf8(v.TypeDescriptor)))
		w.Write(u2(b.Utf8(v.Name)))
	case ClassValue:
		w.WriteByte('c')
		w.Write(u2(b.Utf8(string(v))))
	case Annotation:
		w.WriteByte('@')
		b.writeAnnotation(w, v)
	default:
		panic("classgen: unsupported element value")
	}
}

// TypeDescriptor converts a binary class name to an object type descriptor.
func TypeDescriptor(binaryName string) string {
	return "L" + strings.ReplaceAll(binaryName, ".", "/") + ";"
}

// EncodeModifiedUTF8 encodes text the way the JVM stores Utf8 constants.
func EncodeModifiedUTF8(text string) []byte {
	out := make([]byte, 0, len(text))

	for _, r := range text {
		switch {
		case r != 0 && r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, byte(0xC0|r>>6), byte(0x80|r&0x3F))
		case r < 0x10000:
			out = append(out, encode3(r)...)
		default:
			hi, lo := utf16.EncodeRune(r)
			out = append(out, encode3(hi)...)
			out = append(out, encode3(lo)...)
		}
	}

	return out
}

func encode3(r rune) []byte {
	return []byte{byte(0xE0 | r>>12), byte(0x80 | (r>>6)&0x3F), byte(0x80 | r&0x3F)}
}

func u2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func u4(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func u8(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}
