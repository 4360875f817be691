package classfile_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/annoscan/internal/classgen"
	"github.com/Sumatoshi-tech/annoscan/pkg/classfile"
)

const (
	experimental = "org.example.api.Experimental"
	deprecated   = "java.lang.Deprecated"
)

func TestParse_FullClass(t *testing.T) {
	t.Parallel()

	b := classgen.New("com/example/Annotated").
		Extends("com/example/Base").
		Implements("com/example/Api", "java/io/Serializable").
		Annotate(experimental).
		AnnotateWith(classgen.Annotation{Type: deprecated, Invisible: true}).
		Field("fieldA", "Ljava/lang/String;", experimental).
		Field("plain", "I").
		Method(classfile.ConstructorName, "(Ljava/lang/String;)V", experimental).
		Method("run", "()V")

	class, err := classfile.Parse(b.Reader())
	require.NoError(t, err)

	assert.Equal(t, classfile.Version{Major: classgen.DefaultMajor, Minor: classgen.DefaultMinor}, class.Version)
	assert.Equal(t, "com/example/Annotated", class.Name)
	assert.Equal(t, "com/example/Base", class.SuperName)
	assert.Equal(t, []string{"com/example/Api", "java/io/Serializable"}, class.Interfaces)
	assert.Equal(t, []string{experimental, deprecated}, class.Annotations)
	assert.False(t, class.IsInterface())

	require.Len(t, class.Fields, 2)
	assert.Equal(t, "fieldA", class.Fields[0].Name)
	assert.Equal(t, []string{experimental}, class.Fields[0].Annotations)
	assert.Empty(t, class.Fields[1].Annotations)

	require.Len(t, class.Methods, 2)
	assert.Equal(t, classfile.ConstructorName, class.Methods[0].Name)
	assert.Equal(t, "(Ljava/lang/String;)V", class.Methods[0].Descriptor)
	assert.Equal(t, []string{experimental}, class.Methods[0].Annotations)
	assert.Empty(t, class.Methods[1].Annotations)
}

func TestParse_ElementValuesAreSkipped(t *testing.T) {
	t.Parallel()

	ann := classgen.Annotation{
		Type: experimental,
		Values: []classgen.Pair{
			{Name: "since", Value: "1.2"},
			{Name: "level", Value: int32(3)},
			{Name: "tags", Value: []string{"a", "b"}},
			{Name: "stage", Value: classgen.EnumValue{TypeDescriptor: "Lorg/example/Stage;", Name: "ALPHA"}},
			{Name: "owner", Value: classgen.ClassValue("Lcom/example/Owner;")},
			{Name: "nested", Value: classgen.Annotation{Type: "org.example.Note", Values: []classgen.Pair{{Name: "value", Value: "x"}}}},
		},
	}

	b := classgen.New("com/example/Values").
		AddMethod(classgen.Member{Name: "m", Descriptor: "()V", Annotations: []classgen.Annotation{ann, {Type: deprecated}}})

	class, err := classfile.Parse(b.Reader())
	require.NoError(t, err)

	require.Len(t, class.Methods, 1)
	assert.Equal(t, []string{experimental, deprecated}, class.Methods[0].Annotations)
}

func TestParse_VisibleAndInvisibleDuplicatesCollapse(t *testing.T) {
	t.Parallel()

	b := classgen.New("com/example/Twice").
		AnnotateWith(classgen.Annotation{Type: experimental}, classgen.Annotation{Type: experimental, Invisible: true})

	class, err := classfile.Parse(b.Reader())
	require.NoError(t, err)
	assert.Equal(t, []string{experimental}, class.Annotations)
}

func TestParse_InterfaceWithoutSuper(t *testing.T) {
	t.Parallel()

	b := classgen.New("module-info").Extends("")
	b.Access = classfile.AccModule

	class, err := classfile.Parse(b.Reader())
	require.NoError(t, err)
	assert.Empty(t, class.SuperName)

	iface, err := classfile.Parse(classgen.New("com/example/Api").Interface().Reader())
	require.NoError(t, err)
	assert.True(t, iface.IsInterface())
}

func TestParse_UnknownAttributesAreSkippedByLength(t *testing.T) {
	t.Parallel()

	b := classgen.New("com/example/Attrs").
		ClassAttribute(classgen.RawAttribute{Name: "SourceFile", Data: []byte{0, 1}}).
		ClassAttribute(classgen.RawAttribute{Name: "Vendor", Data: bytes.Repeat([]byte{0xFF}, 300)}).
		Annotate(experimental)

	class, err := classfile.Parse(b.Reader())
	require.NoError(t, err)
	assert.Equal(t, []string{experimental}, class.Annotations)
}

func TestParse_AnnotationOverrunsAttribute(t *testing.T) {
	t.Parallel()

	// num_annotations = 1 with no annotation following.
	b := classgen.New("com/example/Broken").
		ClassAttribute(classgen.RawAttribute{Name: classfile.AttrRuntimeVisibleAnnotations, Data: []byte{0, 1}})

	_, err := classfile.Parse(b.Reader())
	requireReason(t, err, classfile.ReasonBadAttribute)
}

func TestParse_BadElementTag(t *testing.T) {
	t.Parallel()

	b := classgen.New("com/example/BadTag")
	typeIdx := b.Utf8(classgen.TypeDescriptor(experimental))
	nameIdx := b.Utf8("value")

	data := []byte{0, 1, byte(typeIdx >> 8), byte(typeIdx), 0, 1, byte(nameIdx >> 8), byte(nameIdx), 'X', 0, 0}
	b.ClassAttribute(classgen.RawAttribute{Name: classfile.AttrRuntimeVisibleAnnotations, Data: data})

	_, err := classfile.Parse(b.Reader())
	requireReason(t, err, classfile.ReasonBadAttribute)
}

func TestParse_BadMagic(t *testing.T) {
	t.Parallel()

	data := classgen.New("com/example/X").Bytes()
	data[0] = 0xCA
	data[3] = 0x00

	_, err := classfile.Parse(bytes.NewReader(data))
	requireReason(t, err, classfile.ReasonBadMagic)
}

func TestParse_TruncatedEverywhere(t *testing.T) {
	t.Parallel()

	data := classgen.New("com/example/Cut").
		Implements("com/example/Api").
		Field("f", "I", experimental).
		Method("m", "()V").
		Bytes()

	for cut := range len(data) {
		_, err := classfile.Parse(bytes.NewReader(data[:cut]))
		require.Error(t, err, "cut at %d", cut)
		assert.ErrorIs(t, err, classfile.ErrMalformedClassFile, "cut at %d", cut)
	}

	_, err := classfile.Parse(bytes.NewReader(data))
	require.NoError(t, err)
}

func TestDecoder_StepsInOrder(t *testing.T) {
	t.Parallel()

	d := classfile.NewDecoder(classgen.New("com/example/X").Reader())

	_, err := d.ReadPool()
	require.ErrorIs(t, err, classfile.ErrDecoderState)

	d = classfile.NewDecoder(classgen.New("com/example/X").Implements("com/example/I").Reader())

	_, err = d.ReadPrelude()
	require.NoError(t, err)

	pool, err := d.ReadPool()
	require.NoError(t, err)

	h, err := d.ReadHierarchy()
	require.NoError(t, err)

	this, err := pool.ClassName(h.ThisClass)
	require.NoError(t, err)
	assert.Equal(t, "com/example/X", this)
	require.Len(t, h.Interfaces, 1)

	_, err = d.ReadPrelude()
	require.ErrorIs(t, err, classfile.ErrDecoderState)
}

func TestElementClassName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"com/example/Foo", "com/example/Foo", true},
		{"[Lcom/example/Foo;", "com/example/Foo", true},
		{"[[Lcom/example/Foo;", "com/example/Foo", true},
		{"[I", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := classfile.ElementClassName(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNameConversions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "com/example/Foo$Inner", classfile.InternalName("com.example.Foo$Inner"))
	assert.Equal(t, "com.example.Foo", classfile.BinaryName("com/example/Foo"))

	name, ok := classfile.DescriptorClassName("Lorg/example/Experimental;")
	require.True(t, ok)
	assert.Equal(t, "org/example/Experimental", name)

	_, ok = classfile.DescriptorClassName("I")
	assert.False(t, ok)
}
