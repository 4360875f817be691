package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/annoscan/internal/classgen"
	"github.com/Sumatoshi-tech/annoscan/pkg/archive"
	"github.com/Sumatoshi-tech/annoscan/pkg/classfile"
	"github.com/Sumatoshi-tech/annoscan/pkg/index"
)

func apiJar() classgen.Jar {
	return classgen.Jar{}.Add(
		classgen.New("com/example/lib/ClassWithExperimental").Annotate(experimental),
		classgen.New("com/example/lib/InterfaceWithExperimental").Interface().
			AnnotateWith(classgen.Annotation{Type: experimental, Invisible: true}),
		classgen.New("com/example/lib/ClassWithExperimentalFields").
			Field("fieldA", "Ljava/lang/String;", experimental).
			Field("fieldB", "Ljava/lang/String;", experimental).
			Field("plain", "I", "java.lang.Deprecated"),
		classgen.New("com/example/lib/ClassWithExperimentalConstructors").
			Method(classfile.ConstructorName, "()V").
			Method(classfile.ConstructorName, "(Ljava/lang/String;)V", experimental),
		classgen.New("com/example/lib/Plain").Method("run", "()V"),
	)
}

func TestBuildIndex_SingleJar(t *testing.T) {
	t.Parallel()

	path := writeJar(t, t.TempDir(), "api.jar", apiJar())

	res, err := archive.BuildIndex(context.Background(), []string{path}, archive.BuildOptions{Targets: []string{experimental}})
	require.NoError(t, err)

	idx := res.Index
	assert.Equal(t, 5, res.Classes)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, index.Stats{Annotations: 1, Sources: 1, Classes: 2, Fields: 2, Methods: 1}, idx.Stats())

	_, ok := idx.ClassAnnotations("com/example/lib/InterfaceWithExperimental")
	assert.True(t, ok, "invisible annotations are indexed")

	_, ok = idx.FieldAnnotations("com/example/lib/ClassWithExperimentalFields", "plain")
	assert.False(t, ok)

	_, ok = idx.MethodAnnotations("com/example/lib/ClassWithExperimentalConstructors", "<init>", "(Ljava/lang/String;)V")
	assert.True(t, ok)

	_, ok = idx.MethodAnnotations("com/example/lib/ClassWithExperimentalConstructors", "<init>", "()V")
	assert.False(t, ok)

	require.Len(t, idx.Sources(), 1)
	assert.Equal(t, path, idx.Sources()[0].Path)
	assert.Len(t, idx.Sources()[0].XXH3, 16)
}

func TestBuildIndex_UnionAcrossArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first := writeJar(t, dir, "first.jar", classgen.Jar{}.Add(
		classgen.New("com/example/Shared").Annotate(experimental),
	))

	second := filepath.Join(dir, "classes")
	writeClassDir(t, second,
		classgen.New("com/example/Shared").Annotate(preview),
		classgen.New("com/example/Only").Method("m", "()V", preview),
	)

	res, err := archive.BuildIndex(context.Background(), []string{first, second}, archive.BuildOptions{
		Targets: []string{experimental, preview},
		Workers: 2,
	})
	require.NoError(t, err)

	set, ok := res.Index.ClassAnnotations("com/example/Shared")
	require.True(t, ok)
	assert.Equal(t, []string{experimental, preview}, set.Names())

	_, ok = res.Index.MethodAnnotations("com/example/Only", "m", "()V")
	assert.True(t, ok)
	assert.Len(t, res.Index.Sources(), 2)
}

func TestBuildIndex_ExtraNamesAndBase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	base := index.NewBuilder(preview)
	_, err := base.Add(index.Fact{Kind: index.ElementClass, Class: "com/old/Legacy", Annotations: []string{preview}})
	require.NoError(t, err)

	path := writeJar(t, dir, "api.jar", classgen.Jar{}.Add(
		classgen.New("com/example/A").Annotate(experimental),
		classgen.New("com/example/B").Annotate("org.example.Extra"),
	))

	res, err := archive.BuildIndex(context.Background(), []string{path}, archive.BuildOptions{
		Targets: []string{experimental},
		Extra:   []string{"org.example.Extra"},
		Base:    base.Build(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"org.example.Extra", experimental, preview}, res.Index.Annotations().Names())

	for _, class := range []string{"com/example/A", "com/example/B", "com/old/Legacy"} {
		_, ok := res.Index.ClassAnnotations(class)
		assert.True(t, ok, class)
	}
}

func brokenJar() classgen.Jar {
	data := classgen.New("com/example/Broken").Annotate(experimental).Bytes()

	return classgen.Jar{"com/example/Broken.class": data[:len(data)-3]}.
		Add(classgen.New("com/example/Fine").Annotate(experimental))
}

func TestBuildIndex_PolicyFail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeJar(t, dir, "good.jar", apiJar())
	bad := writeJar(t, dir, "bad.jar", brokenJar())

	res, err := archive.BuildIndex(context.Background(), []string{good, bad}, archive.BuildOptions{Targets: []string{experimental}})
	require.Error(t, err)
	assert.Nil(t, res)

	var readErr *archive.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, bad, readErr.Path)
	assert.Equal(t, "com/example/Broken.class", readErr.Entry)
	require.ErrorIs(t, err, classfile.ErrMalformedClassFile)
}

func TestBuildIndex_PolicySkip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeJar(t, dir, "good.jar", apiJar())
	bad := writeJar(t, dir, "bad.jar", brokenJar())
	missing := filepath.Join(dir, "missing.jar")

	res, err := archive.BuildIndex(context.Background(), []string{bad, good, missing}, archive.BuildOptions{
		Targets: []string{experimental},
		OnError: archive.PolicySkip,
	})
	require.NoError(t, err)

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, bad, res.Skipped[0].Path)
	assert.Equal(t, missing, res.Skipped[1].Path)

	// Nothing from the skipped archive survives, not even its valid classes.
	_, ok := res.Index.ClassAnnotations("com/example/Fine")
	assert.False(t, ok)

	_, ok = res.Index.ClassAnnotations("com/example/lib/ClassWithExperimental")
	assert.True(t, ok)
	assert.Len(t, res.Index.Sources(), 1)
}

func TestBuildIndex_MaxClassSize(t *testing.T) {
	t.Parallel()

	path := writeJar(t, t.TempDir(), "api.jar", apiJar())

	_, err := archive.BuildIndex(context.Background(), []string{path}, archive.BuildOptions{
		Targets:      []string{experimental},
		MaxClassSize: 16,
	})
	require.ErrorIs(t, err, archive.ErrClassTooLarge)
	require.ErrorIs(t, err, archive.ErrArchiveRead)
}

func TestBuildIndex_Cancelled(t *testing.T) {
	t.Parallel()

	path := writeJar(t, t.TempDir(), "api.jar", apiJar())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := archive.BuildIndex(ctx, []string{path}, archive.BuildOptions{
		Targets: []string{experimental},
		OnError: archive.PolicySkip,
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildIndex_OptionErrors(t *testing.T) {
	t.Parallel()

	_, err := archive.BuildIndex(context.Background(), nil, archive.BuildOptions{})
	require.ErrorIs(t, err, archive.ErrNoTargets)

	_, err = archive.BuildIndex(context.Background(), nil, archive.BuildOptions{Targets: []string{experimental}, OnError: "retry"})
	require.ErrorIs(t, err, archive.ErrUnknownPolicy)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]archive.Policy{"": archive.PolicyFail, "fail": archive.PolicyFail, "skip": archive.PolicySkip} {
		got, err := archive.ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := archive.ParsePolicy("ignore")
	require.ErrorIs(t, err, archive.ErrUnknownPolicy)
}

func TestClassFacts(t *testing.T) {
	t.Parallel()

	class, err := classfile.Parse(classgen.New("com/example/A").
		Annotate(experimental, "java.lang.Deprecated").
		Field("f", "I", preview).
		Method("m", "(I)V", experimental, preview).
		Reader())
	require.NoError(t, err)

	facts := archive.ClassFacts(class, index.NewAnnotationSet(experimental))

	assert.Equal(t, []index.Fact{
		{Kind: index.ElementClass, Class: "com/example/A", Annotations: []string{experimental}},
		{Kind: index.ElementMethod, Class: "com/example/A", Member: "m", Descriptor: "(I)V", Annotations: []string{experimental}},
	}, facts)
}

func TestOpen_SkipsUnreadableDir(t *testing.T) {
	t.Parallel()

	if os.Getuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o000))

	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	_, err := archive.Open(root)
	require.ErrorIs(t, err, archive.ErrArchiveRead)
}
