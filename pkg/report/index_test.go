package report_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/report"
)

const preview = "org.example.api.Preview"

func buildIndex(t *testing.T, source string, facts ...index.Fact) *index.Index {
	t.Helper()

	b := index.NewBuilder(experimental, preview)
	b.AddSource(index.Source{Path: source, XXH3: "0123456789abcdef"})

	for _, f := range facts {
		_, err := b.Add(f)
		require.NoError(t, err)
	}

	return b.Build()
}

func sampleIndex(t *testing.T) *index.Index {
	t.Helper()

	return buildIndex(t, "lib.jar",
		index.Fact{Kind: index.ElementMethod, Class: "com/lib/M", Member: "run", Descriptor: "()V", Annotations: []string{experimental}},
		index.Fact{Kind: index.ElementClass, Class: "com/lib/C", Annotations: []string{preview, experimental}},
		index.Fact{Kind: index.ElementField, Class: "com/lib/F", Member: "f", Annotations: []string{experimental}},
	)
}

func TestNewIndexDump(t *testing.T) {
	t.Parallel()

	dump := report.NewIndexDump(sampleIndex(t))

	assert.Equal(t, report.IndexStats{Annotations: 2, Sources: 1, Classes: 1, Fields: 1, Methods: 1}, dump.Stats)
	assert.Equal(t, []report.ElementRow{
		{Kind: "class", Class: "com/lib/C", Annotations: []string{experimental, preview}},
		{Kind: "field", Class: "com/lib/F", Member: "f", Annotations: []string{experimental}},
		{Kind: "method", Class: "com/lib/M", Member: "run", Descriptor: "()V", Annotations: []string{experimental}},
	}, dump.Elements)
}

func TestWriteIndex(t *testing.T) {
	t.Parallel()

	var text bytes.Buffer
	require.NoError(t, report.WriteIndex(&text, sampleIndex(t), report.Options{NoColor: true}))

	out := text.String()
	assert.Contains(t, out, "annotations: "+experimental+", "+preview)
	assert.Contains(t, out, "sources: 1, classes: 1, fields: 1, methods: 1")
	assert.Contains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "run()V")

	var encoded bytes.Buffer
	require.NoError(t, report.WriteIndex(&encoded, index.Empty(), report.Options{Format: report.FormatJSON}))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(encoded.Bytes(), &doc))
	assert.Equal(t, []any{}, doc["elements"])
	assert.Equal(t, []any{}, doc["sources"])
}

func TestDiffIndexes(t *testing.T) {
	t.Parallel()

	before := sampleIndex(t)
	after := buildIndex(t, "lib.jar",
		index.Fact{Kind: index.ElementMethod, Class: "com/lib/M", Member: "run", Descriptor: "()V", Annotations: []string{experimental}},
		index.Fact{Kind: index.ElementClass, Class: "com/lib/C", Annotations: []string{experimental}},
		index.Fact{Kind: index.ElementClass, Class: "com/lib/New", Annotations: []string{preview}},
	)

	assert.Empty(t, report.DiffIndexes(before, before))

	lines := report.DiffIndexes(before, after)

	var rendered []string
	for _, l := range lines {
		rendered = append(rendered, l.String())
	}

	assert.ElementsMatch(t, []string{
		"- class com/lib/C [" + experimental + " " + preview + "]",
		"+ class com/lib/C [" + experimental + "]",
		"+ class com/lib/New [" + preview + "]",
		"- field com/lib/F.f [" + experimental + "]",
	}, rendered)

	var buf bytes.Buffer
	require.NoError(t, report.WriteDiff(&buf, lines, report.Options{NoColor: true}))
	assert.Contains(t, buf.String(), "+ class com/lib/New ["+preview+"]\n")
}

func TestCanonicalLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"annotation " + experimental,
		"annotation " + preview,
		"source lib.jar 0123456789abcdef",
		"class com/lib/C [" + experimental + " " + preview + "]",
		"field com/lib/F.f [" + experimental + "]",
		"method com/lib/M.run()V [" + experimental + "]",
	}, report.CanonicalLines(sampleIndex(t)))
}
