package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/report"
)

func TestGenerateSchema_ScanReport(t *testing.T) {
	t.Parallel()

	schema := generateSchema("scan-report", &report.ScanReport{})

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"summary", "usages"}, schema.Required)
	assert.Contains(t, schema.Properties, "failures")

	row := schema.Definitions["Row"]
	require.NotNil(t, row)
	assert.Len(t, row.Properties, 6, "unexported fields are skipped")
	assert.ElementsMatch(t, []string{"kind", "source_class", "target_class", "annotations"}, row.Required)
	assert.Equal(t, "array", row.Properties["annotations"].Type)
}

func TestGenerateSchema_ValidatesReports(t *testing.T) {
	t.Parallel()

	rep := report.ScanReport{
		Summary: report.Summary{Archives: 1, Classes: 2, Usages: 1},
		Usages: []report.Row{{
			Kind:        "method",
			SourceClass: "com/app/Main",
			TargetClass: "com/lib/Api",
			Member:      "call",
			Descriptor:  "()V",
			Annotations: []string{"org.example.Experimental"},
		}},
	}

	tests := []struct {
		name string
		doc  any
		v    any
	}{
		{name: "scan-report", doc: &report.ScanReport{}, v: rep},
		{name: "index-dump", doc: &report.IndexDump{}, v: report.NewIndexDump(index.Empty())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			schemaJSON, err := json.Marshal(generateSchema(tt.name, tt.doc))
			require.NoError(t, err)

			docJSON, err := json.Marshal(tt.v)
			require.NoError(t, err)

			res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(docJSON))
			require.NoError(t, err)
			assert.True(t, res.Valid(), "%v", res.Errors())
		})
	}
}

func TestRun_WritesEveryDocument(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "schemas")

	require.NoError(t, run(dir))

	for name := range documents {
		data, err := os.ReadFile(filepath.Join(dir, name+".json"))
		require.NoError(t, err)

		var schema Schema
		require.NoError(t, json.Unmarshal(data, &schema))
		assert.Equal(t, "https://json-schema.org/draft-07/schema#", schema.Schema)
	}
}
