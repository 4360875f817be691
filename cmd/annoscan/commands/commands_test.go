package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/annoscan/internal/classgen"
	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/observability"
)

const (
	experimental = "org.example.api.Experimental"
	preview      = "org.example.api.Preview"
)

func noopObservabilityInit(_ observability.Config) (observability.Providers, error) {
	return observability.Providers{
		Tracer:   nooptrace.NewTracerProvider().Tracer("test"),
		Meter:    noopmetric.NewMeterProvider().Meter("test"),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Shutdown: func(context.Context) error { return nil },
	}, nil
}

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, initObs observabilityInit, args ...string) result {
	t.Helper()

	if initObs == nil {
		initObs = noopObservabilityInit
	}

	var stdout, stderr bytes.Buffer

	cmd := newRootCommand(initObs)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

type workspace struct {
	dir    string
	config string
	lib    string
	app    string
	clean  string
}

func newWorkspace(t *testing.T, configContent string) workspace {
	t.Helper()

	dir := t.TempDir()
	ws := workspace{
		dir:    dir,
		config: filepath.Join(dir, "annoscan.yaml"),
		lib:    filepath.Join(dir, "lib.jar"),
		app:    filepath.Join(dir, "app.jar"),
		clean:  filepath.Join(dir, "clean.jar"),
	}

	require.NoError(t, os.WriteFile(ws.config, []byte(configContent), 0o600))

	require.NoError(t, classgen.Jar{}.Add(
		classgen.New("com/lib/Exp").Annotate(experimental),
		classgen.New("com/lib/Api").Method("call", "()V", experimental).Field("flag", "Z", preview),
	).Write(ws.lib))

	user := classgen.New("com/app/Main").Extends("com/lib/Exp")
	user.MethodRef("com/lib/Api", "call", "()V")

	require.NoError(t, classgen.Jar{}.Add(user).Write(ws.app))
	require.NoError(t, classgen.Jar{}.Add(classgen.New("com/app/Clean")).Write(ws.clean))

	return ws
}

func TestIndexShowScan(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")
	idxPath := filepath.Join(ws.dir, "idx.json")

	res := execute(t, nil, "--config", ws.config, "index", "-a", experimental, "-o", idxPath, ws.lib)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "wrote "+idxPath)
	assert.Contains(t, res.stdout, "1 classes, 0 fields, 1 methods from 1 archives")

	res = execute(t, nil, "--config", ws.config, "show", "-i", idxPath, "-f", "json")
	require.NoError(t, res.err)

	var dump struct {
		Annotations []string `json:"annotations"`
		Elements    []struct {
			Kind  string `json:"kind"`
			Class string `json:"class"`
		} `json:"elements"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &dump))
	assert.Equal(t, []string{experimental}, dump.Annotations)
	require.Len(t, dump.Elements, 2)
	assert.Equal(t, "com/lib/Exp", dump.Elements[0].Class)

	res = execute(t, nil, "--config", ws.config, "scan", "-i", idxPath, "--no-color", ws.app)

	var exitErr *ExitError
	require.ErrorAs(t, res.err, &exitErr)
	assert.Equal(t, ExitUsagesFound, exitErr.Code)
	assert.Contains(t, res.stdout, "com/app/Main")
	assert.Contains(t, res.stdout, "call()V")
	assert.Contains(t, res.stdout, "2 usages in 1 class (1 archive), 0 malformed")

	res = execute(t, nil, "--config", ws.config, "scan", "-i", idxPath, ws.clean)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "0 usages")
}

func TestIndex_FromConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	idxBase := filepath.Join(dir, "restricted")

	ws := newWorkspace(t, "annotations: ["+experimental+"]\nextra_annotations: ["+preview+"]\nindex:\n  path: "+idxBase+"\n  format: json.lz4\n")

	res := execute(t, nil, "--config", ws.config, "index", ws.lib)
	require.NoError(t, res.err)

	idx, err := index.Load(idxBase + ".json.lz4")
	require.NoError(t, err)

	_, ok := idx.FieldAnnotations("com/lib/Api", "flag")
	assert.True(t, ok, "extra annotations are indexed")

	res = execute(t, nil, "--config", ws.config, "scan", "-f", "yaml", ws.app)

	var exitErr *ExitError
	require.ErrorAs(t, res.err, &exitErr)
	assert.Contains(t, res.stdout, "source_class: com/app/Main")
}

func TestIndex_ExtraFrom(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")
	first := filepath.Join(ws.dir, "first.gob")
	second := filepath.Join(ws.dir, "second.json")

	require.NoError(t, execute(t, nil, "--config", ws.config, "index", "-a", preview, "-o", first, ws.lib).err)
	require.NoError(t, execute(t, nil, "--config", ws.config, "index", "-a", experimental, "--extra-from", first, "-o", second, ws.clean).err)

	idx, err := index.Load(second)
	require.NoError(t, err)

	assert.Equal(t, []string{experimental, preview}, idx.Annotations().Names())

	_, ok := idx.FieldAnnotations("com/lib/Api", "flag")
	assert.True(t, ok, "base entries are carried over")
	assert.Len(t, idx.Sources(), 2)
}

func TestIndex_Errors(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")

	res := execute(t, nil, "--config", ws.config, "index", ws.lib)
	require.ErrorIs(t, res.err, ErrNoAnnotations)

	res = execute(t, nil, "--config", ws.config, "index", "-a", experimental, "--on-error", "ignore", ws.lib)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown error policy")

	broken := filepath.Join(ws.dir, "broken.jar")
	require.NoError(t, os.WriteFile(broken, []byte("not a zip"), 0o600))

	res = execute(t, nil, "--config", ws.config, "index", "-a", experimental, "-o", filepath.Join(ws.dir, "i.json"), broken)
	require.Error(t, res.err)

	res = execute(t, nil, "--config", ws.config, "index", "-a", experimental, "--on-error", "skip",
		"-o", filepath.Join(ws.dir, "i.json"), broken, ws.lib)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "skipped: read archive "+broken)
}

func TestScan_MissingIndex(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")

	res := execute(t, nil, "--config", ws.config, "scan", "-i", filepath.Join(ws.dir, "none.json"), ws.app)
	require.ErrorIs(t, res.err, index.ErrIndexLoad)
	require.ErrorIs(t, res.err, os.ErrNotExist)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")
	a := filepath.Join(ws.dir, "a.json")
	b := filepath.Join(ws.dir, "b.json")

	require.NoError(t, execute(t, nil, "--config", ws.config, "index", "-a", experimental, "-o", a, ws.lib).err)
	require.NoError(t, execute(t, nil, "--config", ws.config, "index", "-a", experimental, "-a", preview, "-o", b, ws.lib).err)

	res := execute(t, nil, "--config", ws.config, "diff", a, a)
	require.NoError(t, res.err)
	assert.Equal(t, "indexes are identical\n", res.stdout)

	res = execute(t, nil, "--config", ws.config, "--no-color", "diff", "--exit-code", a, b)

	var exitErr *ExitError
	require.ErrorAs(t, res.err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, res.stdout, "+ annotation "+preview+"\n")
	assert.Contains(t, res.stdout, "+ field com/lib/Api.flag ["+preview+"]\n")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	res := execute(t, nil, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "annoscan dev")
}

func TestSetup_ObservabilityConfig(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "logging:\n  level: warn\n")

	var seen observability.Config

	capture := func(cfg observability.Config) (observability.Providers, error) {
		seen = cfg

		return noopObservabilityInit(cfg)
	}

	res := execute(t, capture, "--config", ws.config, "-v", "--log-json", "--diagnostics-addr", "127.0.0.1:0", "show", "-i", filepath.Join(ws.dir, "none.json"))
	require.Error(t, res.err)

	assert.Equal(t, slog.LevelDebug, seen.LogLevel)
	assert.True(t, seen.LogJSON)
	assert.Len(t, seen.MetricReaders, 1)

	res = execute(t, capture, "--config", ws.config, "show", "-i", filepath.Join(ws.dir, "none.json"))
	require.Error(t, res.err)
	assert.Equal(t, slog.LevelWarn, seen.LogLevel)
	assert.Empty(t, seen.MetricReaders)
}

func TestSetup_InvalidConfig(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "build:\n  workers: -1\n")

	res := execute(t, nil, "--config", ws.config, "show")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "validate config")
}

func TestExitError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exit status 3", (&ExitError{Code: ExitUsagesFound}).Error())
}
