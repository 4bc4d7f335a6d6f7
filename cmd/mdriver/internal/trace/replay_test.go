package trace_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/noip2019/malloclab/arena"
	"github.com/noip2019/malloclab/cmd/mdriver/internal/trace"
	"github.com/noip2019/malloclab/malloc"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func quietOptions() trace.ReplayOptions {
	return trace.ReplayOptions{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Check:  true,
	}
}

func TestReplayShortTrace(t *testing.T) {
	parsed, err := trace.Parse(strings.NewReader(shortTrace))
	require.NoError(t, err)
	parsed.Name = "short"

	options := quietOptions()
	options.Dump = true

	result, err := trace.Replay(parsed, options)
	require.NoError(t, err)
	require.Equal(t, "short", result.Name)
	require.Equal(t, 6, result.Ops)
	require.Equal(t, 768, result.PeakBytes)
	require.Equal(t, 16+malloc.DefaultChunkSize, result.HeapSize)
	require.InDelta(t, 768.0/4112.0, result.Utilization(), 1e-9)
	require.Contains(t, result.Dump, `"AllocationCount":0`)
}

func TestReplayGenerated(t *testing.T) {
	generated, err := trace.Generate(trace.GenerateOptions{Ops: 3000, MaxSize: 2048, Seed: 42})
	require.NoError(t, err)

	result, err := trace.Replay(generated, quietOptions())
	require.NoError(t, err)
	require.Equal(t, len(generated.Ops), result.Ops)
	require.Greater(t, result.PeakBytes, 0)
	require.LessOrEqual(t, result.PeakBytes, result.HeapSize)
}

func TestReplayInconsistentTrace(t *testing.T) {
	parsed, err := trace.Parse(strings.NewReader("100\n2\n1\n1\nf 1\n"))
	require.NoError(t, err)

	_, err = trace.Replay(parsed, quietOptions())
	require.True(t, errors.Is(err, trace.ErrMalformed))

	parsed, err = trace.Parse(strings.NewReader("100\n2\n2\n1\na 1 8\na 1 8\n"))
	require.NoError(t, err)

	_, err = trace.Replay(parsed, quietOptions())
	require.True(t, errors.Is(err, trace.ErrMalformed))
}

func TestReplayOutOfMemory(t *testing.T) {
	parsed, err := trace.Parse(strings.NewReader("100\n1\n1\n1\na 0 100000\n"))
	require.NoError(t, err)

	options := quietOptions()
	options.Allocator.ArenaSize = 1 << 16

	_, err = trace.Replay(parsed, options)
	require.True(t, errors.Is(err, arena.ErrOutOfMemory))
	require.False(t, errors.Is(err, trace.ErrIncorrect))
}

func TestReportWriters(t *testing.T) {
	parsed, err := trace.Parse(strings.NewReader(shortTrace))
	require.NoError(t, err)
	parsed.Name = "short"

	result, err := trace.Replay(parsed, quietOptions())
	require.NoError(t, err)

	var table bytes.Buffer
	trace.WriteTable(&table, []trace.Result{result})
	require.Contains(t, table.String(), "short")
	require.Contains(t, strings.ToUpper(table.String()), "TOTAL")

	var out bytes.Buffer
	require.NoError(t, trace.WriteJSON(&out, []trace.Result{result}))

	reader := jreader.NewReader(out.Bytes())
	var names []string
	for arr := reader.Array(); arr.Next(); {
		for obj := reader.Object(); obj.Next(); {
			switch string(obj.Name()) {
			case "Trace":
				names = append(names, reader.String())
			case "HeapBytes":
				require.Equal(t, result.HeapSize, reader.Int())
			default:
				reader.SkipValue()
			}
		}
	}
	require.NoError(t, reader.Error())
	require.Equal(t, []string{"short"}, names)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mdriver.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
trace_dir = "traces"
traces = ["a.rep", "/abs/b.rep"]
check = true

[allocator]
chunk_size = 8192
exact_class_shift = 6
mapped = true
`), 0o644))

	config, err := trace.LoadConfig(path)
	require.NoError(t, err)
	require.True(t, config.Check)
	require.Equal(t, []string{filepath.Join("traces", "a.rep"), "/abs/b.rep"}, config.TracePaths())

	options := config.Allocator.CreateOptions()
	require.Equal(t, 8192, options.ChunkSize)
	require.Equal(t, 6, options.ExactClassShift)
	require.Equal(t, malloc.AllocatorCreateMappedArena, options.Flags)

	require.NoError(t, os.WriteFile(path, []byte("chunk = 1\n"), 0o644))
	_, err = trace.LoadConfig(path)
	require.ErrorContains(t, err, "unknown key")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.rep")
	require.NoError(t, os.WriteFile(path, []byte(shortTrace), 0o644))

	parsed, err := trace.ParseFile(path)
	require.NoError(t, err)
	require.Equal(t, "short.rep", parsed.Name)
	require.Len(t, parsed.Ops, 6)

	_, err = trace.ParseFile(filepath.Join(t.TempDir(), "missing.rep"))
	require.Error(t, err)
}

func TestWriteTableWeightsUtilization(t *testing.T) {
	results := []trace.Result{
		{Name: "light", Weight: 1, Ops: 10, PeakBytes: 100, HeapSize: 200},
		{Name: "heavy", Weight: 3, Ops: 10, PeakBytes: 100, HeapSize: 1000},
	}

	var table bytes.Buffer
	trace.WriteTable(&table, results)
	require.Contains(t, table.String(), "50.0%")
	require.Contains(t, table.String(), "10.0%")
	require.Contains(t, table.String(), "20.0%")
	require.NotContains(t, table.String(), "30.0%")
}

func TestReplayCarriesWeight(t *testing.T) {
	parsed, err := trace.Parse(strings.NewReader("100\n1\n2\n4\na 0 8\nf 0\n"))
	require.NoError(t, err)

	result, err := trace.Replay(parsed, quietOptions())
	require.NoError(t, err)
	require.Equal(t, 4, result.Weight)
}
