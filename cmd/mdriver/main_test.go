package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(append([]string{"mdriver"}, args...))
	return out.String(), err
}

func TestGenThenRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "random.rep")

	_, err := runApp(t, "gen", "--ops", "400", "--max-size", "512", "--seed", "3", "--output", path)
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, contents)

	out, err := runApp(t, "run", "--check", "--verbosity", "error", path)
	require.NoError(t, err)
	require.Contains(t, out, "random.rep")

	out, err = runApp(t, "run", "--json", "--dump", "--verbosity", "error", path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "["))
	require.Contains(t, out, `"Heap":{`)
}

func TestGenToWriter(t *testing.T) {
	out, err := runApp(t, "gen", "--ops", "10", "--seed", "5")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4+9)
}

func TestRunWithoutTraces(t *testing.T) {
	_, err := runApp(t, "run", "--verbosity", "error")
	require.ErrorContains(t, err, "no traces")
}

func TestRunBadVerbosity(t *testing.T) {
	_, err := runApp(t, "run", "--verbosity", "loud", "x.rep")
	require.ErrorContains(t, err, "invalid verbosity")
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "tiny.rep")
	require.NoError(t, os.WriteFile(tracePath, []byte("100\n1\n2\n1\na 0 64\nf 0\n"), 0o644))

	configPath := filepath.Join(dir, "mdriver.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
trace_dir = "`+dir+`"
traces = ["tiny.rep"]

[allocator]
chunk_size = 256
`), 0o644))

	out, err := runApp(t, "run", "--config", configPath, "--verbosity", "error")
	require.NoError(t, err)
	require.Contains(t, out, "tiny.rep")
}
