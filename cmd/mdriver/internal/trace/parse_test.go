package trace_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/cmd/mdriver/internal/trace"
	"github.com/stretchr/testify/require"
)

const shortTrace = `20000
3
6
1
a 0 512
a 1 128
r 0 640

f 1
a 2 0
f 0
`

func TestParse(t *testing.T) {
	parsed, err := trace.Parse(strings.NewReader(shortTrace))
	require.NoError(t, err)

	require.Equal(t, &trace.Trace{
		SuggestedHeapSize: 20000,
		IDCount:           3,
		Weight:            1,
		Ops: []trace.Op{
			{Kind: trace.OpAllocate, ID: 0, Size: 512},
			{Kind: trace.OpAllocate, ID: 1, Size: 128},
			{Kind: trace.OpReallocate, ID: 0, Size: 640},
			{Kind: trace.OpFree, ID: 1},
			{Kind: trace.OpAllocate, ID: 2, Size: 0},
			{Kind: trace.OpFree, ID: 0},
		},
	}, parsed)
}

func TestParseMalformed(t *testing.T) {
	testCases := map[string]string{
		"short header":   "100\n2\n",
		"op count":       "100\n2\n3\n1\na 0 8\nf 0\n",
		"unknown op":     "100\n2\n1\n1\nx 0 8\n",
		"id too large":   "100\n2\n1\n1\na 2 8\n",
		"missing size":   "100\n2\n1\n1\na 0\n",
		"extra argument": "100\n2\n1\n1\nf 0 8\n",
		"negative size":  "100\n2\n1\n1\na 0 -8\n",
		"bad header":     "100 200\n2\n1\n1\na 0 8\n",
		"huge op count":  "100\n1\n9223372036854775807\n1\na 0 8\n",
		"large op count": "100\n1\n10000000000\n1\na 0 8\n",
	}

	for name, contents := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := trace.Parse(strings.NewReader(contents))
			require.Error(t, err)
			require.True(t, errors.Is(err, trace.ErrMalformed))
		})
	}
}

func TestWriteParses(t *testing.T) {
	parsed, err := trace.Parse(strings.NewReader(shortTrace))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, trace.Write(&buf, parsed))
	require.Equal(t, "20000\n3\n6\n1\na 0 512\na 1 128\nr 0 640\nf 1\na 2 0\nf 0\n", buf.String())
}

func TestGenerate(t *testing.T) {
	generated, err := trace.Generate(trace.GenerateOptions{Ops: 500, MaxSize: 300, Seed: 7})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(generated.Ops), 499)
	require.LessOrEqual(t, len(generated.Ops), 500)

	again, err := trace.Generate(trace.GenerateOptions{Ops: 500, MaxSize: 300, Seed: 7})
	require.NoError(t, err)
	require.Equal(t, generated, again)

	live := map[int]bool{}
	for _, op := range generated.Ops {
		require.Less(t, op.ID, generated.IDCount)
		switch op.Kind {
		case trace.OpAllocate:
			require.False(t, live[op.ID])
			require.GreaterOrEqual(t, op.Size, 1)
			require.LessOrEqual(t, op.Size, 300)
			live[op.ID] = true
		case trace.OpReallocate:
			require.True(t, live[op.ID])
		case trace.OpFree:
			require.True(t, live[op.ID])
			delete(live, op.ID)
		}
	}
	require.Empty(t, live)

	var buf bytes.Buffer
	require.NoError(t, trace.Write(&buf, generated))
	reparsed, err := trace.Parse(&buf)
	require.NoError(t, err)
	require.Equal(t, generated.Ops, reparsed.Ops)
}

func TestGenerateInvalid(t *testing.T) {
	_, err := trace.Generate(trace.GenerateOptions{Ops: 10, MaxSize: 0})
	require.Error(t, err)

	_, err = trace.Generate(trace.GenerateOptions{Ops: -1, MaxSize: 10})
	require.Error(t, err)
}
