package malloc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestDebugLogAllBlocks(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{})

	p, err := allocator.Allocate(100)
	require.NoError(t, err)
	_, err = allocator.Allocate(100)
	require.NoError(t, err)
	allocator.Release(p)

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	allocator.DebugLogAllBlocks(logger)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	require.Contains(t, lines[0], `msg="heap block" offset=16 size=104 allocated=false prevFree=false prevLink=0 nextLink=0`)
	require.Contains(t, lines[1], "allocated=true prevFree=true")
	require.Contains(t, lines[3], `msg="free list" class=103 top=16 blocks=1`)
}

func TestVisitAllBlocksStops(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{})

	for i := 0; i < 4; i++ {
		_, err := allocator.Allocate(32)
		require.NoError(t, err)
	}

	stop := errors.New("stop")
	visited := 0
	err := allocator.VisitAllBlocks(func(block BlockInfo) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	})
	require.Equal(t, stop, err)
	require.Equal(t, 2, visited)
}
