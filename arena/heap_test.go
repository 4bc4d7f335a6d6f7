package arena_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/arena"
	"github.com/stretchr/testify/require"
)

func TestHeapGrow(t *testing.T) {
	heap, err := arena.NewHeap(64)
	require.NoError(t, err)
	require.Equal(t, 64, heap.MaxSize())
	require.Equal(t, 0, heap.Low())
	require.Equal(t, -1, heap.High())
	require.Len(t, heap.Bytes(), 0)

	old, err := heap.Grow(16)
	require.NoError(t, err)
	require.Equal(t, 0, old)
	require.Equal(t, 15, heap.High())
	require.Len(t, heap.Bytes(), 16)

	heap.Bytes()[3] = 0xab

	old, err = heap.Grow(48)
	require.NoError(t, err)
	require.Equal(t, 16, old)
	require.Equal(t, 63, heap.High())
	require.Equal(t, byte(0xab), heap.Bytes()[3])

	old, err = heap.Grow(0)
	require.NoError(t, err)
	require.Equal(t, 64, old)
}

func TestHeapOutOfMemory(t *testing.T) {
	heap, err := arena.NewHeap(32)
	require.NoError(t, err)

	_, err = heap.Grow(24)
	require.NoError(t, err)

	_, err = heap.Grow(16)
	require.Error(t, err)
	require.True(t, errors.Is(err, arena.ErrOutOfMemory))
	require.Equal(t, 23, heap.High())
}

func TestHeapInvalid(t *testing.T) {
	_, err := arena.NewHeap(0)
	require.Error(t, err)

	heap, err := arena.NewHeap(32)
	require.NoError(t, err)

	_, err = heap.Grow(-8)
	require.Error(t, err)
	require.False(t, errors.Is(err, arena.ErrOutOfMemory))
}
