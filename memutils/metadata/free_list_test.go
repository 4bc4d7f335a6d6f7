package metadata_test

import (
	"testing"

	"github.com/noip2019/malloclab/memutils/metadata"
	"github.com/stretchr/testify/require"
)

func newTestFreeLists(t *testing.T, sizes ...int) (*metadata.View, *metadata.FreeLists, []int) {
	total := 8
	for _, size := range sizes {
		total += size
	}

	view := metadata.NewView(make([]byte, total))
	lists := metadata.NewFreeLists(view, metadata.DefaultSizeClasses())

	var blocks []int
	bp := 8
	for _, size := range sizes {
		view.SetBoundaryTags(bp, metadata.Pack(size, false))
		view.ClearLinks(bp)
		blocks = append(blocks, bp)
		bp += size
	}

	return view, lists, blocks
}

func walkClass(t *testing.T, lists *metadata.FreeLists, class int) []int {
	var visited []int
	err := lists.Walk(class, func(bp int) error {
		visited = append(visited, bp)
		return nil
	})
	require.NoError(t, err)
	return visited
}

func TestFreeListPushLIFO(t *testing.T) {
	view, lists, blocks := newTestFreeLists(t, 32, 32, 32)
	class := lists.Classes().ClassOf(32)

	for _, bp := range blocks {
		lists.Push(bp)
	}

	require.Equal(t, 3, lists.Count())
	require.Equal(t, 96, lists.FreeBytes())
	require.Equal(t, uint32(blocks[2]), lists.Top(class))
	require.Equal(t, []int{blocks[2], blocks[1], blocks[0]}, walkClass(t, lists, class))

	require.Equal(t, metadata.NoBlock, view.NextLink(blocks[2]))
	require.Equal(t, uint32(blocks[1]), view.PrevLink(blocks[2]))
	require.Equal(t, uint32(blocks[2]), view.NextLink(blocks[1]))
	require.Equal(t, uint32(blocks[0]), view.PrevLink(blocks[1]))
	require.Equal(t, uint32(blocks[1]), view.NextLink(blocks[0]))
	require.Equal(t, metadata.NoBlock, view.PrevLink(blocks[0]))
}

func TestFreeListRemoveTop(t *testing.T) {
	view, lists, blocks := newTestFreeLists(t, 32, 32, 32)
	class := lists.Classes().ClassOf(32)
	for _, bp := range blocks {
		lists.Push(bp)
	}

	lists.Remove(blocks[2])
	require.Equal(t, uint32(blocks[1]), lists.Top(class))
	require.Equal(t, metadata.NoBlock, view.NextLink(blocks[1]))
	require.Equal(t, []int{blocks[1], blocks[0]}, walkClass(t, lists, class))
	require.Equal(t, 2, lists.Count())
	require.Equal(t, 64, lists.FreeBytes())
}

func TestFreeListRemoveMiddle(t *testing.T) {
	view, lists, blocks := newTestFreeLists(t, 32, 32, 32)
	class := lists.Classes().ClassOf(32)
	for _, bp := range blocks {
		lists.Push(bp)
	}

	lists.Remove(blocks[1])
	require.Equal(t, []int{blocks[2], blocks[0]}, walkClass(t, lists, class))
	require.Equal(t, uint32(blocks[0]), view.PrevLink(blocks[2]))
	require.Equal(t, uint32(blocks[2]), view.NextLink(blocks[0]))
	require.Equal(t, metadata.NoBlock, view.PrevLink(blocks[1]))
	require.Equal(t, metadata.NoBlock, view.NextLink(blocks[1]))
}

func TestFreeListRemoveBottom(t *testing.T) {
	view, lists, blocks := newTestFreeLists(t, 32, 32, 32)
	class := lists.Classes().ClassOf(32)
	for _, bp := range blocks {
		lists.Push(bp)
	}

	lists.Remove(blocks[0])
	require.Equal(t, []int{blocks[2], blocks[1]}, walkClass(t, lists, class))
	require.Equal(t, metadata.NoBlock, view.PrevLink(blocks[1]))
}

func TestFreeListRemoveOnly(t *testing.T) {
	_, lists, blocks := newTestFreeLists(t, 48)
	class := lists.Classes().ClassOf(48)
	lists.Push(blocks[0])

	lists.Remove(blocks[0])
	require.Equal(t, metadata.NoBlock, lists.Top(class))
	require.Equal(t, 0, lists.Count())
	require.Equal(t, 0, lists.FreeBytes())
}

func TestFreeListRemoveAllocatedPanics(t *testing.T) {
	view, lists, blocks := newTestFreeLists(t, 32)
	lists.Push(blocks[0])
	view.SetHeader(blocks[0], metadata.Pack(32, true))

	require.Panics(t, func() {
		lists.Remove(blocks[0])
	})
}

func TestFreeListFindFit(t *testing.T) {
	_, lists, blocks := newTestFreeLists(t, 24, 160, 200, 1024)
	for _, bp := range blocks {
		lists.Push(bp)
	}

	require.Equal(t, uint32(blocks[0]), lists.FindFit(16))
	require.Equal(t, uint32(blocks[0]), lists.FindFit(24))
	require.Equal(t, uint32(blocks[2]), lists.FindFit(32))
	require.Equal(t, uint32(blocks[2]), lists.FindFit(168))
	require.Equal(t, uint32(blocks[3]), lists.FindFit(208))
	require.Equal(t, uint32(blocks[3]), lists.FindFit(1024))
	require.Equal(t, metadata.NoBlock, lists.FindFit(1032))
}

func TestFreeListFindFitSkipsSmallInBucket(t *testing.T) {
	_, lists, blocks := newTestFreeLists(t, 256, 136)
	for _, bp := range blocks {
		lists.Push(bp)
	}

	// Both blocks share the (128, 256] bucket, and the smaller one is on top
	require.Equal(t, uint32(blocks[1]), lists.FindFit(136))
	require.Equal(t, uint32(blocks[0]), lists.FindFit(144))
}

func TestFreeListClear(t *testing.T) {
	_, lists, blocks := newTestFreeLists(t, 32, 64)
	for _, bp := range blocks {
		lists.Push(bp)
	}

	lists.Clear()
	require.Equal(t, 0, lists.Count())
	require.Equal(t, 0, lists.FreeBytes())
	require.Equal(t, metadata.NoBlock, lists.FindFit(16))
}
