package malloc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/arena"
	"github.com/noip2019/malloclab/memutils"
	"github.com/noip2019/malloclab/memutils/metadata"
	"golang.org/x/exp/slog"
)

// extend grows the heap by the given number of words, rounded up to keep alignment, and
// returns the payload offset of the resulting free block after it has been merged with a free
// block at the old end of the heap. The old epilogue header becomes the new block's header and
// a new epilogue is written at the end. If the arena cannot grow, the heap is unchanged.
func (a *Allocator) extend(words int) (int, error) {
	if words%2 != 0 {
		words++
	}
	size := words * memutils.WordSize
	if size < metadata.MinBlockSize {
		size = metadata.MinBlockSize
	}

	oldEnd := a.view.Len()
	if a.arena.High()+1 != oldEnd {
		return 0, errors.Errorf("the arena ends at offset %d, but the heap ended at offset %d", a.arena.High()+1, oldEnd)
	}
	if oldEnd+size > maxArenaSize {
		return 0, errors.Wrapf(arena.ErrOutOfMemory, "the heap cannot grow past %d bytes", maxArenaSize)
	}

	bp, err := a.arena.Grow(size)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to extend the heap by %d bytes", size)
	}
	if bp != oldEnd {
		return 0, errors.Errorf("the arena grew at offset %d, but the heap ended at offset %d", bp, oldEnd)
	}
	a.view.Reset(a.arena.Bytes())

	prevFree := a.view.Header(bp).PrevFree()
	a.view.SetBoundaryTags(bp, metadata.Pack(size, false).WithPrevFree(prevFree))
	a.view.SetHeader(bp+size, metadata.Pack(0, true).WithPrevFree(true))

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "extended heap",
		slog.Int("bytes", size),
		slog.Int("heapSize", a.view.Len()),
	)

	return a.coalesce(bp), nil
}
