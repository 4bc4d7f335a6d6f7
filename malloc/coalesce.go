package malloc

import (
	"github.com/noip2019/malloclab/memutils/metadata"
)

// coalesce merges the free block at bp with any free physical neighbors, pushes the result onto
// the free list for its size, and marks the following block's previous-free bit. It returns the
// payload offset of the merged block, which is the previous neighbor's when that one was free.
//
// The block at bp must have valid boundary tags and must not be in a free list.
func (a *Allocator) coalesce(bp int) int {
	header := a.view.Header(bp)
	size := header.Size()
	prevFree := header.PrevFree()
	next := bp + size
	nextFree := !a.view.Header(next).Allocated()

	switch {
	case !prevFree && !nextFree:
		// Nothing to merge

	case !prevFree && nextFree:
		a.freeLists.Remove(next)
		size += a.view.Size(next)
		a.view.SetBoundaryTags(bp, metadata.Pack(size, false))

	case prevFree && !nextFree:
		prev := a.view.Prev(bp)
		a.freeLists.Remove(prev)
		size += a.view.Size(prev)
		bp = prev
		a.view.SetBoundaryTags(bp, metadata.Pack(size, false))

	default:
		prev := a.view.Prev(bp)
		a.freeLists.Remove(prev)
		a.freeLists.Remove(next)
		size += a.view.Size(prev) + a.view.Size(next)
		bp = prev
		a.view.SetBoundaryTags(bp, metadata.Pack(size, false))
	}

	a.view.SetPrevFree(bp+size, true)
	a.freeLists.Push(bp)
	return bp
}
