package malloc

import (
	"github.com/noip2019/malloclab/memutils/metadata"
)

// place allocates asize bytes at the start of the free block at bp. When the remainder can
// stand alone as a block it is split off and returned to the free lists; otherwise the whole
// block is allocated.
func (a *Allocator) place(bp int, asize int) {
	csize := a.view.Size(bp)
	a.freeLists.Remove(bp)

	if csize-asize >= metadata.MinBlockSize {
		a.view.SetHeader(bp, metadata.Pack(asize, true))

		remainder := bp + asize
		a.view.SetBoundaryTags(remainder, metadata.Pack(csize-asize, false))
		a.coalesce(remainder)

		a.allocCount++
		a.allocBytes += asize
		return
	}

	a.view.SetHeader(bp, metadata.Pack(csize, true))
	a.view.SetPrevFree(bp+csize, false)

	a.allocCount++
	a.allocBytes += csize
}
