package malloc

import (
	"fmt"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/arena"
	"github.com/noip2019/malloclab/memutils"
	"github.com/noip2019/malloclab/memutils/metadata"
	"golang.org/x/exp/slog"
)

// Ptr is the arena offset of an allocation's payload
type Ptr uint32

// Null is the Ptr returned when nothing was allocated
const Null Ptr = 0

const (
	// maxBlockSize is the largest block size accepted. Header words could encode more, but
	// keeping sizes below 2 GiB keeps the arithmetic safe on 32-bit platforms.
	maxBlockSize int = math.MaxInt32 &^ 7
	// maxArenaSize keeps every offset representable in a 4-byte free list link
	maxArenaSize int = math.MaxInt32 &^ 7
)

// Allocator is a segregated-fit heap allocator over a single growable arena. Blocks carry a
// one-word header; free blocks also carry a footer and are kept in per-size-class LIFO free
// lists, and adjacent free blocks are always merged.
//
// Allocator is not safe for concurrent use. Callers that share one between goroutines must
// serialize every call, for instance with Locked.
type Allocator struct {
	logger      *slog.Logger
	createFlags CreateFlags

	arena     arena.Arena
	ownsArena bool
	view      *metadata.View
	freeLists *metadata.FreeLists

	chunkSize int
	heapStart int

	allocCount int
	allocBytes int
}

// Allocate reserves a block with at least size usable bytes and returns its payload offset.
// The payload is 8-byte aligned. Allocate(0) returns Null and a nil error. If the arena cannot
// grow to satisfy the request, Allocate returns Null and an error for which
// errors.Is(err, arena.ErrOutOfMemory) is true, and the heap is unchanged.
func (a *Allocator) Allocate(size int) (Ptr, error) {
	a.logger.Debug("Allocator::Allocate", slog.Int("size", size))

	if size < 0 {
		return Null, errors.Wrapf(memutils.ErrInvalidSize, "requested %d bytes", size)
	}
	if size == 0 {
		return Null, nil
	}

	bp, err := a.allocate(size)
	a.validateAfterOp()
	return bp, err
}

// Release returns an allocation to the heap. Releasing Null does nothing. Releasing anything
// other than a live allocation from this allocator panics or corrupts the heap.
func (a *Allocator) Release(p Ptr) {
	a.logger.Debug("Allocator::Release", slog.Int("ptr", int(p)))

	if p == Null {
		return
	}

	a.release(p)
	a.validateAfterOp()
}

// Reallocate moves an allocation to a block with at least size usable bytes, preserving the
// first min(size, UsableSize(p)) bytes of its contents. Reallocate(p, 0) releases p and returns
// Null; Reallocate(Null, size) is Allocate(size). The contents are always copied to a new block.
//
// If the new block cannot be allocated, Reallocate returns Null and an error, and p is left
// completely untouched and still live.
func (a *Allocator) Reallocate(p Ptr, size int) (Ptr, error) {
	a.logger.Debug("Allocator::Reallocate", slog.Int("ptr", int(p)), slog.Int("size", size))

	if size < 0 {
		return Null, errors.Wrapf(memutils.ErrInvalidSize, "requested %d bytes", size)
	}
	if size == 0 {
		a.Release(p)
		return Null, nil
	}
	if p == Null {
		return a.Allocate(size)
	}

	newPtr, err := a.allocate(size)
	if err != nil {
		return Null, err
	}

	copySize := a.view.UsableSize(int(p))
	if size < copySize {
		copySize = size
	}
	copy(a.view.Payload(int(newPtr))[:copySize], a.view.Payload(int(p))[:copySize])

	a.release(p)
	a.validateAfterOp()
	return newPtr, nil
}

// AllocateZeroed allocates count*size bytes and zeroes the whole usable region. Overflow of
// count*size is the caller's responsibility.
func (a *Allocator) AllocateZeroed(count, size int) (Ptr, error) {
	a.logger.Debug("Allocator::AllocateZeroed", slog.Int("count", count), slog.Int("size", size))

	if count < 0 || size < 0 {
		return Null, errors.Wrapf(memutils.ErrInvalidSize, "requested %d elements of %d bytes", count, size)
	}

	p, err := a.Allocate(count * size)
	if p == Null {
		return Null, err
	}

	payload := a.view.Payload(int(p))
	for i := range payload {
		payload[i] = 0
	}

	return p, nil
}

// Payload returns the usable region of the allocation at p, or nil for Null. The slice aliases
// arena memory and is only valid until p is released.
func (a *Allocator) Payload(p Ptr) []byte {
	if p == Null {
		return nil
	}

	return a.view.Payload(int(p))
}

// UsableSize returns the number of bytes the allocation at p can hold, which may exceed the
// size that was requested
func (a *Allocator) UsableSize(p Ptr) int {
	if p == Null {
		return 0
	}

	return a.view.UsableSize(int(p))
}

// InHeap returns true if p lies within the arena
func (a *Allocator) InHeap(p Ptr) bool {
	return int(p) >= a.arena.Low() && int(p) <= a.arena.High()
}

// Aligned returns true if p is aligned for any payload
func (a *Allocator) Aligned(p Ptr) bool {
	return memutils.IsAligned(int(p), memutils.DoubleWordSize)
}

// HeapSize returns the current size of the arena in bytes
func (a *Allocator) HeapSize() int {
	return a.view.Len()
}

// Close releases the arena if the allocator created it and it implements io.Closer. Every
// payload slice becomes invalid. An arena passed in through CreateOptions.Arena is left open
// for its owner to close.
func (a *Allocator) Close() error {
	if !a.ownsArena {
		return nil
	}

	closer, isCloser := a.arena.(io.Closer)
	if !isCloser {
		return nil
	}

	err := closer.Close()
	if err != nil {
		return errors.Wrap(err, "failed to close the arena")
	}
	return nil
}

func (a *Allocator) allocate(size int) (Ptr, error) {
	if size > maxBlockSize-metadata.HeaderOverhead {
		return Null, errors.Wrapf(arena.ErrOutOfMemory, "%d bytes cannot be described by a block header", size)
	}

	asize := a.adjustedSize(size)

	bp := a.freeLists.FindFit(asize)
	if bp != metadata.NoBlock {
		a.place(int(bp), asize)
		return Ptr(bp), nil
	}

	extendSize := asize
	if a.chunkSize > extendSize {
		extendSize = a.chunkSize
	}

	newBlock, err := a.extend(extendSize / memutils.WordSize)
	if err != nil {
		return Null, errors.Wrapf(err, "could not allocate %d bytes", size)
	}

	a.place(newBlock, asize)
	return Ptr(newBlock), nil
}

// adjustedSize returns the block size needed to hold size payload bytes and the header
func (a *Allocator) adjustedSize(size int) int {
	asize := memutils.AlignUp(size+metadata.HeaderOverhead, memutils.DoubleWordSize)
	if asize < metadata.MinBlockSize {
		return metadata.MinBlockSize
	}
	return asize
}

func (a *Allocator) release(p Ptr) {
	bp := int(p)
	header := a.view.Header(bp)
	if !header.Allocated() {
		panic(fmt.Sprintf("released block at offset %d is not allocated", bp))
	}

	size := header.Size()
	a.view.SetBoundaryTags(bp, metadata.Pack(size, false).WithPrevFree(header.PrevFree()))
	a.view.ClearLinks(bp)

	a.allocCount--
	a.allocBytes -= size

	a.coalesce(bp)
}

func (a *Allocator) validateAfterOp() {
	if a.createFlags&AllocatorCreateValidateEveryOp != 0 {
		memutils.MustValidate(a)
		return
	}

	memutils.DebugValidate(a)
}
