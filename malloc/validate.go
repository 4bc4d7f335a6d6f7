package malloc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/noip2019/malloclab/memutils"
	"github.com/noip2019/malloclab/memutils/metadata"
	"golang.org/x/exp/slog"
)

var _ memutils.Validatable = &Allocator{}

// Validate performs a full consistency check of the heap. It walks every block from the
// prologue to the epilogue and then every free list, and returns an error describing the first
// problem it finds. When the allocator is functioning correctly and has not been misused, it is
// not possible for this method to return an error.
//
// Validate is expensive: it is linear in the number of blocks and allocates.
func (a *Allocator) Validate() error {
	v := a.view

	if v.Len() != a.arena.High()-a.arena.Low()+1 {
		return errors.Errorf("the heap covers %d bytes but the arena holds %d", v.Len(), a.arena.High()-a.arena.Low()+1)
	}

	prologue := metadata.Pack(memutils.DoubleWordSize, true)
	if v.Header(a.heapStart) != prologue || v.Footer(a.heapStart) != prologue {
		return errors.Errorf("the prologue block at offset %d has been overwritten: header %s, footer %s",
			a.heapStart, v.Header(a.heapStart), v.Word(a.heapStart))
	}

	physicalFree := swiss.NewMap[uint32, int](uint32(a.freeLists.Count() + 1))
	var allocCount, allocBytes, freeBytes int
	prevWasFree := false
	prevBlock := a.heapStart

	bp := a.heapStart + memutils.DoubleWordSize
	for {
		if bp < memutils.WordSize || bp > v.Len() {
			return errors.Errorf("block following offset %d lies outside the heap at offset %d", prevBlock, bp)
		}

		header := v.Header(bp)
		size := header.Size()

		if header.PrevFree() != prevWasFree {
			return errors.Errorf("block at offset %d records previous-free %t, but the block at offset %d is free: %t",
				bp, header.PrevFree(), prevBlock, prevWasFree)
		}

		if size == 0 {
			if !header.Allocated() {
				return errors.Errorf("the epilogue at offset %d is not marked allocated", bp)
			}
			if bp != v.Len() {
				return errors.Errorf("the epilogue is at offset %d, but the heap ends at offset %d", bp, v.Len())
			}
			break
		}

		if !memutils.IsAligned(bp, memutils.DoubleWordSize) {
			return errors.Errorf("block at offset %d is not %d-byte aligned", bp, memutils.DoubleWordSize)
		}
		if !memutils.IsAligned(size, memutils.DoubleWordSize) || size < metadata.MinBlockSize {
			return errors.Errorf("block at offset %d has invalid size %d", bp, size)
		}
		if bp+size > v.Len() {
			return errors.Errorf("block at offset %d with size %d extends past the end of the heap at %d", bp, size, v.Len())
		}

		if header.Allocated() {
			allocCount++
			allocBytes += size
		} else {
			if prevWasFree {
				return errors.Errorf("blocks at offsets %d and %d are both free and adjacent", prevBlock, bp)
			}

			footer := v.Footer(bp)
			if footer != header {
				return errors.Errorf("free block at offset %d has header %s but footer %s", bp, header, footer)
			}

			physicalFree.Put(uint32(bp), size)
			freeBytes += size
		}

		prevWasFree = !header.Allocated()
		prevBlock = bp
		bp += size
	}

	if allocCount != a.allocCount {
		return errors.Errorf("the allocation count of the allocator is %d, but the allocated blocks only added up to %d", a.allocCount, allocCount)
	}
	if allocBytes != a.allocBytes {
		return errors.Errorf("the allocated size of the allocator is %d, but the allocated blocks only added up to %d", a.allocBytes, allocBytes)
	}

	return a.validateFreeLists(physicalFree, freeBytes)
}

func (a *Allocator) validateFreeLists(physicalFree *swiss.Map[uint32, int], freeBytes int) error {
	v := a.view
	classes := a.freeLists.Classes()
	listed := swiss.NewMap[uint32, int](uint32(physicalFree.Count() + 1))

	for class := 0; class < a.freeLists.ClassCount(); class++ {
		newer := metadata.NoBlock

		err := a.freeLists.Walk(class, func(bp int) error {
			if otherClass, seen := listed.Get(uint32(bp)); seen {
				return errors.Errorf("block at offset %d appears in the free list for class %d more than once (first seen in class %d)", bp, class, otherClass)
			}
			listed.Put(uint32(bp), class)

			size, isFree := physicalFree.Get(uint32(bp))
			if !isFree {
				return errors.Errorf("block at offset %d is in the free list for class %d but is not a free block in the heap", bp, class)
			}
			if classes.ClassOf(size) != class {
				return errors.Errorf("block at offset %d with size %d is in the free list for class %d, but belongs in class %d", bp, size, class, classes.ClassOf(size))
			}
			if v.NextLink(bp) != newer {
				return errors.Errorf("block at offset %d lists the block at offset %d as its next block, but the reverse reference is broken", bp, v.NextLink(bp))
			}

			newer = uint32(bp)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if listed.Count() != physicalFree.Count() {
		return errors.Errorf("the number of free blocks in the heap and the number of blocks in the free lists do not match! free lists: %d, heap: %d", listed.Count(), physicalFree.Count())
	}
	if a.freeLists.Count() != physicalFree.Count() {
		return errors.Errorf("the free list count is %d, but there were %d free blocks", a.freeLists.Count(), physicalFree.Count())
	}
	if a.freeLists.FreeBytes() != freeBytes {
		return errors.Errorf("the free size of the free lists is %d, but the free blocks only added up to %d", a.freeLists.FreeBytes(), freeBytes)
	}

	return nil
}

// CheckHeap validates the heap and, if it is corrupt, logs the failure along with the calling
// line number and panics. Heap corruption is never recoverable.
func (a *Allocator) CheckHeap(lineno int) {
	err := a.Validate()
	if err == nil {
		return
	}

	a.logger.LogAttrs(context.Background(), slog.LevelError, "heap check failed",
		slog.Int("line", lineno),
		slog.Any("error", err),
	)
	panic(err)
}
