package metadata

import (
	"fmt"
)

// FreeLists is the segregated free list table. Each class holds a LIFO stack of free blocks
// threaded through the links stored in the blocks' own payloads. A class slot holds the payload
// offset of the stack top, or NoBlock when the class is empty.
//
// Within a stack, a block's prev link points at the entry pushed before it and its next link at
// the entry pushed after it, so the top always has no next link.
type FreeLists struct {
	view    *View
	classes SizeClasses
	tops    []uint32

	blocksFreeCount int
	blocksFreeSize  int
}

// NewFreeLists creates an empty table whose links are stored through view
func NewFreeLists(view *View, classes SizeClasses) *FreeLists {
	return &FreeLists{
		view:    view,
		classes: classes,
		tops:    make([]uint32, classes.Count()),
	}
}

// Classes returns the size class index the table is partitioned by
func (l *FreeLists) Classes() SizeClasses { return l.classes }

// ClassCount returns the number of class slots in the table
func (l *FreeLists) ClassCount() int { return len(l.tops) }

// Count returns the number of blocks currently in the table
func (l *FreeLists) Count() int { return l.blocksFreeCount }

// FreeBytes returns the total size of the blocks currently in the table
func (l *FreeLists) FreeBytes() int { return l.blocksFreeSize }

// Top returns the most recently pushed block of a class, or NoBlock
func (l *FreeLists) Top(class int) uint32 { return l.tops[class] }

// Push inserts the free block at bp on top of the stack for its size class
func (l *FreeLists) Push(bp int) {
	size := l.view.Size(bp)
	index := l.classes.ClassOf(size)
	top := l.tops[index]

	l.view.SetPrevLink(bp, top)
	l.view.SetNextLink(bp, NoBlock)
	if top != NoBlock {
		l.view.SetNextLink(int(top), uint32(bp))
	}
	l.tops[index] = uint32(bp)

	l.blocksFreeCount++
	l.blocksFreeSize += size
}

// Remove unlinks the block at bp from its class stack. The block's header size must still be
// the size it was pushed with.
func (l *FreeLists) Remove(bp int) {
	header := l.view.Header(bp)
	if header.Allocated() {
		panic(fmt.Sprintf("block at offset %d is not free", bp))
	}

	size := header.Size()
	index := l.classes.ClassOf(size)
	prev := l.view.PrevLink(bp)

	if l.tops[index] == uint32(bp) {
		l.tops[index] = prev
		if prev != NoBlock {
			l.view.SetNextLink(int(prev), NoBlock)
		}
	} else {
		next := l.view.NextLink(bp)
		if next == NoBlock {
			panic(fmt.Sprintf("block at offset %d was not in the free list at the expected location", bp))
		}

		l.view.SetPrevLink(int(next), prev)
		if prev != NoBlock {
			l.view.SetNextLink(int(prev), next)
		}
	}

	l.view.ClearLinks(bp)
	l.blocksFreeCount--
	l.blocksFreeSize -= size
}

// FindFit returns the first free block of at least size bytes, searching the size's own class
// and then every larger class. Each class is scanned from its most recently freed block down.
// It returns NoBlock when no block fits.
func (l *FreeLists) FindFit(size int) uint32 {
	for index := l.classes.ClassOf(size); index < len(l.tops); index++ {
		for bp := l.tops[index]; bp != NoBlock; bp = l.view.PrevLink(int(bp)) {
			if l.view.Size(int(bp)) >= size {
				return bp
			}
		}
	}

	return NoBlock
}

// Walk calls visit for every block of a class, from the top of the stack down, stopping at the
// first error. Walk does not protect against cycles; callers that need that must track visited
// blocks themselves.
func (l *FreeLists) Walk(class int, visit func(bp int) error) error {
	for bp := l.tops[class]; bp != NoBlock; bp = l.view.PrevLink(int(bp)) {
		err := visit(int(bp))
		if err != nil {
			return err
		}
	}

	return nil
}

// Clear empties every class without touching the blocks themselves
func (l *FreeLists) Clear() {
	for i := range l.tops {
		l.tops[i] = NoBlock
	}
	l.blocksFreeCount = 0
	l.blocksFreeSize = 0
}
