package metadata

import "fmt"

// Word is a block header or footer. The block size occupies all but the low three bits, bit 0
// marks the block allocated, and bit 1 records that the physically preceding block is free.
// The previous-free bit only carries meaning in headers.
type Word uint32

const (
	allocatedBit Word = 1 << 0
	prevFreeBit  Word = 1 << 1
	flagMask     Word = 0x7
)

// Pack encodes a block size and allocation status into a Word. The size must be a multiple of 8
// that fits in 32 bits.
func Pack(size int, allocated bool) Word {
	w := Word(size) &^ flagMask
	if allocated {
		w |= allocatedBit
	}
	return w
}

// Size returns the block size encoded in the word
func (w Word) Size() int { return int(w &^ flagMask) }

// Allocated returns true if the word marks its block as allocated
func (w Word) Allocated() bool { return w&allocatedBit != 0 }

// PrevFree returns true if the word records that the previous block is free
func (w Word) PrevFree() bool { return w&prevFreeBit != 0 }

// WithPrevFree returns a copy of the word with the previous-free bit set to prevFree
func (w Word) WithPrevFree(prevFree bool) Word {
	if prevFree {
		return w | prevFreeBit
	}
	return w &^ prevFreeBit
}

func (w Word) String() string {
	return fmt.Sprintf("size=%d allocated=%t prevFree=%t", w.Size(), w.Allocated(), w.PrevFree())
}
