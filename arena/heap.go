package arena

import (
	"github.com/cockroachdb/errors"
)

// DefaultMaxSize is the default limit for arenas created without an explicit size: 20 MiB
const DefaultMaxSize int = 20 * (1 << 20)

// Heap is an Arena backed by a Go byte slice whose full capacity is allocated when the Heap is
// created. Growth only moves the break within that capacity.
type Heap struct {
	mem []byte
	brk int
}

var _ Arena = &Heap{}

// NewHeap creates a Heap that can grow to at most maxSize bytes
func NewHeap(maxSize int) (*Heap, error) {
	if maxSize <= 0 {
		return nil, errors.Errorf("arena size must be positive, but was %d", maxSize)
	}

	return &Heap{
		mem: make([]byte, 0, maxSize),
	}, nil
}

func (h *Heap) Grow(delta int) (int, error) {
	if delta < 0 {
		return -1, errors.Errorf("arena cannot shrink, but received a delta of %d", delta)
	}
	if delta > cap(h.mem)-h.brk {
		return -1, errors.Wrapf(ErrOutOfMemory, "growing by %d bytes would exceed the %d byte limit (break at %d)", delta, cap(h.mem), h.brk)
	}

	old := h.brk
	h.brk += delta
	h.mem = h.mem[:h.brk]
	return old, nil
}

func (h *Heap) Low() int { return 0 }

func (h *Heap) High() int { return h.brk - 1 }

func (h *Heap) Bytes() []byte { return h.mem }

// MaxSize returns the number of bytes the heap can grow to
func (h *Heap) MaxSize() int { return cap(h.mem) }
