//go:build linux || darwin || freebsd || netbsd || openbsd

package arena

import (
	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/memutils"
	"golang.org/x/sys/unix"
)

// Mapped is an Arena backed by an anonymous memory mapping. The full address range is reserved
// inaccessible when the arena is created, and pages are made readable and writable as the break
// advances over them, so untouched capacity costs no memory.
type Mapped struct {
	reserved  []byte
	committed int
	brk       int
	pageSize  int
}

var _ Arena = &Mapped{}

// NewMapped reserves maxSize bytes (rounded up to whole pages) of address space
func NewMapped(maxSize int) (*Mapped, error) {
	if maxSize <= 0 {
		return nil, errors.Errorf("arena size must be positive, but was %d", maxSize)
	}

	pageSize := unix.Getpagesize()
	memutils.DebugCheckPow2(pageSize, "page size")
	size := memutils.AlignUp(maxSize, pageSize)

	reserved, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reserve %d bytes of address space", size)
	}

	return &Mapped{
		reserved: reserved,
		pageSize: pageSize,
	}, nil
}

func (m *Mapped) Grow(delta int) (int, error) {
	if m.reserved == nil {
		return -1, errors.New("arena has already been closed")
	}
	if delta < 0 {
		return -1, errors.Errorf("arena cannot shrink, but received a delta of %d", delta)
	}
	if delta > len(m.reserved)-m.brk {
		return -1, errors.Wrapf(ErrOutOfMemory, "growing by %d bytes would exceed the %d byte reservation (break at %d)", delta, len(m.reserved), m.brk)
	}

	newBrk := m.brk + delta
	if newBrk > m.committed {
		commit := memutils.AlignUp(newBrk, m.pageSize)
		err := unix.Mprotect(m.reserved[m.committed:commit], unix.PROT_READ|unix.PROT_WRITE)
		if err != nil {
			return -1, errors.Mark(errors.Wrapf(err, "failed to commit pages %d through %d", m.committed, commit), ErrOutOfMemory)
		}
		m.committed = commit
	}

	old := m.brk
	m.brk = newBrk
	return old, nil
}

func (m *Mapped) Low() int { return 0 }

func (m *Mapped) High() int { return m.brk - 1 }

func (m *Mapped) Bytes() []byte { return m.reserved[:m.brk] }

// Close releases the mapping. Slices previously returned by Bytes must not be used afterward.
func (m *Mapped) Close() error {
	if m.reserved == nil {
		return nil
	}

	err := unix.Munmap(m.reserved)
	if err != nil {
		return errors.Wrap(err, "failed to unmap arena")
	}

	m.reserved = nil
	m.committed = 0
	m.brk = 0
	return nil
}
