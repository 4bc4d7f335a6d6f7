//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package arena

import "github.com/cockroachdb/errors"

// Mapped is only available on platforms with mmap and mprotect
type Mapped struct {
	Heap
}

// NewMapped always fails on this platform
func NewMapped(maxSize int) (*Mapped, error) {
	return nil, errors.Wrap(ErrUnsupported, "memory mapped arenas need mmap")
}

func (m *Mapped) Close() error { return nil }
