// Package arena provides the memory that a heap allocator carves blocks from. An Arena is a
// single contiguous byte range that only ever grows at its high end, in the manner of sbrk.
// Its backing memory is reserved up front and never moves, so slices into it stay valid for
// the arena's whole lifetime.
package arena

//go:generate mockgen -source=arena.go -destination=mocks/mock_arena.go -package=mocks

// Arena is the growth primitive consumed by the allocator. Offsets are relative to the start of
// the arena.
type Arena interface {
	// Grow extends the arena by delta bytes and returns the offset of the old break, which is
	// where the new region begins. If the arena cannot grow, it returns an error for which
	// errors.Is(err, ErrOutOfMemory) is true and the arena is left exactly as it was. On success
	// the returned offset is always the previous High()+1.
	Grow(delta int) (int, error)
	// Low returns the offset of the first byte of the arena
	Low() int
	// High returns the offset of the last byte of the arena, or Low()-1 when it is empty
	High() int
	// Bytes returns the whole arena, from Low() through High()
	Bytes() []byte
}
