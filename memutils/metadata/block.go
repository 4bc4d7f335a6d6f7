package metadata

import (
	"encoding/binary"

	"github.com/noip2019/malloclab/memutils"
)

const (
	// MinBlockSize is the smallest block that can hold a header, two free list links and a footer
	MinBlockSize int = 2 * memutils.DoubleWordSize
	// HeaderOverhead is the number of bytes an allocated block spends on metadata
	HeaderOverhead int = memutils.WordSize

	linkSize = 4
)

// NoBlock is the link value used for "no block". Payload offsets of real blocks are never 0.
const NoBlock uint32 = 0

// View provides access to the block metadata stored inside an arena. Blocks are addressed by
// the arena-relative offset of their payload (bp). The header word sits immediately before the
// payload; free blocks additionally carry two links at the start of the payload and a footer
// word in their final four bytes.
//
// All byte arithmetic on block metadata lives here.
type View struct {
	mem []byte
}

// NewView creates a View over mem
func NewView(mem []byte) *View {
	return &View{mem: mem}
}

// Reset points the view at new arena memory, usually after the arena has grown
func (v *View) Reset(mem []byte) {
	v.mem = mem
}

// Len returns the number of arena bytes visible through the view
func (v *View) Len() int { return len(v.mem) }

// Bytes returns the arena memory backing the view
func (v *View) Bytes() []byte { return v.mem }

// Word reads the metadata word at an arbitrary arena offset
func (v *View) Word(offset int) Word {
	return Word(binary.LittleEndian.Uint32(v.mem[offset : offset+memutils.WordSize]))
}

// SetWord writes a metadata word at an arbitrary arena offset
func (v *View) SetWord(offset int, w Word) {
	binary.LittleEndian.PutUint32(v.mem[offset:offset+memutils.WordSize], uint32(w))
}

// HeaderOffset returns the arena offset of the header of the block at bp
func HeaderOffset(bp int) int { return bp - memutils.WordSize }

// Header reads the header of the block at bp
func (v *View) Header(bp int) Word { return v.Word(HeaderOffset(bp)) }

// SetHeader writes the header of the block at bp
func (v *View) SetHeader(bp int, w Word) { v.SetWord(HeaderOffset(bp), w) }

// Size returns the size of the block at bp, as recorded in its header
func (v *View) Size(bp int) int { return v.Header(bp).Size() }

// FooterOffset returns the arena offset of the footer of the block at bp
func (v *View) FooterOffset(bp int) int {
	return bp + v.Size(bp) - memutils.DoubleWordSize
}

// Footer reads the footer of the block at bp. Only free blocks (and the prologue) have a footer.
func (v *View) Footer(bp int) Word { return v.Word(v.FooterOffset(bp)) }

// SetFooter writes the footer of the block at bp, using the size in its header to find it
func (v *View) SetFooter(bp int, w Word) { v.SetWord(v.FooterOffset(bp), w) }

// SetBoundaryTags writes w as both header and footer of the block at bp. The header is written
// first so the footer lands where w's size says it should.
func (v *View) SetBoundaryTags(bp int, w Word) {
	v.SetHeader(bp, w)
	v.SetFooter(bp, w)
}

// SetPrevFree updates only the previous-free bit in the header of the block at bp
func (v *View) SetPrevFree(bp int, prevFree bool) {
	v.SetHeader(bp, v.Header(bp).WithPrevFree(prevFree))
}

// Next returns the payload offset of the block physically following bp
func (v *View) Next(bp int) int { return bp + v.Size(bp) }

// Prev returns the payload offset of the block physically preceding bp. It reads the preceding
// block's footer and is only meaningful when that block is free (or is the prologue).
func (v *View) Prev(bp int) int {
	return bp - v.Word(bp-memutils.DoubleWordSize).Size()
}

// PrevLink returns the free list link toward older entries of the block at bp
func (v *View) PrevLink(bp int) uint32 {
	return binary.LittleEndian.Uint32(v.mem[bp : bp+linkSize])
}

// SetPrevLink writes the free list link toward older entries of the block at bp
func (v *View) SetPrevLink(bp int, link uint32) {
	binary.LittleEndian.PutUint32(v.mem[bp:bp+linkSize], link)
}

// NextLink returns the free list link toward newer entries of the block at bp
func (v *View) NextLink(bp int) uint32 {
	return binary.LittleEndian.Uint32(v.mem[bp+linkSize : bp+2*linkSize])
}

// SetNextLink writes the free list link toward newer entries of the block at bp
func (v *View) SetNextLink(bp int, link uint32) {
	binary.LittleEndian.PutUint32(v.mem[bp+linkSize:bp+2*linkSize], link)
}

// ClearLinks resets both free list links of the block at bp
func (v *View) ClearLinks(bp int) {
	v.SetPrevLink(bp, NoBlock)
	v.SetNextLink(bp, NoBlock)
}

// UsableSize returns the number of payload bytes an allocated block at bp can hold
func (v *View) UsableSize(bp int) int {
	return v.Size(bp) - HeaderOverhead
}

// Payload returns the usable region of the allocated block at bp. The slice is capped so that
// appending to it cannot reach the next block's header.
func (v *View) Payload(bp int) []byte {
	end := bp + v.UsableSize(bp)
	return v.mem[bp:end:end]
}
