package malloc

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/arena"
	"github.com/noip2019/malloclab/memutils"
	"github.com/noip2019/malloclab/memutils/metadata"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// AllocatorCreateMappedArena backs the allocator with an arena.Mapped instead of an
	// arena.Heap when CreateOptions.Arena is not provided. Address space for the whole arena is
	// reserved immediately, but pages are only committed as the heap grows.
	AllocatorCreateMappedArena CreateFlags = 1 << iota
	// AllocatorCreateValidateEveryOp runs the full heap validator after every public operation
	// and panics if it fails, even when the package was not built with the debug_mem_utils tag.
	// This is very slow.
	AllocatorCreateValidateEveryOp
	// AllocatorCreateExternallySynchronized tells NewLocked that the caller already serializes
	// access, so the returned wrapper does not take its lock
	AllocatorCreateExternallySynchronized
)

var allocatorCreateFlagsMapping = map[CreateFlags]string{
	AllocatorCreateMappedArena:            "AllocatorCreateMappedArena",
	AllocatorCreateValidateEveryOp:        "AllocatorCreateValidateEveryOp",
	AllocatorCreateExternallySynchronized: "AllocatorCreateExternallySynchronized",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := CreateFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}

		name, ok := allocatorCreateFlagsMapping[bit]
		if !ok {
			name = "Unknown"
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

const (
	// DefaultChunkSize is the minimum number of bytes the heap grows by when no free block fits
	DefaultChunkSize int = 1 << 12
)

// CreateOptions contains optional settings when creating an allocator. It is valid to leave all
// fields blank.
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags

	// Arena is the memory the allocator manages. It must be empty. If it is nil, a new arena
	// of ArenaSize bytes is created and owned by the allocator.
	Arena arena.Arena
	// ArenaSize is the maximum size in bytes of the arena created when Arena is nil. Defaults
	// to arena.DefaultMaxSize.
	ArenaSize int

	// ChunkSize is the minimum number of bytes to grow the heap by when no free block fits a
	// request. It must be a power of two. Defaults to DefaultChunkSize.
	ChunkSize int
	// ExactClassShift is K in the size class index: each block size up to 2^K has its own free
	// list. Defaults to metadata.DefaultExactClassShift.
	ExactClassShift int
	// BucketCount is the number of power-of-two free lists for sizes above 2^K. Defaults to
	// metadata.DefaultBucketCount.
	BucketCount int
}

// New creates a new Allocator and lays out the initial heap: alignment padding, the prologue
// block, the epilogue header, and one chunk of free space.
//
// logger - Receives debug output. It may be nil.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Allocator, error) {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	logger.Debug("Allocator::New", slog.String("flags", options.Flags.String()), slog.Bool("debugValidation", memutils.DebugEnabled))

	chunkSize := options.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	err := memutils.CheckPow2(chunkSize, "CreateOptions.ChunkSize")
	if err != nil {
		return nil, err
	}
	if chunkSize < metadata.MinBlockSize {
		return nil, errors.Errorf("CreateOptions.ChunkSize must be at least %d, but was %d", metadata.MinBlockSize, chunkSize)
	}

	exactClassShift := options.ExactClassShift
	if exactClassShift == 0 {
		exactClassShift = metadata.DefaultExactClassShift
	}
	bucketCount := options.BucketCount
	if bucketCount == 0 {
		bucketCount = metadata.DefaultBucketCount
	}
	classes, err := metadata.NewSizeClasses(exactClassShift, bucketCount)
	if err != nil {
		return nil, errors.Wrap(err, "invalid size class options")
	}

	heapArena := options.Arena
	ownsArena := false
	if heapArena == nil {
		heapArena, err = createArena(options)
		if err != nil {
			return nil, err
		}
		ownsArena = true
	}

	if heapArena.High() >= heapArena.Low() {
		return nil, errors.New("the arena provided to the allocator must be empty")
	}

	view := metadata.NewView(heapArena.Bytes())
	allocator := &Allocator{
		logger:      logger,
		createFlags: options.Flags,
		arena:       heapArena,
		ownsArena:   ownsArena,
		view:        view,
		freeLists:   metadata.NewFreeLists(view, classes),
		chunkSize:   chunkSize,
	}

	err = allocator.init()
	if err != nil {
		if ownsArena {
			_ = allocator.Close()
		}
		return nil, err
	}

	return allocator, nil
}

func createArena(options CreateOptions) (arena.Arena, error) {
	size := options.ArenaSize
	if size == 0 {
		size = arena.DefaultMaxSize
	}
	if size > maxArenaSize {
		return nil, errors.Errorf("CreateOptions.ArenaSize may be at most %d, but was %d", maxArenaSize, size)
	}

	if options.Flags&AllocatorCreateMappedArena != 0 {
		return arena.NewMapped(size)
	}

	return arena.NewHeap(size)
}

func (a *Allocator) init() error {
	start, err := a.arena.Grow(4 * memutils.WordSize)
	if err != nil {
		return errors.Wrap(err, "failed to create the initial heap")
	}
	a.view.Reset(a.arena.Bytes())

	if !memutils.IsAligned(start, memutils.DoubleWordSize) {
		return errors.Errorf("the arena returned offset %d, which is not %d-byte aligned", start, memutils.DoubleWordSize)
	}

	prologue := metadata.Pack(memutils.DoubleWordSize, true)
	a.view.SetWord(start, 0)
	a.view.SetWord(start+memutils.WordSize, prologue)
	a.view.SetWord(start+2*memutils.WordSize, prologue)
	a.view.SetWord(start+3*memutils.WordSize, metadata.Pack(0, true))
	a.heapStart = start + memutils.DoubleWordSize

	_, err = a.extend(a.chunkSize / memutils.WordSize)
	if err != nil {
		return err
	}

	memutils.DebugValidate(a)
	return nil
}
