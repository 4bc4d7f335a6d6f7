package trace

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/noip2019/malloclab/malloc"
	"golang.org/x/exp/slog"
)

// ErrIncorrect is wrapped by every error Replay returns because the allocator misbehaved, as
// opposed to the trace being inconsistent or the allocator running out of memory
var ErrIncorrect = errors.New("allocator produced an incorrect result")

// ReplayOptions configures a single trace replay
type ReplayOptions struct {
	Logger    *slog.Logger
	Allocator malloc.CreateOptions

	// Check runs the full heap validator after every operation
	Check bool
	// Dump captures the allocator's JSON block map after the final operation
	Dump bool
}

// Result summarizes a replay
type Result struct {
	Name string
	// Weight is the trace's share of the utilization average
	Weight int

	Ops       int
	PeakBytes int
	HeapSize  int
	Elapsed   time.Duration

	// Dump holds the allocator's JSON block map when ReplayOptions.Dump was set
	Dump string
}

// Utilization returns peak live payload bytes divided by the final heap size
func (r Result) Utilization() float64 {
	if r.HeapSize == 0 {
		return 0
	}

	return float64(r.PeakBytes) / float64(r.HeapSize)
}

// Throughput returns operations per second
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return float64(r.Ops) / r.Elapsed.Seconds()
}

type liveBlock struct {
	ptr  malloc.Ptr
	size int
}

type replayer struct {
	logger    *slog.Logger
	allocator *malloc.Allocator
	check     bool

	blocks    *swiss.Map[int, liveBlock]
	intervals intervalSet

	liveBytes int
	peakBytes int
}

// Replay runs every operation of t against a fresh allocator. Each payload is filled with a
// pattern derived from its id, and the pattern is verified before the block is released or
// reallocated. Every returned block is checked for alignment, for lying inside the heap, and
// for overlapping any other live block.
func Replay(t *Trace, options ReplayOptions) (Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allocator, err := malloc.New(logger, options.Allocator)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to create allocator")
	}
	defer func() {
		closeErr := allocator.Close()
		if closeErr != nil {
			logger.Error("failed to close allocator", slog.Any("error", closeErr))
		}
	}()

	r := &replayer{
		logger:    logger,
		allocator: allocator,
		check:     options.Check,
		blocks:    swiss.NewMap[int, liveBlock](uint32(t.IDCount)),
	}

	start := time.Now()
	for index, op := range t.Ops {
		err = r.apply(op)
		if err != nil {
			return Result{}, errors.Wrapf(err, "%s: op %d (%c %d)", t.Name, index, byte(op.Kind), op.ID)
		}
	}
	elapsed := time.Since(start)

	result := Result{
		Name:      t.Name,
		Weight:    t.Weight,
		Ops:       len(t.Ops),
		PeakBytes: r.peakBytes,
		HeapSize:  allocator.HeapSize(),
		Elapsed:   elapsed,
	}
	if options.Dump {
		result.Dump = allocator.BuildStatsString(true)
	}

	logger.LogAttrs(context.Background(), slog.LevelInfo, "replayed trace",
		slog.String("name", t.Name),
		slog.Int("ops", result.Ops),
		slog.Int("heapSize", result.HeapSize),
		slog.Duration("elapsed", elapsed),
	)

	return result, nil
}

func (r *replayer) apply(op Op) error {
	var err error

	switch op.Kind {
	case OpAllocate:
		err = r.allocate(op.ID, op.Size)
	case OpReallocate:
		err = r.reallocate(op.ID, op.Size)
	case OpFree:
		err = r.free(op.ID)
	default:
		return errors.Wrapf(ErrMalformed, "unknown operation %s", op.Kind)
	}
	if err != nil {
		return err
	}

	if r.check {
		err = r.allocator.Validate()
		if err != nil {
			return errors.Mark(err, ErrIncorrect)
		}
	}

	return nil
}

func (r *replayer) allocate(id, size int) error {
	if r.blocks.Has(id) {
		return errors.Wrapf(ErrMalformed, "id %d is allocated twice", id)
	}

	p, err := r.allocator.Allocate(size)
	if err != nil {
		return err
	}

	err = r.acceptBlock(id, p, size)
	if err != nil {
		return err
	}

	fillPattern(r.allocator.Payload(p)[:size], id)
	return nil
}

func (r *replayer) reallocate(id, size int) error {
	old, ok := r.blocks.Get(id)
	if !ok {
		return errors.Wrapf(ErrMalformed, "id %d is reallocated before it is allocated", id)
	}

	err := r.verifyPattern(id, old)
	if err != nil {
		return err
	}

	p, err := r.allocator.Reallocate(old.ptr, size)
	if err != nil {
		return err
	}
	r.dropBlock(id, old)

	err = r.acceptBlock(id, p, size)
	if err != nil {
		return err
	}

	kept := old.size
	if size < kept {
		kept = size
	}
	err = r.verifyPattern(id, liveBlock{ptr: p, size: kept})
	if err != nil {
		return errors.Wrap(err, "reallocate did not preserve the block contents")
	}

	fillPattern(r.allocator.Payload(p)[:size], id)
	return nil
}

func (r *replayer) free(id int) error {
	block, ok := r.blocks.Get(id)
	if !ok {
		return errors.Wrapf(ErrMalformed, "id %d is freed while not allocated", id)
	}

	err := r.verifyPattern(id, block)
	if err != nil {
		return err
	}

	r.allocator.Release(block.ptr)
	r.dropBlock(id, block)
	return nil
}

func (r *replayer) acceptBlock(id int, p malloc.Ptr, size int) error {
	block := liveBlock{ptr: p, size: size}

	if p != malloc.Null {
		if !r.allocator.Aligned(p) {
			return errors.Wrapf(ErrIncorrect, "block at offset %d is not aligned", p)
		}
		if !r.allocator.InHeap(p) || !r.allocator.InHeap(p+malloc.Ptr(size)-1) {
			return errors.Wrapf(ErrIncorrect, "block [%d, %d) lies outside the heap", p, int(p)+size)
		}
		if r.allocator.UsableSize(p) < size {
			return errors.Wrapf(ErrIncorrect, "block at offset %d holds %d bytes, but %d were requested", p, r.allocator.UsableSize(p), size)
		}

		other, overlaps := r.intervals.insert(int(p), int(p)+size)
		if overlaps {
			return errors.Wrapf(ErrIncorrect, "block [%d, %d) overlaps the live block at offset %d", p, int(p)+size, other)
		}
	}

	r.blocks.Put(id, block)
	r.liveBytes += size
	if r.liveBytes > r.peakBytes {
		r.peakBytes = r.liveBytes
	}
	return nil
}

func (r *replayer) dropBlock(id int, block liveBlock) {
	if block.ptr != malloc.Null {
		r.intervals.remove(int(block.ptr))
	}
	r.blocks.Delete(id)
	r.liveBytes -= block.size
}

func (r *replayer) verifyPattern(id int, block liveBlock) error {
	if block.ptr == malloc.Null {
		return nil
	}

	expected := patternByte(id)
	for i, b := range r.allocator.Payload(block.ptr)[:block.size] {
		if b != expected {
			return errors.Wrapf(ErrIncorrect, "payload of id %d at offset %d was overwritten at byte %d", id, block.ptr, i)
		}
	}

	return nil
}

func patternByte(id int) byte {
	return byte(id*31 + 7)
}

func fillPattern(payload []byte, id int) {
	value := patternByte(id)
	for i := range payload {
		payload[i] = value
	}
}

type interval struct {
	start, end int
}

// intervalSet is a sorted set of disjoint half-open ranges
type intervalSet struct {
	ranges []interval
}

// insert adds [start, end) unless it overlaps an existing range, in which case it returns the
// start of that range and true
func (s *intervalSet) insert(start, end int) (int, bool) {
	index := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].start >= start
	})

	if index < len(s.ranges) && s.ranges[index].start < end {
		return s.ranges[index].start, true
	}
	if index > 0 && s.ranges[index-1].end > start {
		return s.ranges[index-1].start, true
	}

	s.ranges = append(s.ranges, interval{})
	copy(s.ranges[index+1:], s.ranges[index:])
	s.ranges[index] = interval{start: start, end: end}
	return 0, false
}

func (s *intervalSet) remove(start int) {
	index := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].start >= start
	})
	if index < len(s.ranges) && s.ranges[index].start == start {
		s.ranges = append(s.ranges[:index], s.ranges[index+1:]...)
	}
}
