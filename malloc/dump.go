package malloc

import (
	"context"
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/noip2019/malloclab/memutils"
	"github.com/noip2019/malloclab/memutils/metadata"
	"golang.org/x/exp/slog"
)

// BlockInfo describes a single block in the heap, as reported by VisitAllBlocks
type BlockInfo struct {
	Offset    Ptr
	Size      int
	Allocated bool
	PrevFree  bool

	// PrevLink and NextLink are the block's free list links. They are only meaningful for free
	// blocks.
	PrevLink Ptr
	NextLink Ptr
}

// VisitAllBlocks calls visit for every block between the prologue and the epilogue, in
// address order, stopping at the first error
func (a *Allocator) VisitAllBlocks(visit func(block BlockInfo) error) error {
	for bp := a.heapStart + memutils.DoubleWordSize; ; {
		header := a.view.Header(bp)
		if header.Size() == 0 {
			return nil
		}

		info := BlockInfo{
			Offset:    Ptr(bp),
			Size:      header.Size(),
			Allocated: header.Allocated(),
			PrevFree:  header.PrevFree(),
		}
		if !info.Allocated {
			info.PrevLink = Ptr(a.view.PrevLink(bp))
			info.NextLink = Ptr(a.view.NextLink(bp))
		}

		err := visit(info)
		if err != nil {
			return err
		}

		bp += info.Size
	}
}

// DebugLogAllBlocks writes one debug record for every block in the heap, followed by one for
// every non-empty free list
func (a *Allocator) DebugLogAllBlocks(logger *slog.Logger) {
	if logger == nil {
		logger = a.logger
	}
	ctx := context.Background()

	_ = a.VisitAllBlocks(func(block BlockInfo) error {
		attrs := []slog.Attr{
			slog.Int("offset", int(block.Offset)),
			slog.Int("size", block.Size),
			slog.Bool("allocated", block.Allocated),
			slog.Bool("prevFree", block.PrevFree),
		}
		if !block.Allocated {
			attrs = append(attrs, slog.Int("prevLink", int(block.PrevLink)), slog.Int("nextLink", int(block.NextLink)))
		}

		logger.LogAttrs(ctx, slog.LevelDebug, "heap block", attrs...)
		return nil
	})

	for class := 0; class < a.freeLists.ClassCount(); class++ {
		top := a.freeLists.Top(class)
		if top == metadata.NoBlock {
			continue
		}

		count := 0
		_ = a.freeLists.Walk(class, func(bp int) error {
			count++
			return nil
		})

		logger.LogAttrs(ctx, slog.LevelDebug, "free list",
			slog.Int("class", class),
			slog.Int("top", int(top)),
			slog.Int("blocks", count),
		)
	}
}

// PrintDetailedMap writes the heap's blocks and free lists into an open JSON object
func (a *Allocator) PrintDetailedMap(json *jwriter.ObjectState) {
	json.Name("TotalBytes").Int(a.view.Len())
	json.Name("UnusedBytes").Int(a.freeLists.FreeBytes())
	json.Name("Allocations").Int(a.allocCount)
	json.Name("UnusedRanges").Int(a.freeLists.Count())

	blocks := json.Name("Blocks").Array()
	_ = a.VisitAllBlocks(func(block BlockInfo) error {
		obj := blocks.Object()
		defer obj.End()

		obj.Name("Offset").Int(int(block.Offset))
		obj.Name("Size").Int(block.Size)
		if block.Allocated {
			obj.Name("Type").String("ALLOCATED")
			obj.Name("UsableBytes").Int(block.Size - metadata.HeaderOverhead)
		} else {
			obj.Name("Type").String("FREE")
		}

		return nil
	})
	blocks.End()

	lists := json.Name("FreeLists").Object()
	for class := 0; class < a.freeLists.ClassCount(); class++ {
		if a.freeLists.Top(class) == metadata.NoBlock {
			continue
		}

		classArray := lists.Name(strconv.Itoa(class)).Array()
		_ = a.freeLists.Walk(class, func(bp int) error {
			classArray.Int(bp)
			return nil
		})
		classArray.End()
	}
	lists.End()
}

// BuildStatsString returns a JSON document describing the allocator's current statistics. If
// detailedMap is true, every block and free list is included as well.
func (a *Allocator) BuildStatsString(detailedMap bool) string {
	var stats memutils.DetailedStatistics
	stats.Clear()
	a.AddDetailedStatistics(&stats)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	flags := objState.Name("Flags")
	flags.String(a.createFlags.String())

	total := objState.Name("Total").Object()
	total.Name("HeapBytes").Int(stats.ArenaBytes)
	total.Name("AllocationCount").Int(stats.AllocationCount)
	total.Name("AllocationBytes").Int(stats.AllocationBytes)
	total.Name("FreeBlockCount").Int(stats.FreeBlockCount)
	total.Name("FreeBytes").Int(stats.FreeBytes)
	total.Name("Utilization").Float64(stats.Utilization())
	if stats.AllocationCount > 0 {
		total.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		total.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.FreeBlockCount > 0 {
		total.Name("FreeBlockSizeMin").Int(stats.FreeBlockSizeMin)
		total.Name("FreeBlockSizeMax").Int(stats.FreeBlockSizeMax)
	}
	total.End()

	if detailedMap {
		detailed := objState.Name("DetailedMap").Object()
		a.PrintDetailedMap(&detailed)
		detailed.End()
	}

	objState.End()

	return string(writer.Bytes())
}
