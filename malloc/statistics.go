package malloc

import (
	"github.com/noip2019/malloclab/memutils"
)

// AddStatistics adds the allocator's running totals to stats. It does not walk the heap.
func (a *Allocator) AddStatistics(stats *memutils.Statistics) {
	stats.ArenaCount++
	stats.ArenaBytes += a.view.Len()
	stats.AllocationCount += a.allocCount
	stats.AllocationBytes += a.allocBytes
	stats.FreeBlockCount += a.freeLists.Count()
	stats.FreeBytes += a.freeLists.FreeBytes()
}

// AddDetailedStatistics walks every block in the heap and adds it to stats
func (a *Allocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.ArenaCount++
	stats.ArenaBytes += a.view.Len()

	_ = a.VisitAllBlocks(func(block BlockInfo) error {
		if block.Allocated {
			stats.AddAllocation(block.Size)
		} else {
			stats.AddFreeBlock(block.Size)
		}
		return nil
	})
}
