package malloc

import (
	"github.com/noip2019/malloclab/malloc/internal/utils"
	"github.com/noip2019/malloclab/memutils"
)

// Locked wraps an Allocator so that it can be shared between goroutines. Every method takes
// the wrapper's lock for the duration of the call. If the allocator was created with
// AllocatorCreateExternallySynchronized, the lock is skipped.
//
// Payload slices returned by Locked are not protected once the call returns.
type Locked struct {
	mutex     utils.OptionalRWMutex
	allocator *Allocator
}

// NewLocked wraps allocator. The allocator must not be used directly afterward.
func NewLocked(allocator *Allocator) *Locked {
	return &Locked{
		mutex: utils.OptionalRWMutex{
			UseMutex: allocator.createFlags&AllocatorCreateExternallySynchronized == 0,
		},
		allocator: allocator,
	}
}

// Allocate calls Allocator.Allocate under the lock
func (l *Locked) Allocate(size int) (Ptr, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.allocator.Allocate(size)
}

// Release calls Allocator.Release under the lock
func (l *Locked) Release(p Ptr) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.allocator.Release(p)
}

// Reallocate calls Allocator.Reallocate under the lock
func (l *Locked) Reallocate(p Ptr, size int) (Ptr, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.allocator.Reallocate(p, size)
}

// AllocateZeroed calls Allocator.AllocateZeroed under the lock
func (l *Locked) AllocateZeroed(count, size int) (Ptr, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.allocator.AllocateZeroed(count, size)
}

// Payload returns the usable region of the allocation at p
func (l *Locked) Payload(p Ptr) []byte {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.allocator.Payload(p)
}

// UsableSize returns the number of bytes the allocation at p can hold
func (l *Locked) UsableSize(p Ptr) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.allocator.UsableSize(p)
}

// AddStatistics adds the allocator's running totals to stats
func (l *Locked) AddStatistics(stats *memutils.Statistics) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	l.allocator.AddStatistics(stats)
}

// Validate runs the full heap consistency check
func (l *Locked) Validate() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.allocator.Validate()
}

// BuildStatsString returns the allocator's statistics as a JSON document
func (l *Locked) BuildStatsString(detailedMap bool) string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.allocator.BuildStatsString(detailedMap)
}

// Close closes the wrapped allocator
func (l *Locked) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.allocator.Close()
}
