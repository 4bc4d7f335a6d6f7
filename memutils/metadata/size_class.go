package metadata

import (
	"math/bits"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultExactClassShift is the default K: every block size up to 2^K gets its own class
	DefaultExactClassShift = 7
	// DefaultBucketCount is the default number of power-of-two classes above 2^K
	DefaultBucketCount = 10

	minExactClassShift = 4
	maxExactClassShift = 16
)

// SizeClasses maps block sizes to free list classes. Sizes up to 2^K have one class per size,
// so the common small requests never scan a list holding a different size. Sizes above 2^K fall
// into power-of-two buckets (2^K*2^i, 2^K*2^(i+1)], and the final bucket absorbs everything
// larger.
type SizeClasses struct {
	exactShift  uint
	bucketCount int
}

// NewSizeClasses validates and builds a size class index
func NewSizeClasses(exactShift, bucketCount int) (SizeClasses, error) {
	if exactShift < minExactClassShift || exactShift > maxExactClassShift {
		return SizeClasses{}, errors.Errorf("exact class shift must be between %d and %d, but was %d", minExactClassShift, maxExactClassShift, exactShift)
	}
	if bucketCount < 1 {
		return SizeClasses{}, errors.Errorf("bucket count must be at least 1, but was %d", bucketCount)
	}

	return SizeClasses{
		exactShift:  uint(exactShift),
		bucketCount: bucketCount,
	}, nil
}

// DefaultSizeClasses returns the size class index with K = 7 and 10 buckets
func DefaultSizeClasses() SizeClasses {
	return SizeClasses{
		exactShift:  DefaultExactClassShift,
		bucketCount: DefaultBucketCount,
	}
}

// ExactLimit returns 2^K, the largest size with a class of its own
func (c SizeClasses) ExactLimit() int { return 1 << c.exactShift }

// Count returns the number of classes
func (c SizeClasses) Count() int { return c.ExactLimit() + c.bucketCount }

// ClassOf returns the class index for a block of the provided size
func (c SizeClasses) ClassOf(size int) int {
	if size < 1 {
		return 0
	}

	exactLimit := c.ExactLimit()
	if size <= exactLimit {
		return size - 1
	}

	bucket := bits.Len(uint(size-1)) - int(c.exactShift) - 1
	if bucket >= c.bucketCount {
		bucket = c.bucketCount - 1
	}

	return exactLimit + bucket
}
