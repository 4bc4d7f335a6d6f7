package trace

import (
	"math/rand"

	"github.com/cockroachdb/errors"
)

// GenerateOptions controls the random trace generator
type GenerateOptions struct {
	Ops     int
	MaxSize int
	Seed    int64
}

// Generate builds a random, well-formed trace: every id is allocated exactly once before it is
// reallocated or released, and every id still live at the end is released. The final releases
// count toward Ops. The trace holds exactly Ops operations, except that it may be one short
// when a lone allocation and its release would not both fit.
func Generate(options GenerateOptions) (*Trace, error) {
	if options.Ops < 0 {
		return nil, errors.Errorf("op count must not be negative, but was %d", options.Ops)
	}
	if options.MaxSize < 1 {
		return nil, errors.Errorf("max size must be positive, but was %d", options.MaxSize)
	}

	random := rand.New(rand.NewSource(options.Seed))
	t := &Trace{
		Name:   "generated",
		Weight: 1,
		Ops:    make([]Op, 0, options.Ops),
	}

	var live []int
	sizes := map[int]int{}
	liveBytes := 0

	for len(t.Ops)+len(live) < options.Ops {
		remaining := options.Ops - len(t.Ops) - len(live)
		if len(live) == 0 && remaining < 2 {
			break
		}
		choice := random.Intn(10)

		switch {
		case len(live) == 0 || (remaining > 1 && choice < 5):
			id := t.IDCount
			t.IDCount++
			size := random.Intn(options.MaxSize) + 1

			t.Ops = append(t.Ops, Op{Kind: OpAllocate, ID: id, Size: size})
			live = append(live, id)
			sizes[id] = size
			liveBytes += size

		case choice < 8:
			index := random.Intn(len(live))
			id := live[index]

			t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
			live[index] = live[len(live)-1]
			live = live[:len(live)-1]
			liveBytes -= sizes[id]
			delete(sizes, id)

		default:
			id := live[random.Intn(len(live))]
			size := random.Intn(options.MaxSize) + 1

			t.Ops = append(t.Ops, Op{Kind: OpReallocate, ID: id, Size: size})
			liveBytes += size - sizes[id]
			sizes[id] = size
		}

		if liveBytes > t.SuggestedHeapSize {
			t.SuggestedHeapSize = liveBytes
		}
	}

	for _, id := range live {
		t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
	}

	return t, nil
}
