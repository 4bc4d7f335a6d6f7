// Package trace reads, writes, generates and replays allocation traces. A trace is a text file
// with a four line header (suggested heap size, number of ids, number of ops, weight) followed
// by one operation per line:
//
//	a <id> <bytes>    allocate
//	r <id> <bytes>    reallocate
//	f <id>            release
package trace

import "fmt"

// OpKind identifies the allocator operation a trace line performs
type OpKind byte

const (
	OpAllocate   OpKind = 'a'
	OpReallocate OpKind = 'r'
	OpFree       OpKind = 'f'
)

func (k OpKind) String() string {
	switch k {
	case OpAllocate:
		return "allocate"
	case OpReallocate:
		return "reallocate"
	case OpFree:
		return "free"
	}

	return fmt.Sprintf("OpKind(%d)", byte(k))
}

// Op is a single trace operation. Size is unused for OpFree.
type Op struct {
	Kind OpKind
	ID   int
	Size int
}

// Trace is a parsed allocation trace
type Trace struct {
	Name string

	SuggestedHeapSize int
	IDCount           int
	Weight            int

	Ops []Op
}
