package trace

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// maxPreallocatedOps bounds the op slice reserved from the header; longer traces grow it
const maxPreallocatedOps = 1 << 16

// ErrMalformed is wrapped by every error Parse returns for bad trace contents
var ErrMalformed = errors.New("malformed trace")

// Parse reads a trace. Blank lines are ignored. Every id must be less than the id count in the
// header, and the number of operations must match the header's op count.
func Parse(r io.Reader) (*Trace, error) {
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	var header []int
	t := &Trace{}

	for scanner.Scan() {
		lineNumber++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if len(header) < 4 {
			value, err := strconv.Atoi(fields[0])
			if err != nil || len(fields) != 1 {
				return nil, errors.Wrapf(ErrMalformed, "line %d: expected a single header integer, but found %q", lineNumber, scanner.Text())
			}
			header = append(header, value)
			if len(header) == 4 {
				t.SuggestedHeapSize, t.IDCount, t.Weight = header[0], header[1], header[3]
				if header[2] < 0 || t.IDCount < 0 {
					return nil, errors.Wrapf(ErrMalformed, "line %d: negative counts in header", lineNumber)
				}
				capacity := header[2]
				if capacity > maxPreallocatedOps {
					capacity = maxPreallocatedOps
				}
				t.Ops = make([]Op, 0, capacity)
			}
			continue
		}

		op, err := parseOp(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNumber)
		}
		if op.ID >= t.IDCount {
			return nil, errors.Wrapf(ErrMalformed, "line %d: id %d is not below the id count %d", lineNumber, op.ID, t.IDCount)
		}

		t.Ops = append(t.Ops, op)
	}

	err := scanner.Err()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read trace")
	}

	if len(header) < 4 {
		return nil, errors.Wrapf(ErrMalformed, "trace ended after %d of 4 header lines", len(header))
	}
	if len(t.Ops) != header[2] {
		return nil, errors.Wrapf(ErrMalformed, "header promises %d ops, but the trace holds %d", header[2], len(t.Ops))
	}

	return t, nil
}

func parseOp(fields []string) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, errors.Wrapf(ErrMalformed, "unknown operation %q", fields[0])
	}

	op := Op{Kind: OpKind(fields[0][0])}
	expectedFields := 3

	switch op.Kind {
	case OpAllocate, OpReallocate:
	case OpFree:
		expectedFields = 2
	default:
		return Op{}, errors.Wrapf(ErrMalformed, "unknown operation %q", fields[0])
	}

	if len(fields) != expectedFields {
		return Op{}, errors.Wrapf(ErrMalformed, "%s takes %d arguments, but found %d", op.Kind, expectedFields-1, len(fields)-1)
	}

	var err error
	op.ID, err = strconv.Atoi(fields[1])
	if err != nil || op.ID < 0 {
		return Op{}, errors.Wrapf(ErrMalformed, "invalid id %q", fields[1])
	}

	if expectedFields == 3 {
		op.Size, err = strconv.Atoi(fields[2])
		if err != nil || op.Size < 0 {
			return Op{}, errors.Wrapf(ErrMalformed, "invalid size %q", fields[2])
		}
	}

	return op, nil
}

// Write emits t in the format Parse reads
func Write(w io.Writer, t *Trace) error {
	buffered := bufio.NewWriter(w)

	for _, value := range []int{t.SuggestedHeapSize, t.IDCount, len(t.Ops), t.Weight} {
		buffered.WriteString(strconv.Itoa(value))
		buffered.WriteByte('\n')
	}

	for _, op := range t.Ops {
		buffered.WriteByte(byte(op.Kind))
		buffered.WriteByte(' ')
		buffered.WriteString(strconv.Itoa(op.ID))
		if op.Kind != OpFree {
			buffered.WriteByte(' ')
			buffered.WriteString(strconv.Itoa(op.Size))
		}
		buffered.WriteByte('\n')
	}

	err := buffered.Flush()
	if err != nil {
		return errors.Wrap(err, "failed to write trace")
	}
	return nil
}
