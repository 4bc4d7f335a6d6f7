package arena

import "github.com/pkg/errors"

// ErrOutOfMemory is returned by Arena.Grow when the arena cannot be extended
var ErrOutOfMemory error = errors.New("arena: out of memory")

// ErrUnsupported is returned when an arena implementation is not available on this platform
var ErrUnsupported error = errors.New("arena: not supported on this platform")
