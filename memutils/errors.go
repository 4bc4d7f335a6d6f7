package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrInvalidSize is returned when a negative byte count is passed to an allocation method
var ErrInvalidSize error = errors.New("size must not be negative")
