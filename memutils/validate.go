package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// MustValidate calls Validate on the provided object and panics if any errors are returned,
// regardless of build tags. Heap corruption is not a recoverable condition.
func MustValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}
