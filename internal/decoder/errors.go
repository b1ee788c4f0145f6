package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrConversion marks bits that could not be interpreted as the field kind.
	ErrConversion = errors.New("value conversion failed")
	// ErrDiscriminantMissing marks a selector whose discriminant was never decoded.
	ErrDiscriminantMissing = errors.New("discriminant not decoded")
)

// FieldError describes one field that failed to decode.
type FieldError struct {
	Name   string
	Offset int
	Bits   int
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s at bit %d (%d bits): %v", e.Name, e.Offset, e.Bits, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// SelectorError describes a selector subtree that was skipped.
type SelectorError struct {
	Discriminant string
	Err          error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("selector on %s: %v", e.Discriminant, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }
