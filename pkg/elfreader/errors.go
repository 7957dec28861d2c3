package elfreader

import "fmt"

// FormatError reports a file that is not an ELF file this package can read.
// It aborts Open.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "elf: " + e.Reason
}

// DecodeError reports a record or section that could not be read in full.
type DecodeError struct {
	Record string // shape or section being decoded
	Offset int64  // file offset the read started at, -1 if unknown
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("elf: decoding %s: %v", e.Record, e.Err)
	}
	return fmt.Sprintf("elf: decoding %s at offset %#x: %v", e.Record, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NotFoundError reports a missing section, an out of range section index or
// a string table offset that does not resolve.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "elf: not found: " + e.Name
}

// RangeError reports a virtual address that no section covers.
type RangeError struct {
	Addr uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("elf: address out of range: %#x", e.Addr)
}
