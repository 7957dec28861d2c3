package elfreader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Profile is the decoding profile of a file: its word size and byte order.
// It is derived once from the identification bytes and never changes.
type Profile struct {
	Class     elf.Class
	Data      elf.Data
	ByteOrder binary.ByteOrder
}

// NativeSize returns the width in bytes of a native integer field.
func (p Profile) NativeSize() int {
	if p.Class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}

// WordSize returns 32 or 64.
func (p Profile) WordSize() int {
	return p.NativeSize() * 8
}

// SplitInfo splits a relocation info word into its symbol index and type.
func (p Profile) SplitInfo(info uint64) (sym, typ uint32) {
	if p.Class == elf.ELFCLASS64 {
		return uint32(info >> 32), uint32(info & 0xffffffff)
	}
	return uint32(info >> 8), uint32(info & 0xff)
}

func (p Profile) String() string {
	return p.Class.String() + "/" + p.Data.String()
}

// DetectProfile inspects the leading identification bytes of a file.
func DetectProfile(ident []byte) (Profile, error) {
	if !bytes.HasPrefix(ident, []byte(elf.ELFMAG)) {
		return Profile{}, &FormatError{Reason: "not an ELF file"}
	}
	if len(ident) < elf.EI_NIDENT {
		return Profile{}, &FormatError{Reason: "truncated identification"}
	}

	var p Profile
	switch c := elf.Class(ident[elf.EI_CLASS]); c {
	case elf.ELFCLASS32, elf.ELFCLASS64:
		p.Class = c
	default:
		return Profile{}, &FormatError{Reason: "unsupported file class"}
	}

	switch d := elf.Data(ident[elf.EI_DATA]); d {
	case elf.ELFDATA2LSB:
		p.Data, p.ByteOrder = d, binary.LittleEndian
	case elf.ELFDATA2MSB:
		p.Data, p.ByteOrder = d, binary.BigEndian
	default:
		return Profile{}, &FormatError{Reason: "unsupported encoding"}
	}
	return p, nil
}
