package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"golang.org/x/sys/unix"
)

// Symbol is one symbol table entry to encode.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
	Info  uint8
	Other uint8
	Shndx uint16
}

// Reloc is one relocation entry to encode.
type Reloc struct {
	Offset uint64
	Sym    uint32
	Type   uint32
	Addend int64
}

type sym32 struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

type sym64 struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type rel32 struct {
	Off  uint32
	Info uint32
}

type rela32 struct {
	Off    uint32
	Info   uint32
	Addend int32
}

type rel64 struct {
	Off  uint64
	Info uint64
}

type rela64 struct {
	Off    uint64
	Info   uint64
	Addend int64
}

// SymEntSize returns sh_entsize of a symbol section for class.
func SymEntSize(class elf.Class) uint64 {
	if class == elf.ELFCLASS64 {
		return 24
	}
	return 16
}

// RelEntSize returns sh_entsize of a REL or RELA section for class.
func RelEntSize(class elf.Class, rela bool) uint64 {
	n := uint64(8)
	if class == elf.ELFCLASS64 {
		n = 16
	}
	if rela {
		n += n / 2
	}
	return n
}

// SymbolTable encodes syms behind the mandatory null symbol and returns the
// symbol section contents along with its string table.
func SymbolTable(class elf.Class, order binary.ByteOrder, syms []Symbol) (symtab, strtab []byte, err error) {
	var sb, tb bytes.Buffer
	tb.WriteByte(0)

	all := append([]Symbol{{}}, syms...)
	for _, s := range all {
		name := uint32(0)
		if s.Name != "" {
			name = uint32(tb.Len())
			data, err := unix.ByteSliceFromString(s.Name)
			if err != nil {
				return nil, nil, err
			}
			tb.Write(data)
		}

		var v interface{}
		if class == elf.ELFCLASS64 {
			v = &sym64{Name: name, Info: s.Info, Other: s.Other, Shndx: s.Shndx, Value: s.Value, Size: s.Size}
		} else {
			v = &sym32{Name: name, Value: uint32(s.Value), Size: uint32(s.Size), Info: s.Info, Other: s.Other, Shndx: s.Shndx}
		}
		if err := struc.PackWithOrder(&sb, v, order); err != nil {
			return nil, nil, err
		}
	}
	return sb.Bytes(), tb.Bytes(), nil
}

// Relocations encodes rels as REL entries, or RELA entries when rela is set.
func Relocations(class elf.Class, order binary.ByteOrder, rels []Reloc, rela bool) ([]byte, error) {
	var b bytes.Buffer
	for _, r := range rels {
		var v interface{}
		if class == elf.ELFCLASS64 {
			info := uint64(r.Sym)<<32 | uint64(r.Type)
			if rela {
				v = &rela64{Off: r.Offset, Info: info, Addend: r.Addend}
			} else {
				v = &rel64{Off: r.Offset, Info: info}
			}
		} else {
			info := r.Sym<<8 | r.Type&0xff
			if rela {
				v = &rela32{Off: uint32(r.Offset), Info: info, Addend: int32(r.Addend)}
			} else {
				v = &rel32{Off: uint32(r.Offset), Info: info}
			}
		}
		if err := struc.PackWithOrder(&b, v, order); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// ByteOrder returns the byte order for an EI_DATA value.
func ByteOrder(d elf.Data) binary.ByteOrder {
	if d == elf.ELFDATA2MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
