package elfreader

import (
	"debug/elf"
	"io"
)

// Kind tags the width and signedness of a record field.
type Kind uint8

const (
	U8 Kind = iota + 1
	U16
	U32
	U64
	I32
	I64
	// Native is an unsigned word: 4 bytes in 32-bit files, 8 in 64-bit ones.
	Native
	// NativeSigned is the signed counterpart of Native.
	NativeSigned
	// Ident is the raw EI_NIDENT identification block.
	Ident
)

func (k Kind) size(p Profile) int {
	switch k {
	case U8:
		return 1
	case U16:
		return 2
	case U32, I32:
		return 4
	case U64, I64:
		return 8
	case Native, NativeSigned:
		return p.NativeSize()
	case Ident:
		return elf.EI_NIDENT
	}
	return 0
}

// Field is one named member of a Shape.
type Field struct {
	Name string
	Kind Kind
}

// Shape describes the on-disk layout of a fixed-size record.
type Shape struct {
	Name   string
	Fields []Field
}

// Size returns the number of bytes a record of this shape occupies under p.
func (s Shape) Size(p Profile) int {
	n := 0
	for _, f := range s.Fields {
		n += f.Kind.size(p)
	}
	return n
}

var (
	FileHeaderShape = Shape{Name: "file header", Fields: []Field{
		{"e_ident", Ident},
		{"e_type", U16},
		{"e_machine", U16},
		{"e_version", U32},
		{"e_entry", Native},
		{"e_phoff", Native},
		{"e_shoff", Native},
		{"e_flags", U32},
		{"e_ehsize", U16},
		{"e_phentsize", U16},
		{"e_phnum", U16},
		{"e_shentsize", U16},
		{"e_shnum", U16},
		{"e_shstrndx", U16},
	}}

	SectionHeaderShape = Shape{Name: "section header", Fields: []Field{
		{"sh_name", U32},
		{"sh_type", U32},
		{"sh_flags", Native},
		{"sh_addr", Native},
		{"sh_offset", Native},
		{"sh_size", Native},
		{"sh_link", U32},
		{"sh_info", U32},
		{"sh_addralign", Native},
		{"sh_entsize", Native},
	}}

	Symbol32Shape = Shape{Name: "symbol", Fields: []Field{
		{"st_name", U32},
		{"st_value", Native},
		{"st_size", U32},
		{"st_info", U8},
		{"st_other", U8},
		{"st_shndx", U16},
	}}

	Symbol64Shape = Shape{Name: "symbol", Fields: []Field{
		{"st_name", U32},
		{"st_info", U8},
		{"st_other", U8},
		{"st_shndx", U16},
		{"st_value", Native},
		{"st_size", U64},
	}}

	RelaShape = Shape{Name: "rela", Fields: []Field{
		{"r_offset", Native},
		{"r_info", Native},
		{"r_addend", NativeSigned},
	}}

	RelShape = Shape{Name: "rel", Fields: []Field{
		{"r_offset", Native},
		{"r_info", Native},
	}}
)

// SymbolShape returns the symbol layout used by files of profile p.
func SymbolShape(p Profile) Shape {
	if p.Class == elf.ELFCLASS64 {
		return Symbol64Shape
	}
	return Symbol32Shape
}

// Record holds the decoded fields of one record by name. Signed fields are
// stored sign-extended.
type Record struct {
	values map[string]uint64
	ident  []byte
}

// Uint returns the named field, or 0 if the shape had no such field.
func (r Record) Uint(name string) uint64 { return r.values[name] }

// Int returns the named field as a signed value, or 0 if absent.
func (r Record) Int(name string) int64 { return int64(r.values[name]) }

// Has reports whether the record carries the named field.
func (r Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Ident returns the identification bytes of a file header record.
func (r Record) Ident() []byte { return r.ident }

// Decode reads one record of shape s from r. It consumes exactly s.Size(p)
// bytes on success.
func Decode(r io.Reader, p Profile, s Shape) (Record, error) {
	buf := make([]byte, s.Size(p))
	if _, err := io.ReadFull(r, buf); err != nil {
		return Record{}, &DecodeError{Record: s.Name, Offset: -1, Err: err}
	}
	return decodeBytes(buf, p, s), nil
}

// decodeBytes decodes buf, which must hold at least s.Size(p) bytes.
func decodeBytes(buf []byte, p Profile, s Shape) Record {
	rec := Record{values: make(map[string]uint64, len(s.Fields))}
	bo := p.ByteOrder
	for _, f := range s.Fields {
		n := f.Kind.size(p)
		b := buf[:n]
		buf = buf[n:]

		var v uint64
		switch f.Kind {
		case U8:
			v = uint64(b[0])
		case U16:
			v = uint64(bo.Uint16(b))
		case U32:
			v = uint64(bo.Uint32(b))
		case I32:
			v = uint64(int64(int32(bo.Uint32(b))))
		case U64, I64:
			v = bo.Uint64(b)
		case Native, NativeSigned:
			if n == 8 {
				v = bo.Uint64(b)
			} else if f.Kind == NativeSigned {
				v = uint64(int64(int32(bo.Uint32(b))))
			} else {
				v = uint64(bo.Uint32(b))
			}
		case Ident:
			rec.ident = append([]byte(nil), b...)
			continue
		}
		rec.values[f.Name] = v
	}
	return rec
}
