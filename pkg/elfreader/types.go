package elfreader

import "debug/elf"

// FileHeader is the decoded ELF file header.
type FileHeader struct {
	Ident     [elf.EI_NIDENT]byte
	Type      elf.Type
	Machine   elf.Machine
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

func newFileHeader(rec Record) FileHeader {
	h := FileHeader{
		Type:      elf.Type(rec.Uint("e_type")),
		Machine:   elf.Machine(rec.Uint("e_machine")),
		Version:   uint32(rec.Uint("e_version")),
		Entry:     rec.Uint("e_entry"),
		Phoff:     rec.Uint("e_phoff"),
		Shoff:     rec.Uint("e_shoff"),
		Flags:     uint32(rec.Uint("e_flags")),
		Ehsize:    uint16(rec.Uint("e_ehsize")),
		Phentsize: uint16(rec.Uint("e_phentsize")),
		Phnum:     uint16(rec.Uint("e_phnum")),
		Shentsize: uint16(rec.Uint("e_shentsize")),
		Shnum:     uint16(rec.Uint("e_shnum")),
		Shstrndx:  uint16(rec.Uint("e_shstrndx")),
	}
	copy(h.Ident[:], rec.Ident())
	return h
}

// SectionHeader describes one entry of the section table. Link and Info are
// indices into the same table for the section types that use them.
type SectionHeader struct {
	Index     int
	NameOff   uint32
	Name      string
	Type      elf.SectionType
	Flags     elf.SectionFlag
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

func newSectionHeader(i int, rec Record) SectionHeader {
	return SectionHeader{
		Index:     i,
		NameOff:   uint32(rec.Uint("sh_name")),
		Type:      elf.SectionType(rec.Uint("sh_type")),
		Flags:     elf.SectionFlag(rec.Uint("sh_flags")),
		Addr:      rec.Uint("sh_addr"),
		Offset:    rec.Uint("sh_offset"),
		Size:      rec.Uint("sh_size"),
		Link:      uint32(rec.Uint("sh_link")),
		Info:      uint32(rec.Uint("sh_info")),
		Addralign: rec.Uint("sh_addralign"),
		Entsize:   rec.Uint("sh_entsize"),
	}
}

// IsRelocation reports whether the section holds REL or RELA entries.
func (h SectionHeader) IsRelocation() bool {
	return h.Type == elf.SHT_REL || h.Type == elf.SHT_RELA
}

// Symbol is one entry of a symbol section. Number is its zero-based position
// within that section.
type Symbol struct {
	Number  int
	NameOff uint32
	Name    string
	Value   uint64
	Size    uint64
	Info    uint8
	Other   uint8
	Shndx   uint16
}

func newSymbol(n int, rec Record) Symbol {
	return Symbol{
		Number:  n,
		NameOff: uint32(rec.Uint("st_name")),
		Value:   rec.Uint("st_value"),
		Size:    rec.Uint("st_size"),
		Info:    uint8(rec.Uint("st_info")),
		Other:   uint8(rec.Uint("st_other")),
		Shndx:   uint16(rec.Uint("st_shndx")),
	}
}

func (s Symbol) Bind() elf.SymBind { return elf.ST_BIND(s.Info) }

func (s Symbol) Type() elf.SymType { return elf.ST_TYPE(s.Info) }

func (s Symbol) Visibility() elf.SymVis { return elf.ST_VISIBILITY(s.Other) }

// Section returns the index of the section the symbol is defined in.
func (s Symbol) Section() elf.SectionIndex { return elf.SectionIndex(s.Shndx) }

// Relocation is a normalized REL or RELA entry. Addend is zero for REL.
type Relocation struct {
	Offset uint64
	Info   uint64
	Addend int64
	Sym    uint32
	Type   uint32
}

func newRelocation(p Profile, rec Record) Relocation {
	r := Relocation{
		Offset: rec.Uint("r_offset"),
		Info:   rec.Uint("r_info"),
		Addend: rec.Int("r_addend"),
	}
	r.Sym, r.Type = p.SplitInfo(r.Info)
	return r
}

// RelocationTable holds the entries of one relocation section. Symbols is
// nil when the section's link does not name .symtab or .dynsym.
type RelocationTable struct {
	Section SectionHeader
	Symbols map[string]Symbol
	Entries []Relocation
}
