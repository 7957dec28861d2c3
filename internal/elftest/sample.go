package elftest

import "debug/elf"

// Layout of the image built by Sample. The indices hold for the dynamic
// variant; without it .rela.text directly follows .strtab.
const (
	TextAddr = 0x1000
	DataAddr = 0x2000

	TextIndex     = 1
	DataIndex     = 2
	SymtabIndex   = 3
	StrtabIndex   = 4
	DynsymIndex   = 5
	DynstrIndex   = 6
	RelaTextIndex = 7
	RelDynIndex   = 8
	RelNoteIndex  = 9
)

var (
	TextData = []byte{0x55, 0x48, 0x89, 0xe5, 0xe8, 0x00, 0x00, 0x00, 0x00, 0x5d, 0xc3, 0x90, 0x90, 0x90, 0x90, 0x90}
	DataData = []byte{0x2a, 0x00, 0x00, 0x00, 0xef, 0xbe, 0xad, 0xde}

	StaticSymbols = []Symbol{
		{Name: "main", Value: TextAddr, Size: 4, Info: byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_FUNC), Shndx: TextIndex},
		{Name: "helper", Value: TextAddr + 4, Size: 8, Info: byte(elf.STB_LOCAL)<<4 | byte(elf.STT_FUNC), Shndx: TextIndex},
		{Name: "counter", Value: DataAddr, Size: 8, Info: byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_OBJECT), Shndx: DataIndex},
		// One byte past the end of .data.
		{Name: "edge", Value: DataAddr + 8, Size: 1, Info: byte(elf.STB_LOCAL)<<4 | byte(elf.STT_NOTYPE), Shndx: DataIndex},
	}

	DynamicSymbols = []Symbol{
		{Name: "puts", Info: byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_FUNC)},
		{Name: "main", Value: TextAddr, Size: 4, Info: byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_FUNC), Shndx: TextIndex},
	}

	RelaText = []Reloc{
		{Offset: TextAddr + 5, Sym: 2, Type: 2, Addend: -4},
		{Offset: TextAddr + 8, Sym: 3, Type: 1, Addend: 16},
	}

	RelDyn = []Reloc{
		{Offset: DataAddr, Sym: 1, Type: 5},
	}

	RelNote = []Reloc{
		{Offset: 0, Sym: 0, Type: 0},
	}
)

// Sample returns the header and sections of a small relocatable image with
// code, data, static symbols and relocations. Dynamic symbols and the
// relocation section using them are only included when dynamic is set.
func Sample(class elf.Class, data elf.Data, dynamic bool) (*FileHeader, []*Section, error) {
	order := ByteOrder(data)
	fhdr := &FileHeader{Class: class, Data: data, Type: elf.ET_REL, Machine: elf.EM_X86_64}

	symtab, strtab, err := SymbolTable(class, order, StaticSymbols)
	if err != nil {
		return nil, nil, err
	}
	relaText, err := Relocations(class, order, RelaText, true)
	if err != nil {
		return nil, nil, err
	}
	relNote, err := Relocations(class, order, RelNote, false)
	if err != nil {
		return nil, nil, err
	}

	sections := []*Section{
		{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: TextAddr, Addralign: 16, Data: TextData},
		{Name: ".data", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: DataAddr, Addralign: 8, Data: DataData},
		{Name: ".symtab", Type: elf.SHT_SYMTAB, Link: StrtabIndex, Info: 1, Addralign: 8, Entsize: SymEntSize(class), Data: symtab},
		{Name: ".strtab", Type: elf.SHT_STRTAB, Addralign: 1, Data: strtab},
	}

	if dynamic {
		dynsym, dynstr, err := SymbolTable(class, order, DynamicSymbols)
		if err != nil {
			return nil, nil, err
		}
		relDyn, err := Relocations(class, order, RelDyn, false)
		if err != nil {
			return nil, nil, err
		}
		sections = append(sections,
			&Section{Name: ".dynsym", Type: elf.SHT_DYNSYM, Flags: elf.SHF_ALLOC, Link: DynstrIndex, Info: 1, Addralign: 8, Entsize: SymEntSize(class), Data: dynsym},
			&Section{Name: ".dynstr", Type: elf.SHT_STRTAB, Flags: elf.SHF_ALLOC, Addralign: 1, Data: dynstr},
		)
		sections = append(sections,
			&Section{Name: ".rela.text", Type: elf.SHT_RELA, Flags: elf.SHF_INFO_LINK, Link: SymtabIndex, Info: TextIndex, Addralign: 8, Entsize: RelEntSize(class, true), Data: relaText},
			&Section{Name: ".rel.dyn", Type: elf.SHT_REL, Flags: elf.SHF_ALLOC, Link: DynsymIndex, Addralign: 8, Entsize: RelEntSize(class, false), Data: relDyn},
			&Section{Name: ".rel.note", Type: elf.SHT_REL, Link: TextIndex, Addralign: 8, Entsize: RelEntSize(class, false), Data: relNote},
		)
		return fhdr, sections, nil
	}

	sections = append(sections,
		&Section{Name: ".rela.text", Type: elf.SHT_RELA, Flags: elf.SHF_INFO_LINK, Link: SymtabIndex, Info: TextIndex, Addralign: 8, Entsize: RelEntSize(class, true), Data: relaText},
	)
	return fhdr, sections, nil
}
