package elfreader

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// SymbolKind selects which symbol section pair to read.
type SymbolKind int

const (
	// Static reads .symtab with names from .strtab.
	Static SymbolKind = iota
	// Dynamic reads .dynsym with names from .dynstr.
	Dynamic
)

const (
	staticSymbols  = ".symtab"
	staticStrings  = ".strtab"
	dynamicSymbols = ".dynsym"
	dynamicStrings = ".dynstr"
)

func (k SymbolKind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

func (k SymbolKind) sectionNames() (symtab, strtab string) {
	if k == Dynamic {
		return dynamicSymbols, dynamicStrings
	}
	return staticSymbols, staticStrings
}

// Symbols reads the symbol table of the given kind and maps each symbol name
// to its record. A file without the symbol or string section yields an empty
// map. If two symbols share a name the later one wins.
func (r *Reader) Symbols(kind SymbolKind) (map[string]Symbol, error) {
	symtab, strtab := kind.sectionNames()
	syms, err := r.symbolTable(symtab, strtab)
	if err != nil {
		return nil, errors.Wrapf(err, "%s symbols", kind)
	}
	return syms, nil
}

func (r *Reader) symbolTable(symName, strName string) (map[string]Symbol, error) {
	var notFound *NotFoundError
	symsec, err := r.FindSection(symName)
	if errors.As(err, &notFound) {
		return map[string]Symbol{}, nil
	}
	strsec, err := r.FindSection(strName)
	if errors.As(err, &notFound) {
		return map[string]Symbol{}, nil
	}

	content, err := r.SectionContent(strsec)
	if err != nil {
		return nil, err
	}
	strtab := StringTable(content)

	recs, err := r.decodeTable(symsec, SymbolShape(r.profile))
	if err != nil {
		return nil, err
	}

	syms := make(map[string]Symbol, len(recs))
	for i, rec := range recs {
		sym := newSymbol(i, rec)
		sym.Name, err = strtab.Lookup(sym.NameOff)
		if err != nil {
			return nil, errors.Wrapf(err, "name of symbol %d", i)
		}
		syms[sym.Name] = sym
	}
	level.Debug(r.logger).Log("msg", "decoded symbols", "section", symName, "entries", len(recs))
	return syms, nil
}

// decodeTable decodes every entry of a table section h. The section's entry
// size must divide its size and be large enough to hold shape s. An empty
// section has no entries whatever its entry size.
func (r *Reader) decodeTable(h SectionHeader, s Shape) ([]Record, error) {
	if h.Size == 0 {
		return nil, nil
	}
	recSize := uint64(s.Size(r.profile))
	if h.Entsize < recSize {
		return nil, &DecodeError{
			Record: h.Name,
			Offset: int64(h.Offset),
			Err:    errors.Errorf("entry size %d smaller than %s record size %d", h.Entsize, s.Name, recSize),
		}
	}
	if h.Size%h.Entsize != 0 {
		return nil, &DecodeError{
			Record: h.Name,
			Offset: int64(h.Offset),
			Err:    errors.Errorf("size %d is not a multiple of entry size %d", h.Size, h.Entsize),
		}
	}

	content, err := r.SectionContent(h)
	if err != nil {
		return nil, err
	}
	n := h.Size / h.Entsize
	recs := make([]Record, 0, n)
	for i := uint64(0); i < n; i++ {
		recs = append(recs, decodeBytes(content[i*h.Entsize:], r.profile, s))
	}
	return recs, nil
}
