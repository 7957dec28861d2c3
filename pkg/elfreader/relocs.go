package elfreader

import (
	"debug/elf"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Relocations decodes every SHT_REL and SHT_RELA section, keyed by section
// name. Each table carries the symbol table its sh_link points at when that
// is .symtab or .dynsym.
//
// A section that fails to decode is left out of the map and does not stop
// the others. The returned map then holds every table that did decode, and
// the error describes the first failure.
func (r *Reader) Relocations() (map[string]RelocationTable, error) {
	var (
		tables   = make(map[string]RelocationTable)
		symtabs  = make(map[SymbolKind]map[string]Symbol)
		firstErr error
	)

	for _, sec := range r.sections {
		if !sec.IsRelocation() {
			continue
		}

		t, err := r.relocationTable(sec, symtabs)
		if err != nil {
			err = errors.Wrapf(err, "relocation section %s", sec.Name)
			level.Warn(r.logger).Log("msg", "skipping relocation section", "section", sec.Name, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		level.Debug(r.logger).Log("msg", "decoded relocations", "section", sec.Name, "entries", len(t.Entries))
		tables[sec.Name] = t
	}
	return tables, firstErr
}

// relocationTable decodes one relocation section. Symbol tables are built
// at most once and shared through symtabs.
func (r *Reader) relocationTable(sec SectionHeader, symtabs map[SymbolKind]map[string]Symbol) (RelocationTable, error) {
	t := RelocationTable{Section: sec}
	if kind, ok := r.linkedSymbolKind(sec); ok {
		syms, cached := symtabs[kind]
		if !cached {
			var err error
			syms, err = r.Symbols(kind)
			if err != nil {
				return RelocationTable{}, err
			}
			symtabs[kind] = syms
		}
		t.Symbols = syms
	}

	shape := RelShape
	if sec.Type == elf.SHT_RELA {
		shape = RelaShape
	}
	recs, err := r.decodeTable(sec, shape)
	if err != nil {
		return RelocationTable{}, err
	}
	t.Entries = make([]Relocation, 0, len(recs))
	for _, rec := range recs {
		t.Entries = append(t.Entries, newRelocation(r.profile, rec))
	}
	return t, nil
}

// linkedSymbolKind reports which symbol table sec links to. Links to any
// other section, or out of range, attach no symbols.
func (r *Reader) linkedSymbolKind(sec SectionHeader) (SymbolKind, bool) {
	linked, err := r.Section(int(sec.Link))
	if err != nil {
		return 0, false
	}
	switch linked.Name {
	case staticSymbols:
		return Static, true
	case dynamicSymbols:
		return Dynamic, true
	}
	return 0, false
}
