package elfutils

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/polarsignals/elf-reader/pkg/elfreader"
)

// Open checks the magic number of the file at filePath and opens it with an
// elfreader.Reader.
func Open(filePath string, opts ...elfreader.Option) (*elfreader.Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", filePath, err)
	}
	defer f.Close()

	// Read the first 4 bytes of the file.
	var header [4]byte
	if _, err = io.ReadFull(f, header[:]); err != nil {
		return nil, fmt.Errorf("error reading magic number from %s: %w", filePath, err)
	}

	// Match against supported file types.
	if elfMagic := string(header[:]); elfMagic == elf.ELFMAG {
		r, err := elfreader.Open(filePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("error reading ELF file %s: %w", filePath, err)
		}
		return r, nil
	}

	return nil, fmt.Errorf("unrecognized object file format %s: %w", filePath, &elfreader.FormatError{Reason: "not an ELF file"})
}

// SortedSymbols returns the symbols of a table in section order.
func SortedSymbols(syms map[string]elfreader.Symbol) []elfreader.Symbol {
	ret := make([]elfreader.Symbol, 0, len(syms))
	for _, sym := range syms {
		ret = append(ret, sym)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Number < ret[j].Number
	})
	return ret
}

// Symbolicate names addr as symbol+offset using the closest symbol whose
// [Value, Value+Size) range contains it. It returns false when no symbol does.
func Symbolicate(syms map[string]elfreader.Symbol, addr uint64) (string, bool) {
	var (
		best  elfreader.Symbol
		found bool
	)
	for _, sym := range SortedSymbols(syms) {
		if sym.Name == "" || addr < sym.Value || addr-sym.Value >= sym.Size {
			continue
		}
		if !found || sym.Value > best.Value {
			best, found = sym, true
		}
	}
	if !found {
		return "", false
	}
	if off := addr - best.Value; off > 0 {
		return fmt.Sprintf("%s+0x%x", best.Name, off), true
	}
	return best.Name, true
}
