package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/polarsignals/elf-reader/pkg/elfreader"
	"github.com/polarsignals/elf-reader/pkg/elfutils"
	"github.com/polarsignals/elf-reader/pkg/logger"
)

type flags struct {
	LogLevel  string `kong:"enum='error,warn,info,debug',help='Log level.',default='info'"`
	LogFormat string `kong:"enum='logfmt,json',help='Log format.',default='logfmt'"`
	Path      string `kong:"required,arg,name='path',help='File path to the ELF object file to read.',type:'path'"`

	Sections    bool   `kong:"help='Print the section table.'"`
	Symbols     bool   `kong:"help='Print the static symbol table (.symtab).'"`
	Dynamic     bool   `kong:"help='Print the dynamic symbol table (.dynsym).'"`
	Relocations bool   `kong:"help='Print relocation entries.'"`
	Dump        string `kong:"help='Hex dump the bytes backing the named symbol.',placeholder='SYMBOL'"`
	Addr        string `kong:"help='Name the symbol containing the given address.',placeholder='ADDR'"`
}

func main() {
	flags := flags{}
	_ = kong.Parse(&flags)
	l := logger.NewLogger(flags.LogLevel, flags.LogFormat, "")
	if err := run(l, os.Stdout, flags); err != nil {
		level.Error(l).Log("err", err)
		os.Exit(1)
	}
	level.Debug(l).Log("msg", "done!")
}

func run(l log.Logger, out io.Writer, flags flags) error {
	r, err := elfutils.Open(flags.Path, elfreader.WithLogger(l))
	if err != nil {
		return fmt.Errorf("failed to open given file: %w", err)
	}
	defer r.Close()

	// Without a view selected, print the header and section table.
	if !flags.Sections && !flags.Symbols && !flags.Dynamic && !flags.Relocations && flags.Dump == "" && flags.Addr == "" {
		printHeader(out, r)
		flags.Sections = true
	}

	if flags.Sections {
		if err := printSections(out, r); err != nil {
			return err
		}
	}
	if flags.Symbols {
		if err := printSymbols(out, r, elfreader.Static); err != nil {
			return err
		}
	}
	if flags.Dynamic {
		if err := printSymbols(out, r, elfreader.Dynamic); err != nil {
			return err
		}
	}
	if flags.Relocations {
		if err := printRelocations(out, r); err != nil {
			return err
		}
	}
	if flags.Dump != "" {
		if err := dumpSymbol(out, r, flags.Dump); err != nil {
			return err
		}
	}
	if flags.Addr != "" {
		if err := symbolicate(out, r, flags.Addr); err != nil {
			return err
		}
	}
	return nil
}

func printHeader(out io.Writer, r *elfreader.Reader) {
	h := r.FileHeader()
	fmt.Fprintf(out, "Class:    %s\n", r.Profile().Class)
	fmt.Fprintf(out, "Data:     %s\n", r.Profile().Data)
	fmt.Fprintf(out, "Type:     %s\n", h.Type)
	fmt.Fprintf(out, "Machine:  %s\n", h.Machine)
	fmt.Fprintf(out, "Entry:    %#x\n", h.Entry)
	fmt.Fprintf(out, "Sections: %d at %#x\n\n", h.Shnum, h.Shoff)
}

func printSections(out io.Writer, r *elfreader.Reader) error {
	tw := tabwriter.NewWriter(out, 0, 8, 1, ' ', 0)
	fmt.Fprintln(tw, "[Nr]\tName\tType\tAddr\tOff\tSize\tES\tLk\tInf")
	for _, s := range r.Sections() {
		fmt.Fprintf(tw, "[%d]\t%s\t%s\t%#x\t%#x\t%#x\t%d\t%d\t%d\n",
			s.Index, s.Name, s.Type, s.Addr, s.Offset, s.Size, s.Entsize, s.Link, s.Info)
	}
	return tw.Flush()
}

func printSymbols(out io.Writer, r *elfreader.Reader, kind elfreader.SymbolKind) error {
	syms, err := r.Symbols(kind)
	if err != nil {
		return fmt.Errorf("failed to read symbols: %w", err)
	}
	fmt.Fprintf(out, "%s symbols (%d):\n", kind, len(syms))
	tw := tabwriter.NewWriter(out, 0, 8, 1, ' ', 0)
	fmt.Fprintln(tw, "Num\tValue\tSize\tType\tBind\tNdx\tName")
	for _, sym := range elfutils.SortedSymbols(syms) {
		fmt.Fprintf(tw, "%d\t%#x\t%d\t%s\t%s\t%d\t%s\n",
			sym.Number, sym.Value, sym.Size, sym.Type(), sym.Bind(), sym.Shndx, sym.Name)
	}
	return tw.Flush()
}

func printRelocations(out io.Writer, r *elfreader.Reader) error {
	// Sections that decoded are printed even when another one failed.
	tables, relErr := r.Relocations()
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := tables[name]
		fmt.Fprintf(out, "Relocation section %s (%d entries):\n", name, len(t.Entries))

		// Relocation entries refer to symbols by position.
		byNumber := make(map[uint32]string, len(t.Symbols))
		for symName, sym := range t.Symbols {
			byNumber[uint32(sym.Number)] = symName
		}

		tw := tabwriter.NewWriter(out, 0, 8, 1, ' ', 0)
		fmt.Fprintln(tw, "Offset\tInfo\tType\tSym\tAddend\tName")
		for _, e := range t.Entries {
			fmt.Fprintf(tw, "%#x\t%#x\t%d\t%d\t%d\t%s\n", e.Offset, e.Info, e.Type, e.Sym, e.Addend, byNumber[e.Sym])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if relErr != nil {
		return fmt.Errorf("failed to read relocations: %w", relErr)
	}
	return nil
}

func dumpSymbol(out io.Writer, r *elfreader.Reader, name string) error {
	for _, kind := range []elfreader.SymbolKind{elfreader.Static, elfreader.Dynamic} {
		syms, err := r.Symbols(kind)
		if err != nil {
			return fmt.Errorf("failed to read symbols: %w", err)
		}
		sym, ok := syms[name]
		if !ok {
			continue
		}
		data, err := r.LoadSymbol(sym)
		if err != nil {
			return fmt.Errorf("failed to load symbol %s: %w", name, err)
		}
		fmt.Fprintf(out, "%s (%s, %#x, %d bytes):\n", name, kind, sym.Value, sym.Size)
		_, err = io.WriteString(out, hex.Dump(data))
		return err
	}
	return fmt.Errorf("symbol %s not found", name)
}

func symbolicate(out io.Writer, r *elfreader.Reader, addr string) error {
	a, err := strconv.ParseUint(addr, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	syms, err := r.Symbols(elfreader.Static)
	if err != nil {
		return fmt.Errorf("failed to read symbols: %w", err)
	}
	name, ok := elfutils.Symbolicate(syms, a)
	if !ok {
		return fmt.Errorf("no symbol contains %#x", a)
	}
	fmt.Fprintln(out, name)
	return nil
}
