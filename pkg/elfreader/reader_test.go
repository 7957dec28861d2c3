package elfreader

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/elf-reader/internal/elftest"
)

var profiles = []struct {
	name  string
	class elf.Class
	data  elf.Data
}{
	{"elf32-lsb", elf.ELFCLASS32, elf.ELFDATA2LSB},
	{"elf32-msb", elf.ELFCLASS32, elf.ELFDATA2MSB},
	{"elf64-lsb", elf.ELFCLASS64, elf.ELFDATA2LSB},
	{"elf64-msb", elf.ELFCLASS64, elf.ELFDATA2MSB},
}

func writeSample(t *testing.T, class elf.Class, data elf.Data, dynamic bool, opts ...elftest.Option) string {
	t.Helper()
	fhdr, sections, err := elftest.Sample(class, data, dynamic)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "sample.o")
	require.NoError(t, elftest.WriteFile(path, fhdr, sections, opts...))
	return path
}

func writeSections(t *testing.T, class elf.Class, data elf.Data, sections []*elftest.Section) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custom.o")
	fhdr := &elftest.FileHeader{Class: class, Data: data, Type: elf.ET_REL, Machine: elf.EM_386}
	require.NoError(t, elftest.WriteFile(path, fhdr, sections))
	return path
}

func openSample(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Close())
	})
	return r
}

func TestOpen(t *testing.T) {
	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			r := openSample(t, writeSample(t, p.class, p.data, true))

			require.Equal(t, p.class, r.Profile().Class)
			require.Equal(t, p.data, r.Profile().Data)

			h := r.FileHeader()
			require.Equal(t, []byte(elf.ELFMAG), h.Ident[:4])
			require.Equal(t, elf.ET_REL, h.Type)
			require.Equal(t, elf.EM_X86_64, h.Machine)
			require.Equal(t, uint32(elf.EV_CURRENT), h.Version)
			require.Equal(t, uint16(FileHeaderShape.Size(r.Profile())), h.Ehsize)
			require.Equal(t, uint16(11), h.Shnum)
			require.Equal(t, uint16(10), h.Shstrndx)

			sections := r.Sections()
			require.Len(t, sections, 11)
			require.Equal(t, elf.SHT_NULL, sections[0].Type)
			require.Equal(t, "", sections[0].Name)

			want := []string{"", ".text", ".data", ".symtab", ".strtab", ".dynsym", ".dynstr", ".rela.text", ".rel.dyn", ".rel.note", ".shstrtab"}
			for i, s := range sections {
				require.Equal(t, i, s.Index)
				require.Equal(t, want[i], s.Name)

				name, err := r.SectionName(s)
				require.NoError(t, err)
				require.Equal(t, want[i], name)
			}

			text := sections[elftest.TextIndex]
			require.Equal(t, uint64(elftest.TextAddr), text.Addr)
			require.Equal(t, uint64(len(elftest.TextData)), text.Size)
			require.Equal(t, elf.SHF_ALLOC|elf.SHF_EXECINSTR, text.Flags)
			require.Equal(t, uint32(elftest.StrtabIndex), sections[elftest.SymtabIndex].Link)
		})
	}
}

func TestOpenIdempotent(t *testing.T) {
	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			path := writeSample(t, p.class, p.data, true)
			first := openSample(t, path)
			second := openSample(t, path)

			if diff := cmp.Diff(first.Sections(), second.Sections()); diff != "" {
				t.Fatalf("section tables differ (-first +second):\n%s", diff)
			}
			require.Equal(t, first.FileHeader(), second.FileHeader())
		})
	}
}

func TestOpenMatchesDebugElf(t *testing.T) {
	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			path := writeSample(t, p.class, p.data, true, elftest.WithReversedLayout())
			r := openSample(t, path)

			std, err := elf.Open(path)
			require.NoError(t, err)
			t.Cleanup(func() {
				std.Close()
			})

			sections := r.Sections()
			require.Len(t, sections, len(std.Sections))
			for i, s := range std.Sections {
				require.Equal(t, s.Name, sections[i].Name)
				require.Equal(t, s.Type, sections[i].Type)
				require.Equal(t, s.Offset, sections[i].Offset)
				require.Equal(t, s.Size, sections[i].Size)
				require.Equal(t, s.Link, sections[i].Link)
				require.Equal(t, s.Entsize, sections[i].Entsize)
			}
		})
	}
}

func TestOpenInvalid(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, b []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, b, 0o644))
		return path
	}

	tests := []struct {
		name   string
		path   string
		reason string
	}{
		{name: "text file", path: write("text", []byte("#!/bin/sh\necho not an object file\n")), reason: "not an ELF file"},
		{name: "empty", path: write("empty", nil), reason: "not an ELF file"},
		{name: "bad class", path: write("class", ident(elf.Class(9), elf.ELFDATA2LSB)), reason: "unsupported file class"},
		{name: "bad encoding", path: write("data", ident(elf.ELFCLASS64, elf.Data(9))), reason: "unsupported encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Open(tt.path)
			require.Nil(t, r)
			var ferr *FormatError
			require.ErrorAs(t, err, &ferr)
			require.Equal(t, tt.reason, ferr.Reason)
		})
	}

	t.Run("truncated header", func(t *testing.T) {
		_, err := Open(write("short", ident(elf.ELFCLASS64, elf.ELFDATA2LSB)))
		var derr *DecodeError
		require.ErrorAs(t, err, &derr)
		require.Equal(t, "file header", derr.Record)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "does-not-exist"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOpenSectionHeaderPadding(t *testing.T) {
	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			padded := openSample(t, writeSample(t, p.class, p.data, true, elftest.WithSectionHeaderPadding(8)))
			plain := openSample(t, writeSample(t, p.class, p.data, true))

			require.Equal(t, plain.FileHeader().Shentsize+8, padded.FileHeader().Shentsize)
			require.Len(t, padded.Sections(), len(plain.Sections()))
			for i, s := range padded.Sections() {
				require.Equal(t, plain.Sections()[i].Name, s.Name)
				require.Equal(t, plain.Sections()[i].Size, s.Size)
			}
		})
	}
}

func TestFindSection(t *testing.T) {
	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			r := openSample(t, writeSample(t, p.class, p.data, true))

			s, err := r.FindSection(".data")
			require.NoError(t, err)
			require.Equal(t, elftest.DataIndex, s.Index)
			require.Equal(t, uint64(elftest.DataAddr), s.Addr)

			_, err = r.FindSection(".bss")
			var nerr *NotFoundError
			require.ErrorAs(t, err, &nerr)
			require.Equal(t, "section .bss", nerr.Name)

			got, err := r.Section(elftest.DataIndex)
			require.NoError(t, err)
			require.Equal(t, s, got)

			_, err = r.Section(len(r.Sections()))
			require.ErrorAs(t, err, &nerr)
			_, err = r.Section(-1)
			require.ErrorAs(t, err, &nerr)
		})
	}
}

func TestSectionContent(t *testing.T) {
	layouts := []struct {
		name string
		opts []elftest.Option
	}{
		{name: "ordered"},
		{name: "reversed", opts: []elftest.Option{elftest.WithReversedLayout()}},
	}
	for _, p := range profiles {
		for _, l := range layouts {
			t.Run(p.name+"/"+l.name, func(t *testing.T) {
				path := writeSample(t, p.class, p.data, true, l.opts...)
				r := openSample(t, path)

				raw, err := os.ReadFile(path)
				require.NoError(t, err)

				for _, s := range r.Sections() {
					content, err := r.SectionContent(s)
					require.NoError(t, err)
					require.Len(t, content, int(s.Size), s.Name)
					require.Equal(t, raw[s.Offset:s.Offset+s.Size], content, s.Name)
				}

				text, err := r.FindSection(".text")
				require.NoError(t, err)
				content, err := r.SectionContent(text)
				require.NoError(t, err)
				require.Equal(t, elftest.TextData, content)
			})
		}
	}
}

func TestSectionContentPastEOF(t *testing.T) {
	path := writeSections(t, elf.ELFCLASS32, elf.ELFDATA2LSB, []*elftest.Section{
		{Name: ".data", Type: elf.SHT_PROGBITS, Addr: 0x100, Data: []byte{1, 2, 3, 4}, Size: 1 << 20},
	})
	r := openSample(t, path)

	s, err := r.FindSection(".data")
	require.NoError(t, err)
	_, err = r.SectionContent(s)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, "section .data", derr.Record)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := level.NewFilter(log.NewLogfmtLogger(&buf), level.AllowDebug())

	r, err := Open(writeSample(t, elf.ELFCLASS64, elf.ELFDATA2LSB, true), WithLogger(logger))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Symbols(Static)
	require.NoError(t, err)

	require.Contains(t, buf.String(), `msg="decoded section table"`)
	require.Contains(t, buf.String(), "sections=11")
	require.Contains(t, buf.String(), "section=.symtab")
}

func TestNewReader(t *testing.T) {
	raw, err := os.ReadFile(writeSample(t, elf.ELFCLASS32, elf.ELFDATA2MSB, false))
	require.NoError(t, err)

	r, err := NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Len(t, r.Sections(), 7)
}
