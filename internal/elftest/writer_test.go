package elftest

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter_Write(t *testing.T) {
	type fields struct {
		class elf.Class
		data  elf.Data
		opts  []Option
	}
	tests := []struct {
		name   string
		fields fields
	}{
		{
			name:   "32-bit little endian",
			fields: fields{class: elf.ELFCLASS32, data: elf.ELFDATA2LSB},
		},
		{
			name:   "64-bit big endian",
			fields: fields{class: elf.ELFCLASS64, data: elf.ELFDATA2MSB},
		},
		{
			name:   "reversed layout",
			fields: fields{class: elf.ELFCLASS64, data: elf.ELFDATA2LSB, opts: []Option{WithReversedLayout()}},
		},
		{
			name:   "padded section headers",
			fields: fields{class: elf.ELFCLASS32, data: elf.ELFDATA2MSB, opts: []Option{WithSectionHeaderPadding(16)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fhdr, sections, err := Sample(tt.fields.class, tt.fields.data, true)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "out.o")
			require.NoError(t, WriteFile(path, fhdr, sections, tt.fields.opts...))

			outElf, err := elf.Open(path)
			require.NoError(t, err)
			t.Cleanup(func() {
				outElf.Close()
			})

			require.Equal(t, tt.fields.class, outElf.Class)
			require.Equal(t, tt.fields.data, outElf.Data)
			require.Equal(t, elf.ET_REL, outElf.Type)
			require.Len(t, outElf.Sections, len(sections)+2)
			require.Equal(t, elf.SHT_NULL, outElf.Sections[0].Type)
			require.Equal(t, sectionHeaderStrTable, outElf.Sections[len(outElf.Sections)-1].Name)

			for i, want := range sections {
				got := outElf.Sections[i+1]
				require.Equal(t, want.Name, got.Name)
				require.Equal(t, want.Type, got.Type)
				require.Equal(t, want.Addr, got.Addr)
				require.Equal(t, want.Link, got.Link)

				data, err := got.Data()
				require.NoError(t, err)
				require.Equal(t, want.Data, data, want.Name)
			}

			syms, err := outElf.Symbols()
			require.NoError(t, err)
			require.Len(t, syms, len(StaticSymbols))
			for i, want := range StaticSymbols {
				require.Equal(t, want.Name, syms[i].Name)
				require.Equal(t, want.Value, syms[i].Value)
				require.Equal(t, want.Size, syms[i].Size)
			}

			dyn, err := outElf.DynamicSymbols()
			require.NoError(t, err)
			require.Len(t, dyn, len(DynamicSymbols))
		})
	}
}

func TestNew(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.o"))
	require.NoError(t, err)
	defer f.Close()

	_, err = New(f, &FileHeader{Class: elf.ELFCLASS64})
	require.EqualError(t, err, "byte order has to be specified")

	_, err = New(f, &FileHeader{Data: elf.ELFDATA2LSB})
	require.EqualError(t, err, "unknown ELF class")
}

func TestRelEntSize(t *testing.T) {
	require.Equal(t, uint64(8), RelEntSize(elf.ELFCLASS32, false))
	require.Equal(t, uint64(12), RelEntSize(elf.ELFCLASS32, true))
	require.Equal(t, uint64(16), RelEntSize(elf.ELFCLASS64, false))
	require.Equal(t, uint64(24), RelEntSize(elf.ELFCLASS64, true))
	require.Equal(t, uint64(16), SymEntSize(elf.ELFCLASS32))
	require.Equal(t, uint64(24), SymEntSize(elf.ELFCLASS64))
}
