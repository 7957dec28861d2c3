package elfreader

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polarsignals/elf-reader/internal/elftest"
)

func TestAddressToOffset(t *testing.T) {
	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			r := openSample(t, writeSample(t, p.class, p.data, true, elftest.WithReversedLayout()))
			text, err := r.FindSection(".text")
			require.NoError(t, err)
			data, err := r.FindSection(".data")
			require.NoError(t, err)

			off, err := r.AddressToOffset(elftest.TextAddr)
			require.NoError(t, err)
			require.Equal(t, int64(text.Offset), off)

			off, err = r.AddressToOffset(elftest.TextAddr + 9)
			require.NoError(t, err)
			require.Equal(t, int64(text.Offset)+9, off)

			off, err = r.AddressToOffset(elftest.DataAddr + 7)
			require.NoError(t, err)
			require.Equal(t, int64(data.Offset)+7, off)

			_, err = r.AddressToOffset(elftest.DataAddr + 8)
			var rerr *RangeError
			require.ErrorAs(t, err, &rerr)
			require.Equal(t, uint64(elftest.DataAddr+8), rerr.Addr)
			require.EqualError(t, err, "elf: address out of range: 0x2008")
		})
	}
}

func TestLoadSymbol(t *testing.T) {
	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			r := openSample(t, writeSample(t, p.class, p.data, true))
			syms, err := r.Symbols(Static)
			require.NoError(t, err)

			b, err := r.LoadSymbol(syms["main"])
			require.NoError(t, err)
			require.Equal(t, elftest.TextData[:4], b)

			b, err = r.LoadSymbol(syms["helper"])
			require.NoError(t, err)
			require.Equal(t, elftest.TextData[4:12], b)

			b, err = r.LoadSymbol(syms["counter"])
			require.NoError(t, err)
			require.Equal(t, elftest.DataData, b)

			_, err = r.LoadSymbol(syms["edge"])
			var rerr *RangeError
			require.ErrorAs(t, err, &rerr)
		})
	}
}
