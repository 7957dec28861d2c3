package elfreader

import (
	"bytes"
	"strconv"
)

// StringTable is the raw content of a SHT_STRTAB section.
type StringTable []byte

// Lookup returns the NUL-terminated string starting at off. A string with no
// terminator runs to the end of the table.
func (t StringTable) Lookup(off uint32) (string, error) {
	if uint64(off) >= uint64(len(t)) {
		return "", &NotFoundError{Name: "string table offset " + strconv.FormatUint(uint64(off), 10)}
	}
	b := t[off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}
