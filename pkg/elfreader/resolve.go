package elfreader

// AddressToOffset maps a virtual address to a file offset using the first
// section, in table order, whose [Addr, Addr+Size) range contains it.
func (r *Reader) AddressToOffset(addr uint64) (int64, error) {
	for _, s := range r.sections {
		if s.Addr <= addr && addr-s.Addr < s.Size {
			return int64(s.Offset + (addr - s.Addr)), nil
		}
	}
	return 0, &RangeError{Addr: addr}
}

// LoadSymbol reads the sym.Size bytes backing sym.
func (r *Reader) LoadSymbol(sym Symbol) ([]byte, error) {
	off, err := r.AddressToOffset(sym.Value)
	if err != nil {
		return nil, err
	}
	return r.readAt(uint64(off), sym.Size, "symbol "+sym.Name)
}
