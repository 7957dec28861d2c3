// Package elfreader is a read-only view over the structure of an ELF file:
// its header, section table, string tables, symbol tables and relocations.
//
// Every accessor seeks and reads on the underlying file on demand; nothing
// beyond the header and the section table is kept in memory. A Reader keeps
// a single read position and is not safe for concurrent use. Open one Reader
// per goroutine instead.
package elfreader

import (
	"debug/elf"
	"io"
	"os"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Reader decodes an ELF file.
type Reader struct {
	rs     io.ReadSeeker
	closer io.Closer
	size   int64
	logger log.Logger

	profile  Profile
	header   FileHeader
	sections []SectionHeader
	shstrtab StringTable
}

// Open opens the named file and decodes its header and section table.
// The file stays open until Close is called.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader decodes the header and section table available through rs.
// The caller keeps ownership of rs.
func NewReader(rs io.ReadSeeker, opts ...Option) (*Reader, error) {
	r := &Reader{
		rs:     rs,
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "determine file size")
	}
	r.size = size

	if err := r.readHeader(); err != nil {
		return nil, err
	}
	if err := r.readSectionTable(); err != nil {
		return nil, err
	}
	level.Debug(r.logger).Log(
		"msg", "decoded section table",
		"profile", r.profile,
		"machine", r.header.Machine,
		"sections", len(r.sections),
	)
	return r, nil
}

// Close releases the file opened by Open. It is a no-op for readers built
// with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Profile returns the word size and byte order of the file.
func (r *Reader) Profile() Profile { return r.profile }

// FileHeader returns the decoded file header.
func (r *Reader) FileHeader() FileHeader { return r.header }

// Sections returns the section table in on-disk order.
func (r *Reader) Sections() []SectionHeader {
	return append([]SectionHeader(nil), r.sections...)
}

// Section returns the section at index i.
func (r *Reader) Section(i int) (SectionHeader, error) {
	if i < 0 || i >= len(r.sections) {
		return SectionHeader{}, &NotFoundError{Name: "section index " + strconv.Itoa(i)}
	}
	return r.sections[i], nil
}

// SectionName resolves the name of h through the section name string table.
func (r *Reader) SectionName(h SectionHeader) (string, error) {
	if r.shstrtab == nil {
		return "", nil
	}
	return r.shstrtab.Lookup(h.NameOff)
}

// FindSection returns the first section called name.
func (r *Reader) FindSection(name string) (SectionHeader, error) {
	for _, s := range r.sections {
		if s.Name == name {
			return s, nil
		}
	}
	return SectionHeader{}, &NotFoundError{Name: "section " + name}
}

// SectionContent reads exactly h.Size bytes starting at h.Offset.
func (r *Reader) SectionContent(h SectionHeader) ([]byte, error) {
	return r.readAt(h.Offset, h.Size, "section "+h.Name)
}

func (r *Reader) readHeader() error {
	ident := make([]byte, elf.EI_NIDENT)
	if _, err := r.rs.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek to identification")
	}
	n, err := io.ReadFull(r.rs, ident)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errors.Wrap(err, "read identification")
	}

	p, err := DetectProfile(ident[:n])
	if err != nil {
		return err
	}
	r.profile = p

	rec, err := r.decodeAt(0, FileHeaderShape)
	if err != nil {
		return err
	}
	r.header = newFileHeader(rec)

	if r.header.Shnum > 0 {
		if int(r.header.Shentsize) < SectionHeaderShape.Size(p) {
			return &FormatError{Reason: "invalid section header entry size " + strconv.Itoa(int(r.header.Shentsize))}
		}
		if r.header.Shstrndx >= r.header.Shnum {
			return &FormatError{Reason: "invalid section name table index " + strconv.Itoa(int(r.header.Shstrndx))}
		}
	}
	return nil
}

func (r *Reader) readSectionTable() error {
	h := r.header
	r.sections = make([]SectionHeader, 0, h.Shnum)
	for i := 0; i < int(h.Shnum); i++ {
		off := h.Shoff + uint64(i)*uint64(h.Shentsize)
		rec, err := r.decodeAt(off, SectionHeaderShape)
		if err != nil {
			return errors.Wrapf(err, "section %d", i)
		}
		r.sections = append(r.sections, newSectionHeader(i, rec))
	}

	if h.Shnum == 0 || elf.SectionIndex(h.Shstrndx) == elf.SHN_UNDEF {
		return nil
	}

	strtab, err := r.SectionContent(r.sections[h.Shstrndx])
	if err != nil {
		return errors.Wrap(err, "section name table")
	}
	r.shstrtab = strtab

	// Index 0 is the reserved null section and carries no name.
	for i := 1; i < len(r.sections); i++ {
		name, err := r.shstrtab.Lookup(r.sections[i].NameOff)
		if err != nil {
			return errors.Wrapf(err, "name of section %d", i)
		}
		r.sections[i].Name = name
	}
	return nil
}

// decodeAt decodes one record of shape s at file offset off.
func (r *Reader) decodeAt(off uint64, s Shape) (Record, error) {
	if _, err := r.rs.Seek(int64(off), io.SeekStart); err != nil {
		return Record{}, &DecodeError{Record: s.Name, Offset: int64(off), Err: err}
	}
	rec, err := Decode(r.rs, r.profile, s)
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			derr.Offset = int64(off)
		}
		return Record{}, err
	}
	return rec, nil
}

// readAt reads exactly size bytes at off. Ranges past the end of the file
// fail before anything is allocated.
func (r *Reader) readAt(off, size uint64, what string) ([]byte, error) {
	end := off + size
	if end < off || end > uint64(r.size) {
		return nil, &DecodeError{Record: what, Offset: int64(off), Err: io.ErrUnexpectedEOF}
	}
	if _, err := r.rs.Seek(int64(off), io.SeekStart); err != nil {
		return nil, &DecodeError{Record: what, Offset: int64(off), Err: err}
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.rs, buf); err != nil {
		return nil, &DecodeError{Record: what, Offset: int64(off), Err: err}
	}
	return buf, nil
}
