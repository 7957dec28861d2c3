// Package elftest synthesizes small ELF images to read back in tests.
//
// Only what fixtures need is written: a file header, the section contents and
// the section header table. Program headers are never written.
package elftest

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lunixbochs/struc"
	"golang.org/x/sys/unix"
)

const sectionHeaderStrTable = ".shstrtab"

// WriteCloserSeeker is the union of io.Writer, io.Closer and io.Seeker.
type WriteCloserSeeker interface {
	io.Writer
	io.Seeker
	io.Closer
}

// FileHeader holds the header fields a fixture controls.
type FileHeader struct {
	Class   elf.Class
	Data    elf.Data
	Type    elf.Type
	Machine elf.Machine
	Entry   uint64
}

// Section is one section to write. The writer puts a null section in front
// of the caller's sections, so Sections[i] ends up at index i+1, and appends
// .shstrtab last.
type Section struct {
	Name      string
	Type      elf.SectionType
	Flags     elf.SectionFlag
	Addr      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
	Data      []byte
	// Size, when non-zero, is written as sh_size instead of len(Data).
	Size uint64
}

func (s *Section) size() uint64 {
	if s.Size != 0 {
		return s.Size
	}
	return uint64(len(s.Data))
}

// Writer writes ELF files.
type Writer struct {
	w         WriteCloserSeeker
	byteOrder binary.ByteOrder
	fhdr      FileHeader

	Err error

	Sections []*Section
	shStrIdx map[string]int

	reversed bool // write section contents last to first
	shpad    int  // extra bytes after every section header entry
}

// New creates a new Writer.
func New(w WriteCloserSeeker, fhdr *FileHeader, opts ...Option) (*Writer, error) {
	var bo binary.ByteOrder
	switch fhdr.Data {
	case elf.ELFDATA2LSB:
		bo = binary.LittleEndian
	case elf.ELFDATA2MSB:
		bo = binary.BigEndian
	default:
		return nil, errors.New("byte order has to be specified")
	}

	switch fhdr.Class {
	case elf.ELFCLASS32:
	case elf.ELFCLASS64:
		// Ok
	default:
		return nil, errors.New("unknown ELF class")
	}

	wrt := &Writer{
		w:         w,
		byteOrder: bo,
		fhdr:      *fhdr,
		shStrIdx:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(wrt)
	}

	// Reserve room for the header, it is rewritten once the layout is known.
	if err := wrt.writeFileHeader(0, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to write file header: %w", err)
	}
	return wrt, nil
}

// WriteFile writes an image with the given sections to path.
func WriteFile(path string, fhdr *FileHeader, sections []*Section, opts ...Option) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := New(f, fhdr, opts...)
	if err != nil {
		f.Close()
		return err
	}
	w.Sections = sections
	if err := w.Write(); err != nil {
		f.Close()
		return err
	}
	return w.Close()
}

// Write writes the section contents and the section header table, then
// patches the file header.
func (w *Writer) Write() error {
	// +-------------------------------+
	// | ELF File Header               |
	// +-------------------------------+
	// | Contents (Byte Stream)        |
	// | ...                           |
	// +-------------------------------+
	// | ".shstrtab" contents          |
	// +-------------------------------+
	// | Section Header for section #0 |
	// +-------------------------------+
	// | ...                           |
	// +-------------------------------+
	stw := make([]*Section, 0, len(w.Sections)+2)
	stw = append(stw, &Section{Type: elf.SHT_NULL})
	stw = append(stw, w.Sections...)

	shstrtab := &Section{
		Name:      sectionHeaderStrTable,
		Type:      elf.SHT_STRTAB,
		Addralign: 1,
	}
	stw = append(stw, shstrtab)

	names := make([]string, len(stw))
	for i, sec := range stw {
		names[i] = sec.Name
	}
	shstrtab.Data = w.strtab(names)
	if w.Err != nil {
		return w.Err
	}

	order := make([]int, 0, len(stw))
	for i := 1; i < len(stw); i++ {
		order = append(order, i)
	}
	if w.reversed {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	offsets := make([]uint64, len(stw))
	for _, i := range order {
		sec := stw[i]
		if sec.Addralign > 1 {
			w.align(int64(sec.Addralign))
		}
		offsets[i] = uint64(w.here())
		w.write(sec.Data)
	}

	w.align(8)
	shoff := w.here()
	for i, sec := range stw {
		w.writeSectionHeader(sec, offsets[i])
		if w.shpad > 0 {
			w.write(make([]byte, w.shpad))
		}
	}
	if w.Err != nil {
		return w.Err
	}

	// Patch file header.
	w.seek(0, io.SeekStart)
	if err := w.writeFileHeader(uint64(shoff), len(stw), len(stw)-1); err != nil {
		return err
	}
	w.seek(0, io.SeekEnd)
	return w.Err
}

type header32 struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type header64 struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type section32 struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Off       uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

type section64 struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

// writeFileHeader writes the file header at the current location.
func (w *Writer) writeFileHeader(shoff uint64, shnum, shstrndx int) error {
	fhdr := w.fhdr

	// e_ident
	w.write([]byte{
		0x7f, 'E', 'L', 'F', // Magic number
		byte(fhdr.Class),
		byte(fhdr.Data),
		byte(elf.EV_CURRENT),
		byte(elf.ELFOSABI_NONE),
		0,                   // ABI version
		0, 0, 0, 0, 0, 0, 0, // Padding
	})

	var (
		hdr    interface{}
		ehsize int64
	)
	switch fhdr.Class {
	case elf.ELFCLASS32:
		ehsize = 52
		hdr = &header32{
			Type:      uint16(fhdr.Type),
			Machine:   uint16(fhdr.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     uint32(fhdr.Entry),
			Shoff:     uint32(shoff),
			Ehsize:    uint16(ehsize),
			Phentsize: 32,
			Shentsize: uint16(40 + w.shpad),
			Shnum:     uint16(shnum),
			Shstrndx:  uint16(shstrndx),
		}
	case elf.ELFCLASS64:
		ehsize = 64
		hdr = &header64{
			Type:      uint16(fhdr.Type),
			Machine:   uint16(fhdr.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     fhdr.Entry,
			Shoff:     shoff,
			Ehsize:    uint16(ehsize),
			Phentsize: 56,
			Shentsize: uint16(64 + w.shpad),
			Shnum:     uint16(shnum),
			Shstrndx:  uint16(shstrndx),
		}
	}
	w.pack(hdr)

	if w.Err != nil {
		return w.Err
	}
	// Sanity check, size of file header should be the same as ehsize
	if sz := w.here(); sz != ehsize {
		return errors.New("internal error, ELF header size")
	}
	return nil
}

func (w *Writer) writeSectionHeader(sec *Section, off uint64) {
	name := uint32(0)
	if sec.Name != "" {
		name = uint32(w.shStrIdx[sec.Name])
	}

	switch w.fhdr.Class {
	case elf.ELFCLASS32:
		w.pack(&section32{
			Name:      name,
			Type:      uint32(sec.Type),
			Flags:     uint32(sec.Flags),
			Addr:      uint32(sec.Addr),
			Off:       uint32(off),
			Size:      uint32(sec.size()),
			Link:      sec.Link,
			Info:      sec.Info,
			Addralign: uint32(sec.Addralign),
			Entsize:   uint32(sec.Entsize),
		})
	case elf.ELFCLASS64:
		w.pack(&section64{
			Name:      name,
			Type:      uint32(sec.Type),
			Flags:     uint64(sec.Flags),
			Addr:      sec.Addr,
			Off:       off,
			Size:      sec.size(),
			Link:      sec.Link,
			Info:      sec.Info,
			Addralign: sec.Addralign,
			Entsize:   sec.Entsize,
		})
	}
}

// Close closes the WriteCloseSeeker.
func (w *Writer) Close() error {
	var err error
	if w.w != nil {
		err = w.w.Close()
	}
	return err
}

// here returns the current seek offset from the start of the file.
func (w *Writer) here() int64 {
	r, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil && w.Err == nil {
		w.Err = err
	}
	return r
}

// seek moves the cursor to the point calculated using offset and starting point.
func (w *Writer) seek(offset int64, whence int) {
	_, err := w.w.Seek(offset, whence)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

// align writes as many padding bytes as needed to make the current file
// offset a multiple of align.
func (w *Writer) align(align int64) {
	off := w.here()
	alignOff := (off + (align - 1)) &^ (align - 1)
	if alignOff-off > 0 {
		w.write(make([]byte, alignOff-off))
	}
}

func (w *Writer) write(buf []byte) {
	_, err := w.w.Write(buf)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

func (w *Writer) pack(v interface{}) {
	err := struc.PackWithOrder(w.w, v, w.byteOrder)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

// strtab returns the given strings in string table format and records the
// offset of each one.
func (w *Writer) strtab(strs []string) []byte {
	// http://www.sco.com/developers/gabi/2003-12-17/ch4.strtab.html
	buf := []byte{0}
	for _, s := range strs {
		if s == "" {
			continue
		}
		if _, ok := w.shStrIdx[s]; ok {
			continue
		}
		data, err := unix.ByteSliceFromString(s)
		if err != nil {
			if w.Err == nil {
				w.Err = err
			}
			break
		}
		w.shStrIdx[s] = len(buf)
		buf = append(buf, data...)
	}
	return buf
}
