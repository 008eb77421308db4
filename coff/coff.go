package coff

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	db "ukern/debug"
	"ukern/serr"
)

//
// Executable images. An image has an entry point and a list of
// sections; each section covers Length contiguous virtual pages
// starting at FirstVPN and is loaded verbatim, zero-filling whatever
// part of its pages Data does not cover.
//
// On-disk layout (little endian):
//   magic   [4]byte "UCOF"
//   entry   uint32
//   nsect   uint32
//   per section:
//     namelen uint16, name
//     vpn     uint32
//     npages  uint32
//     ro      uint8
//     datalen uint32, data
//

var MAGIC = [4]byte{'U', 'C', 'O', 'F'}

const MAXSECT = 64

type Section struct {
	Name     string
	FirstVPN int
	Length   int // in pages
	ReadOnly bool
	Data     []byte
}

// Copy page spn of the section into page.
func (s *Section) LoadPage(spn int, page []byte) {
	if spn < 0 || spn >= s.Length {
		panic(fmt.Sprintf("section %v: page %d out of range", s.Name, spn))
	}
	off := spn * len(page)
	n := 0
	if off < len(s.Data) {
		n = copy(page, s.Data[off:])
	}
	clear(page[n:])
}

func (s *Section) String() string {
	return fmt.Sprintf("&{ %v vpn:%d npages:%d ro:%v data:%d }", s.Name, s.FirstVPN, s.Length, s.ReadOnly, len(s.Data))
}

// A parsed executable image. Images are immutable once parsed and may
// be shared between processes.
type Image struct {
	Entry    int
	Sections []*Section
}

func (img *Image) NumSections() int {
	return len(img.Sections)
}

func (img *Image) Section(i int) *Section {
	return img.Sections[i]
}

func (img *Image) NumPages() int {
	n := 0
	for _, s := range img.Sections {
		n += s.Length
	}
	return n
}

// An open executable: an image plus the file it was read from, which
// stays open until the process no longer needs it.
type Coff struct {
	*Image
	file io.Closer
}

func NewCoff(img *Image, file io.Closer) *Coff {
	return &Coff{Image: img, file: file}
}

func (c *Coff) EntryPoint() int {
	return c.Entry
}

func (c *Coff) Close() error {
	if c.file == nil {
		return nil
	}
	f := c.file
	c.file = nil
	return f.Close()
}

// Parse an image for a machine with maxPages pages of pageSize bytes.
// An image whose sections cover more than maxPages pages could never
// be loaded and is rejected before its data is read.
func Parse(rdr io.Reader, pageSize, maxPages int) (*Image, *serr.Err) {
	r := bufio.NewReader(rdr)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, serr.NewErrError(serr.TErrFormat, "magic", err)
	}
	if magic != MAGIC {
		return nil, serr.NewErr(serr.TErrFormat, fmt.Sprintf("magic %q", magic[:]))
	}
	var hdr struct {
		Entry uint32
		Nsect uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, serr.NewErrError(serr.TErrFormat, "header", err)
	}
	if hdr.Nsect > MAXSECT {
		return nil, serr.NewErr(serr.TErrFormat, fmt.Sprintf("%d sections", hdr.Nsect))
	}
	img := &Image{Entry: int(hdr.Entry), Sections: make([]*Section, 0, hdr.Nsect)}
	npages := 0
	for i := 0; i < int(hdr.Nsect); i++ {
		s, err := parseSection(r, pageSize, maxPages-npages)
		if err != nil {
			return nil, err
		}
		npages += s.Length
		img.Sections = append(img.Sections, s)
	}
	db.DPrintf(db.COFF, "Parse: entry %d sections %v", img.Entry, img.Sections)
	return img, nil
}

func parseSection(r io.Reader, pageSize, maxPages int) (*Section, *serr.Err) {
	var namelen uint16
	if err := binary.Read(r, binary.LittleEndian, &namelen); err != nil {
		return nil, serr.NewErrError(serr.TErrFormat, "section name", err)
	}
	name := make([]byte, namelen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, serr.NewErrError(serr.TErrFormat, "section name", err)
	}
	var sh struct {
		Vpn     uint32
		Npages  uint32
		Ro      uint8
		Datalen uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &sh); err != nil {
		return nil, serr.NewErrError(serr.TErrFormat, string(name), err)
	}
	if uint64(sh.Npages) > uint64(maxPages) {
		return nil, serr.NewErr(serr.TErrFormat, fmt.Sprintf("section %s: %d pages, %d left", name, sh.Npages, maxPages))
	}
	if uint64(sh.Datalen) > uint64(sh.Npages)*uint64(pageSize) {
		return nil, serr.NewErr(serr.TErrFormat, fmt.Sprintf("section %s: %d bytes in %d pages", name, sh.Datalen, sh.Npages))
	}
	data := make([]byte, sh.Datalen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, serr.NewErrError(serr.TErrFormat, string(name), err)
	}
	return &Section{
		Name:     string(name),
		FirstVPN: int(sh.Vpn),
		Length:   int(sh.Npages),
		ReadOnly: sh.Ro != 0,
		Data:     data,
	}, nil
}

func (img *Image) Marshal() []byte {
	var buf bytes.Buffer
	buf.Write(MAGIC[:])
	binary.Write(&buf, binary.LittleEndian, uint32(img.Entry))
	binary.Write(&buf, binary.LittleEndian, uint32(len(img.Sections)))
	for _, s := range img.Sections {
		binary.Write(&buf, binary.LittleEndian, uint16(len(s.Name)))
		buf.WriteString(s.Name)
		binary.Write(&buf, binary.LittleEndian, uint32(s.FirstVPN))
		binary.Write(&buf, binary.LittleEndian, uint32(s.Length))
		ro := uint8(0)
		if s.ReadOnly {
			ro = 1
		}
		buf.WriteByte(ro)
		binary.Write(&buf, binary.LittleEndian, uint32(len(s.Data)))
		buf.Write(s.Data)
	}
	return buf.Bytes()
}
