package coff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukern/serr"
)

const (
	PAGESZ = 64
	NPAGE  = 8
)

func testImage() *Image {
	return &Image{
		Entry: 0x40,
		Sections: []*Section{
			{Name: ".text", FirstVPN: 0, Length: 2, ReadOnly: true, Data: bytes.Repeat([]byte{0xaa}, PAGESZ+10)},
			{Name: ".data", FirstVPN: 2, Length: 1, Data: []byte("hello")},
			{Name: ".bss", FirstVPN: 3, Length: 1, Data: []byte{}},
		},
	}
}

func TestParse(t *testing.T) {
	img0 := testImage()
	img, err := Parse(bytes.NewReader(img0.Marshal()), PAGESZ, NPAGE)
	require.Nil(t, err)
	assert.Equal(t, img0, img)
	assert.Equal(t, 4, img.NumPages())
	assert.Equal(t, 3, img.NumSections())
}

func TestLoadPage(t *testing.T) {
	s := testImage().Section(0)
	page := bytes.Repeat([]byte{0xff}, PAGESZ)
	s.LoadPage(1, page)
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 10), page[:10])
	assert.Equal(t, make([]byte, PAGESZ-10), page[10:])
	assert.Panics(t, func() { s.LoadPage(2, page) })
}

func TestBadImages(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("ELF!")), PAGESZ, NPAGE)
	assert.True(t, serr.IsErrCode(err, serr.TErrFormat))

	b := testImage().Marshal()
	_, err = Parse(bytes.NewReader(b[:len(b)-3]), PAGESZ, NPAGE)
	assert.True(t, serr.IsErrCode(err, serr.TErrFormat))

	big := &Image{Sections: []*Section{{Name: "x", Length: 1, Data: make([]byte, PAGESZ+1)}}}
	_, err = Parse(bytes.NewReader(big.Marshal()), PAGESZ, NPAGE)
	assert.True(t, serr.IsErrCode(err, serr.TErrFormat))
}

type closer struct{ n int }

func (c *closer) Close() error {
	c.n++
	return nil
}

func TestCloseOnce(t *testing.T) {
	c := &closer{}
	cf := NewCoff(testImage(), c)
	cf.Close()
	cf.Close()
	assert.Equal(t, 1, c.n)
}

// Page counts come from the file; they are checked against the
// machine before any section data is allocated.
func TestTooManyPages(t *testing.T) {
	huge := &Image{Sections: []*Section{{Name: "x", Length: 1 << 30, Data: []byte("x")}}}
	b := huge.Marshal()
	_, err := Parse(bytes.NewReader(b), PAGESZ, NPAGE)
	assert.True(t, serr.IsErrCode(err, serr.TErrFormat), "err %v", err)

	// each section fits, the sum does not
	img := &Image{Sections: []*Section{
		{Name: ".text", FirstVPN: 0, Length: NPAGE - 1},
		{Name: ".data", FirstVPN: NPAGE - 1, Length: 2},
	}}
	_, err = Parse(bytes.NewReader(img.Marshal()), PAGESZ, NPAGE)
	assert.True(t, serr.IsErrCode(err, serr.TErrFormat), "err %v", err)

	img.Sections[1].Length = 1
	img1, err := Parse(bytes.NewReader(img.Marshal()), PAGESZ, NPAGE)
	require.Nil(t, err)
	assert.Equal(t, NPAGE, img1.NumPages())
}
