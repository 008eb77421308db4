package kernel

import (
	"ukern/coff"
)

// A small executable: one read-only text page and one data page.
func DefaultImage(pageSize int) *coff.Image {
	text := make([]byte, pageSize)
	for i := range text {
		text[i] = 0x0c // syscall
	}
	return &coff.Image{
		Entry: 0,
		Sections: []*coff.Section{
			{Name: ".text", FirstVPN: 0, Length: 1, ReadOnly: true, Data: text},
			{Name: ".data", FirstVPN: 1, Length: 1, Data: []byte{}},
		},
	}
}
