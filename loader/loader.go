package loader

import (
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/readahead"

	"ukern/coff"
	db "ukern/debug"
	"ukern/serr"
	"ukern/stubfs"
)

const NREADAHEAD = 4

// The loader opens executables in the file system and parses them.
// Parsed images are cached by name, inode and file generation, so a
// rewritten or recreated executable is parsed again.
type Loader struct {
	fs       *stubfs.FileSystem
	pageSize int
	maxPages int
	cache    *lru.Cache[string, *coff.Image]
}

// Images larger than maxPages pages of pageSize bytes are rejected.
func NewLoader(fs *stubfs.FileSystem, pageSize, maxPages, cacheSize int) *Loader {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	c, err := lru.New[string, *coff.Image](cacheSize)
	if err != nil {
		db.DFatalf("NewLoader: lru %v", err)
	}
	return &Loader{fs: fs, pageSize: pageSize, maxPages: maxPages, cache: c}
}

func key(name string, ino, gen uint64) string {
	return fmt.Sprintf("%s@%d.%d", name, ino, gen)
}

// Open the executable name. The returned Coff holds the file open
// until it is closed.
func (ld *Loader) Open(name string) (*coff.Coff, *serr.Err) {
	f, err := ld.fs.Open(name, false)
	if err != nil {
		return nil, err
	}
	k := key(name, f.Ino(), f.Generation())
	if img, ok := ld.cache.Get(k); ok {
		db.DPrintf(db.LOADER, "Open %v: cached", k)
		return coff.NewCoff(img, f), nil
	}
	img, err := ld.parse(f)
	if err != nil {
		f.Close()
		db.DPrintf(db.LOADER_ERR, "Open %v: %v", name, err)
		return nil, err
	}
	ld.cache.Add(k, img)
	db.DPrintf(db.LOADER, "Open %v: parsed %d sections", k, img.NumSections())
	return coff.NewCoff(img, f), nil
}

func (ld *Loader) parse(f *stubfs.OpenFile) (*coff.Image, *serr.Err) {
	rdr, rerr := readahead.NewReaderSize(io.LimitReader(f, f.Length()), NREADAHEAD, ld.pageSize)
	if rerr != nil {
		return nil, serr.NewErrError(serr.TErrError, f.Name(), rerr)
	}
	defer rdr.Close()
	return coff.Parse(rdr, ld.pageSize, ld.maxPages)
}

// Number of cached images.
func (ld *Loader) Len() int {
	return ld.cache.Len()
}
