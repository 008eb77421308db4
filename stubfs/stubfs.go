package stubfs

import (
	"fmt"
	"io"
	"sync"

	db "ukern/debug"
	"ukern/serr"
)

// A flat in-memory file system standing in for the host's stub file
// system. Removing a file takes it out of the namespace; handles that
// are already open keep working.
type FileSystem struct {
	sync.Mutex
	files   map[string]*inode
	nextIno uint64
}

type inode struct {
	sync.Mutex
	ino  uint64 // unique for the life of the file system
	data []byte
	gen  uint64 // bumped on every modification
}

func NewFileSystem() *FileSystem {
	return &FileSystem{files: make(map[string]*inode)}
}

// Open name; if create is set a missing file is created and an
// existing one truncated.
func (fs *FileSystem) Open(name string, create bool) (*OpenFile, *serr.Err) {
	fs.Lock()
	defer fs.Unlock()

	ino, ok := fs.files[name]
	if !ok {
		if !create {
			db.DPrintf(db.STUBFS, "Open %q: not found", name)
			return nil, serr.NewErr(serr.TErrNotfound, name)
		}
		fs.nextIno++
		ino = &inode{ino: fs.nextIno}
		fs.files[name] = ino
	} else if create {
		ino.Lock()
		ino.data = nil
		ino.gen++
		ino.Unlock()
	}
	db.DPrintf(db.STUBFS, "Open %q create %v", name, create)
	return &OpenFile{name: name, ino: ino}, nil
}

func (fs *FileSystem) Remove(name string) *serr.Err {
	fs.Lock()
	defer fs.Unlock()

	if _, ok := fs.files[name]; !ok {
		return serr.NewErr(serr.TErrNotfound, name)
	}
	delete(fs.files, name)
	db.DPrintf(db.STUBFS, "Remove %q", name)
	return nil
}

// Create or replace name with data.
func (fs *FileSystem) PutFile(name string, data []byte) *serr.Err {
	f, err := fs.Open(name, true)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return serr.NewErrError(serr.TErrError, name, err)
	}
	return nil
}

func (fs *FileSystem) GetFile(name string) ([]byte, *serr.Err) {
	f, err := fs.Open(name, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, rerr := io.ReadAll(f)
	if rerr != nil {
		return nil, serr.NewErrError(serr.TErrError, name, rerr)
	}
	return b, nil
}

// Number of files in the namespace.
func (fs *FileSystem) Len() int {
	fs.Lock()
	defer fs.Unlock()
	return len(fs.files)
}

type OpenFile struct {
	mu     sync.Mutex
	name   string
	ino    *inode
	pos    int64
	closed bool
}

func (f *OpenFile) Name() string {
	return f.name
}

// Generation of the file's contents; changes whenever the file is
// written or truncated.
// The inode number. A file that is removed and created again gets a
// new one.
func (f *OpenFile) Ino() uint64 {
	return f.ino.ino
}

func (f *OpenFile) Generation() uint64 {
	f.ino.Lock()
	defer f.ino.Unlock()
	return f.ino.gen
}

func (f *OpenFile) Length() int64 {
	f.ino.Lock()
	defer f.ino.Unlock()
	return int64(len(f.ino.data))
}

func (f *OpenFile) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	f.ino.Lock()
	defer f.ino.Unlock()
	if off >= int64(len(f.ino.data)) {
		return 0, io.EOF
	}
	n := copy(b, f.ino.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (f *OpenFile) WriteAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	f.ino.Lock()
	defer f.ino.Unlock()
	end := off + int64(len(b))
	if end > int64(len(f.ino.data)) {
		d := make([]byte, end)
		copy(d, f.ino.data)
		f.ino.data = d
	}
	copy(f.ino.data[off:], b)
	f.ino.gen++
	return len(b), nil
}

func (f *OpenFile) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, serr.NewErr(serr.TErrClosed, f.name)
	}
	n, err := f.ReadAt(b, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *OpenFile) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, serr.NewErr(serr.TErrClosed, f.name)
	}
	n, err := f.WriteAt(b, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *OpenFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return serr.NewErr(serr.TErrClosed, f.name)
	}
	f.closed = true
	return nil
}
