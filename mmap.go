package sharedslab

import (
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapBuffer is a file-mapped arena. Two processes mapping the same file
// observe the same chunks, which makes it the process-level counterpart of
// workers attached to one shared memory segment.
type MmapBuffer struct {
	file *os.File
	m    mmap.MMap
}

// OpenMmapBuffer creates or opens path and maps an arena of the given byte
// size. A shorter file is extended first, which zero-fills the new region.
func OpenMmapBuffer(path string, size int) (*MmapBuffer, error) {
	if size <= 0 {
		return nil, &ValidationError{
			Field:   "size",
			Value:   size,
			Message: "buffer size must be positive",
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, err
		}
	}
	m, err := mmap.MapRegion(f, size, mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MmapBuffer{file: f, m: m}, nil
}

// Len returns the arena length in bytes.
func (b *MmapBuffer) Len() int { return len(b.m) }

// ReadAt implements io.ReaderAt.
func (b *MmapBuffer) ReadAt(p []byte, off int64) (int, error) {
	if b.m == nil {
		return 0, ErrClosed
	}
	if off < 0 || off > int64(len(b.m)) {
		return 0, ErrOutOfRange
	}
	n := copy(p, b.m[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (b *MmapBuffer) WriteAt(p []byte, off int64) (int, error) {
	if b.m == nil {
		return 0, ErrClosed
	}
	if off < 0 || off > int64(len(b.m)) {
		return 0, ErrOutOfRange
	}
	n := copy(b.m[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Flush syncs the mapping to the backing file.
func (b *MmapBuffer) Flush() error {
	if b.m == nil {
		return ErrClosed
	}
	return b.m.Flush()
}

// Close unmaps the arena and closes the backing file. The buffer must not be
// used afterwards.
func (b *MmapBuffer) Close() error {
	if b.m == nil {
		return ErrClosed
	}
	err := b.m.Unmap()
	b.m = nil
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	return err
}
