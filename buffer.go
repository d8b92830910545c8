package sharedslab

import (
	"io"

	"github.com/absfs/absfs"
)

// Buffer is the host arena: a fixed-length, byte-addressable region with
// random access. The store requires the region to be zero-initialized at
// creation; a buffer recycled from elsewhere must have its chunk header
// words zeroed before the first Attach.
//
// Implementations must support concurrent readers. Each Slab serializes its
// own writes; writes from different slabs attached to the same buffer are
// not coordinated.
type Buffer interface {
	io.ReaderAt
	io.WriterAt

	// Len returns the fixed byte length of the arena.
	Len() int
}

// ByteBuffer is a heap-backed arena. Several slabs in the same process can
// share one ByteBuffer, which is the in-process equivalent of workers
// sharing a memory segment.
type ByteBuffer struct {
	data []byte
}

// NewByteBuffer allocates a zeroed arena of the given byte size.
func NewByteBuffer(size int) (*ByteBuffer, error) {
	if size <= 0 {
		return nil, &ValidationError{
			Field:   "size",
			Value:   size,
			Message: "buffer size must be positive",
		}
	}
	return &ByteBuffer{data: make([]byte, size)}, nil
}

// WrapBytes adopts an existing slice as the arena without copying. The
// caller is responsible for the zero-initialization requirement.
func WrapBytes(data []byte) *ByteBuffer {
	return &ByteBuffer{data: data}
}

// Len returns the arena length in bytes.
func (b *ByteBuffer) Len() int { return len(b.data) }

// Bytes returns the backing slice. Mutating it bypasses the store.
func (b *ByteBuffer) Bytes() []byte { return b.data }

// ReadAt implements io.ReaderAt.
func (b *ByteBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, ErrOutOfRange
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (b *ByteBuffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, ErrOutOfRange
	}
	n := copy(b.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// FileBuffer is an arena stored in an absfs.File, so the store can live on
// any AbsFs-compatible filesystem: memfs for tests, osfs for a durable
// snapshot. Opening grows the file to the arena size, which zero-fills the
// new region.
type FileBuffer struct {
	file absfs.File
	size int
}

// NewFileBuffer opens an arena of the given byte size over f. A shorter file
// is extended; an existing arena of the right size is served as-is, so a
// fresh slab attaching to it observes the previously written records.
func NewFileBuffer(f absfs.File, size int) (*FileBuffer, error) {
	if f == nil {
		return nil, &ValidationError{Field: "file", Message: "file cannot be nil"}
	}
	if size <= 0 {
		return nil, &ValidationError{
			Field:   "size",
			Value:   size,
			Message: "buffer size must be positive",
		}
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, err
		}
	}
	return &FileBuffer{file: f, size: size}, nil
}

// Len returns the arena length in bytes.
func (b *FileBuffer) Len() int { return b.size }

// ReadAt implements io.ReaderAt.
func (b *FileBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(b.size) {
		return 0, ErrOutOfRange
	}
	if max := int64(b.size) - off; int64(len(p)) > max {
		n, err := b.file.ReadAt(p[:max], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return b.file.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (b *FileBuffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(b.size) {
		return 0, ErrOutOfRange
	}
	return b.file.WriteAt(p, off)
}

// Sync flushes the underlying file.
func (b *FileBuffer) Sync() error { return b.file.Sync() }
