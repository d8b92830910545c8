package sharedslab

import (
	"encoding/binary"
)

// Chunked provides bounded random access to a Buffer as an array of
// fixed-size chunks. It holds no allocation state; all truncation at chunk
// edges happens here so the layers above can keep stepping through chunks
// until a record's length is exhausted.
//
// Word access treats the first bytes of a chunk as an array of big-endian
// uint32 slots. Reading a word of never-written memory yields zero, because
// the arena is zero-initialized on creation.
type Chunked struct {
	buf       Buffer
	chunkSize int
	numChunks int
}

// NewChunked wraps buf as an array of chunkSize-byte chunks. The buffer
// length must be a positive multiple of the chunk size.
func NewChunked(buf Buffer, chunkSize int) (*Chunked, error) {
	if buf == nil {
		return nil, &ValidationError{Field: "buf", Message: "buffer cannot be nil"}
	}
	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, err
	}
	if err := ValidateArenaSize(buf.Len(), chunkSize); err != nil {
		return nil, err
	}
	return &Chunked{
		buf:       buf,
		chunkSize: chunkSize,
		numChunks: buf.Len() / chunkSize,
	}, nil
}

// ChunkSize returns the chunk size in bytes.
func (c *Chunked) ChunkSize() int { return c.chunkSize }

// NumChunks returns the number of chunks in the arena.
func (c *Chunked) NumChunks() int { return c.numChunks }

func (c *Chunked) address(chunk, offset int) int64 {
	return int64(chunk)*int64(c.chunkSize) + int64(offset)
}

func (c *Chunked) checkChunk(chunk int) error {
	if chunk < 0 || chunk >= c.numChunks {
		return &ValidationError{
			Field:   "chunk",
			Value:   chunk,
			Message: "chunk index outside the arena",
			Err:     ErrOutOfRange,
		}
	}
	return nil
}

// ReadWord reads the index-th big-endian uint32 of a chunk.
func (c *Chunked) ReadWord(chunk, index int) (uint32, error) {
	if err := c.checkChunk(chunk); err != nil {
		return 0, err
	}
	if index < 0 || (index+1)*4 > c.chunkSize {
		return 0, &ValidationError{
			Field:   "index",
			Value:   index,
			Message: "word index outside the chunk",
			Err:     ErrOutOfRange,
		}
	}
	var word [4]byte
	if _, err := c.buf.ReadAt(word[:], c.address(chunk, 4*index)); err != nil {
		return 0, &BufferError{Op: "read", Chunk: chunk, Err: err}
	}
	return binary.BigEndian.Uint32(word[:]), nil
}

// WriteWord writes the index-th big-endian uint32 of a chunk.
func (c *Chunked) WriteWord(chunk, index int, val uint32) error {
	if err := c.checkChunk(chunk); err != nil {
		return err
	}
	if index < 0 || (index+1)*4 > c.chunkSize {
		return &ValidationError{
			Field:   "index",
			Value:   index,
			Message: "word index outside the chunk",
			Err:     ErrOutOfRange,
		}
	}
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], val)
	if _, err := c.buf.WriteAt(word[:], c.address(chunk, 4*index)); err != nil {
		return &BufferError{Op: "write", Chunk: chunk, Err: err}
	}
	return nil
}

// ReadBytesInto copies up to min(len(out), chunkSize-byteOffset) bytes from
// the chunk into out and returns the number copied.
func (c *Chunked) ReadBytesInto(chunk, byteOffset int, out []byte) (int, error) {
	if err := c.checkChunk(chunk); err != nil {
		return 0, err
	}
	if byteOffset < 0 || byteOffset >= c.chunkSize {
		return 0, &ValidationError{
			Field:   "byteOffset",
			Value:   byteOffset,
			Message: "byte offset outside the chunk",
			Err:     ErrOutOfRange,
		}
	}
	n := len(out)
	if max := c.chunkSize - byteOffset; n > max {
		n = max
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := c.buf.ReadAt(out[:n], c.address(chunk, byteOffset)); err != nil {
		return 0, &BufferError{Op: "read", Chunk: chunk, Err: err}
	}
	return n, nil
}

// WriteBytes copies up to min(len(data), chunkSize-byteOffset) bytes from
// data into the chunk and returns the number written.
func (c *Chunked) WriteBytes(chunk, byteOffset int, data []byte) (int, error) {
	if err := c.checkChunk(chunk); err != nil {
		return 0, err
	}
	if byteOffset < 0 || byteOffset >= c.chunkSize {
		return 0, &ValidationError{
			Field:   "byteOffset",
			Value:   byteOffset,
			Message: "byte offset outside the chunk",
			Err:     ErrOutOfRange,
		}
	}
	n := len(data)
	if max := c.chunkSize - byteOffset; n > max {
		n = max
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := c.buf.WriteAt(data[:n], c.address(chunk, byteOffset)); err != nil {
		return 0, &BufferError{Op: "write", Chunk: chunk, Err: err}
	}
	return n, nil
}
