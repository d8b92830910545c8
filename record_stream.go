package sharedslab

import (
	"bytes"
	"io"
)

// RecordReader is an io.Reader over a single record's payload. It walks the
// chain incrementally, reading at most one chunk span per call, so a large
// record can be consumed without materializing it.
//
// The reader takes no snapshot: a concurrent overwrite of the record through
// another context can be observed mid-stream. Callers that need a stable
// view should compare the record's version before and after reading.
type RecordReader struct {
	ropes      *Ropes
	key        int
	cur        int
	dataOffset int
	nextIndex  int
	remaining  int
}

// NewRecordReader opens a reader over the record at key.
func NewRecordReader(r *Ropes, key int) (*RecordReader, error) {
	if err := ValidateKey(key, r.storage.NumChunks()); err != nil {
		return nil, err
	}
	length, err := r.storage.ReadWord(key, wordLength)
	if err != nil {
		return nil, err
	}
	if int64(length) > int64(r.storage.NumChunks())*int64(r.storage.ChunkSize()) {
		return nil, &CorruptionError{
			Key:     key,
			Chunk:   key,
			Message: "recorded length exceeds the arena",
		}
	}
	return &RecordReader{
		ropes:      r,
		key:        key,
		cur:        key,
		dataOffset: headPayloadOffset,
		nextIndex:  wordNext,
		remaining:  int(length),
	}, nil
}

// Len returns the number of payload bytes not yet read.
func (rr *RecordReader) Len() int { return rr.remaining }

// Read implements io.Reader.
func (rr *RecordReader) Read(p []byte) (int, error) {
	if rr.remaining == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	storage := rr.ropes.storage
	if rr.dataOffset >= storage.ChunkSize() {
		next, err := storage.ReadWord(rr.cur, rr.nextIndex)
		if err != nil {
			return 0, err
		}
		if next <= endOfChain || int(next) >= storage.NumChunks() {
			return 0, &CorruptionError{
				Key:     rr.key,
				Chunk:   rr.cur,
				Message: "chain ends before the recorded length",
			}
		}
		rr.cur = int(next)
		rr.dataOffset = contPayloadOffset
		rr.nextIndex = 0
	}
	span := len(p)
	if span > rr.remaining {
		span = rr.remaining
	}
	n, err := storage.ReadBytesInto(rr.cur, rr.dataOffset, p[:span])
	if err != nil {
		return 0, err
	}
	rr.dataOffset += n
	rr.remaining -= n
	return n, nil
}

// RecordWriter is an io.WriteCloser that stages a record's payload and
// performs a single insert when closed, so the version counter advances
// exactly once per record regardless of how the payload was produced.
type RecordWriter struct {
	ropes  *Ropes
	key    int
	buf    bytes.Buffer
	ver    uint32
	closed bool
}

// NewRecordWriter opens a writer that will store its payload at key on
// Close.
func NewRecordWriter(r *Ropes, key int) (*RecordWriter, error) {
	if err := ValidateKey(key, r.storage.NumChunks()); err != nil {
		return nil, err
	}
	return &RecordWriter{ropes: r, key: key}, nil
}

// Write implements io.Writer, staging p in memory.
func (rw *RecordWriter) Write(p []byte) (int, error) {
	if rw.closed {
		return 0, ErrClosed
	}
	return rw.buf.Write(p)
}

// Close inserts the staged payload at the writer's key. The new version is
// available through Version afterwards.
func (rw *RecordWriter) Close() error {
	if rw.closed {
		return ErrClosed
	}
	rw.closed = true
	ver, err := rw.ropes.InsertAt(rw.key, rw.buf.Bytes())
	if err != nil {
		return err
	}
	rw.ver = ver
	return nil
}

// Version returns the version produced by Close, or zero before Close.
func (rw *RecordWriter) Version() uint32 {
	return rw.ver
}
