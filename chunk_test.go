package sharedslab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunked(t *testing.T, numChunks, chunkSize int) *Chunked {
	t.Helper()
	buf, err := NewByteBuffer(numChunks * chunkSize)
	require.NoError(t, err)
	c, err := NewChunked(buf, chunkSize)
	require.NoError(t, err)
	return c
}

func TestChunkedGeometry(t *testing.T) {
	c := newTestChunked(t, 8, DefaultChunkSize)
	assert.Equal(t, 8, c.NumChunks())
	assert.Equal(t, DefaultChunkSize, c.ChunkSize())
}

func TestChunkedRejectsUnalignedBuffer(t *testing.T) {
	buf, err := NewByteBuffer(DefaultChunkSize + 100)
	require.NoError(t, err)
	_, err = NewChunked(buf, DefaultChunkSize)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestChunkedWordRoundTrip(t *testing.T) {
	c := newTestChunked(t, 4, DefaultChunkSize)

	require.NoError(t, c.WriteWord(2, 5, 0xDEADBEEF))
	got, err := c.ReadWord(2, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), got)
}

func TestChunkedWordsAreBigEndian(t *testing.T) {
	buf, err := NewByteBuffer(2 * DefaultChunkSize)
	require.NoError(t, err)
	c, err := NewChunked(buf, DefaultChunkSize)
	require.NoError(t, err)

	require.NoError(t, c.WriteWord(1, 0, 0x01020304))
	raw := buf.Bytes()[DefaultChunkSize : DefaultChunkSize+4]
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, raw)
}

func TestChunkedUninitializedReadsZero(t *testing.T) {
	c := newTestChunked(t, 4, DefaultChunkSize)

	got, err := c.ReadWord(3, 0)
	require.NoError(t, err)
	assert.Zero(t, got)

	out := make([]byte, 16)
	n, err := c.ReadBytesInto(3, 100, out)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, make([]byte, 16), out)
}

func TestChunkedByteCopyTruncatesAtChunkEdge(t *testing.T) {
	c := newTestChunked(t, 4, DefaultChunkSize)

	data := make([]byte, DefaultChunkSize)
	for i := range data {
		data[i] = byte(i)
	}

	// A write starting 100 bytes into the chunk only takes C-100 bytes.
	n, err := c.WriteBytes(1, 100, data)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize-100, n)

	out := make([]byte, DefaultChunkSize)
	n, err = c.ReadBytesInto(1, 100, out)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize-100, n)
	assert.Equal(t, data[:n], out[:n])
}

func TestChunkedByteCopyBoundedByInput(t *testing.T) {
	c := newTestChunked(t, 4, DefaultChunkSize)

	n, err := c.WriteBytes(0, 12, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out := make([]byte, 3)
	n, err = c.ReadBytesInto(0, 12, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("abc"), out)
}

func TestChunkedOffsetPastChunkFails(t *testing.T) {
	c := newTestChunked(t, 4, DefaultChunkSize)

	_, err := c.ReadBytesInto(0, DefaultChunkSize, make([]byte, 1))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = c.WriteBytes(0, DefaultChunkSize+5, []byte("x"))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestChunkedChunkOutOfRange(t *testing.T) {
	c := newTestChunked(t, 4, DefaultChunkSize)

	_, err := c.ReadWord(4, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = c.WriteWord(-1, 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = c.ReadBytesInto(17, 0, make([]byte, 4))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestChunkedWordIndexOutOfRange(t *testing.T) {
	c := newTestChunked(t, 2, MinChunkSize)

	_, err := c.ReadWord(0, MinChunkSize/4)
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = c.WriteWord(0, -1, 7)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestChunkedNilBuffer(t *testing.T) {
	_, err := NewChunked(nil, DefaultChunkSize)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}
