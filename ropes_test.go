package sharedslab

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRopes(t *testing.T, numChunks int) *Ropes {
	t.Helper()
	buf, err := NewByteBuffer(numChunks * DefaultChunkSize)
	require.NoError(t, err)
	storage, err := NewChunked(buf, DefaultChunkSize)
	require.NoError(t, err)
	return NewRopes(storage)
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestRopesSingleChunkRoundTrip(t *testing.T) {
	r := newTestRopes(t, 16)

	ver, err := r.InsertAt(0, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ver)

	got, err := r.VersionOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got)

	data, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	key, err := r.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 1, key)
}

func TestRopesMultiChunkChain(t *testing.T) {
	r := newTestRopes(t, 16)

	// 3000 bytes span exactly three chunks: 1012 in the head, 1020 in each
	// continuation.
	payload := randomBytes(t, 3000)
	key, ver, err := r.Insert(payload)
	require.NoError(t, err)
	assert.Equal(t, 1, key)
	assert.Equal(t, uint32(1), ver)

	data, err := r.Get(key)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	next, err := r.storage.ReadWord(key, wordNext)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next)

	next, err = r.storage.ReadWord(2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), next)

	// The tail carries the end-of-chain sentinel, not the never-written zero.
	next, err = r.storage.ReadWord(3, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(endOfChain), next)
}

func TestRopesOverwriteGrows(t *testing.T) {
	r := newTestRopes(t, 16)

	ver, err := r.InsertAt(0, []byte("tiny value"))
	require.NoError(t, err)
	require.Equal(t, uint32(1), ver)

	payload := randomBytes(t, 2000)
	ver, err = r.InsertAt(0, payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), ver)

	data, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	length, err := r.storage.ReadWord(0, wordLength)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), length)

	// One continuation chunk was claimed. Chunk 1 is skipped because its
	// index collides with the end-of-chain sentinel.
	next, err := r.storage.ReadWord(0, wordNext)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next)
	assert.True(t, r.Contains(2))
}

func TestRopesOverwriteShrinks(t *testing.T) {
	r := newTestRopes(t, 16)

	_, err := r.InsertAt(0, []byte("tiny value"))
	require.NoError(t, err)
	_, err = r.InsertAt(0, randomBytes(t, 2000))
	require.NoError(t, err)

	ver, err := r.InsertAt(0, []byte("small"))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), ver)

	data, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("small"), data)

	got, err := r.VersionOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got)

	// The detached continuation stays claimed through the retained next
	// pointer, invisible to Get but re-consumed by the next growth.
	next, err := r.storage.ReadWord(0, wordNext)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next)

	payload := randomBytes(t, 2000)
	ver, err = r.InsertAt(0, payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), ver)

	next, err = r.storage.ReadWord(0, wordNext)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next)

	data, err = r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestRopesEmptyPayload(t *testing.T) {
	r := newTestRopes(t, 4)

	ver, err := r.InsertAt(0, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ver)

	data, err := r.Get(0)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRopesVersionMonotonic(t *testing.T) {
	r := newTestRopes(t, 8)

	for i := 1; i <= 10; i++ {
		ver, err := r.InsertAt(2, randomBytes(t, i*17))
		require.NoError(t, err)
		assert.Equal(t, uint32(i), ver)
	}
}

func TestRopesIdempotentReRead(t *testing.T) {
	r := newTestRopes(t, 8)

	payload := randomBytes(t, 500)
	_, err := r.InsertAt(0, payload)
	require.NoError(t, err)

	first, err := r.Get(0)
	require.NoError(t, err)
	second, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ver, err := r.VersionOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ver)
}

func TestRopesAllocatorSkipsLiveHeads(t *testing.T) {
	r := newTestRopes(t, 16)

	claimed := map[int]bool{2: true, 4: true, 6: true}
	for key := range claimed {
		_, err := r.InsertAt(key, []byte("x"))
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		key, err := r.Alloc()
		require.NoError(t, err)
		assert.False(t, claimed[key], "allocator returned live head %d", key)
	}
}

func TestRopesAllocPeekDoesNotAdvance(t *testing.T) {
	r := newTestRopes(t, 8)

	peeked, err := r.AllocPeek()
	require.NoError(t, err)
	key, err := r.Alloc()
	require.NoError(t, err)
	assert.Equal(t, peeked, key)
}

func TestRopesContains(t *testing.T) {
	r := newTestRopes(t, 8)

	assert.False(t, r.Contains(0))
	_, err := r.InsertAt(0, []byte("root"))
	require.NoError(t, err)
	assert.True(t, r.Contains(0))
	assert.False(t, r.Contains(100))
}

func TestRopesInsertAtOwnCursorPosition(t *testing.T) {
	r := newTestRopes(t, 16)

	// The head's version word is written last, so the allocator must not
	// hand the head out as its own continuation while the insert runs.
	payload := randomBytes(t, 3000)
	ver, err := r.InsertAt(1, payload)
	require.NoError(t, err)
	require.Equal(t, uint32(1), ver)

	data, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestRopesRemove(t *testing.T) {
	r := newTestRopes(t, 8)

	_, err := r.InsertAt(0, []byte("root"))
	require.NoError(t, err)
	require.True(t, r.Contains(0))

	require.NoError(t, r.Remove(0))
	assert.False(t, r.Contains(0))

	ver, err := r.VersionOf(0)
	require.NoError(t, err)
	assert.Zero(t, ver)
}

func TestRopesRemoveAbsent(t *testing.T) {
	r := newTestRopes(t, 8)
	assert.ErrorIs(t, r.Remove(3), ErrNoEntry)
}

func TestRopesRemoveReclaimsChain(t *testing.T) {
	r := newTestRopes(t, 16)

	key, _, err := r.Insert(randomBytes(t, 3000))
	require.NoError(t, err)
	require.Equal(t, 1, key)

	// Pin a later chunk so reclamation has to skip over it.
	other, _, err := r.Insert([]byte("pinned"))
	require.NoError(t, err)
	require.Equal(t, 4, other)

	require.NoError(t, r.Remove(key))

	for _, want := range []int{1, 2, 3, 5} {
		got, err := r.Alloc()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRopesRemovedKeyIsReinsertable(t *testing.T) {
	r := newTestRopes(t, 16)

	key, _, err := r.Insert(randomBytes(t, 3000))
	require.NoError(t, err)
	require.NoError(t, r.Remove(key))

	// A recycled head must not trust its stale next pointer.
	payload := randomBytes(t, 2500)
	ver, err := r.InsertAt(key, payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ver)

	data, err := r.Get(key)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestRopesOutOfBuffer(t *testing.T) {
	r := newTestRopes(t, 3)

	_, err := r.InsertAt(0, randomBytes(t, 2000))
	require.NoError(t, err)

	_, err = r.Alloc()
	assert.ErrorIs(t, err, ErrOutOfBuffer)

	// A growth that needs a fresh continuation fails the same way and the
	// version stays unchanged.
	_, err = r.InsertAt(0, randomBytes(t, 4000))
	assert.ErrorIs(t, err, ErrOutOfBuffer)

	ver, err := r.VersionOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ver)
}

func TestRopesGetCorruptLength(t *testing.T) {
	r := newTestRopes(t, 4)

	_, err := r.InsertAt(0, []byte("ok"))
	require.NoError(t, err)

	// Stomp the length word with a value no chain in this arena can hold.
	require.NoError(t, r.storage.WriteWord(0, wordLength, 1<<30))

	_, err = r.Get(0)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestRopesGetBrokenChain(t *testing.T) {
	r := newTestRopes(t, 8)

	_, err := r.InsertAt(0, randomBytes(t, 3000))
	require.NoError(t, err)

	// Cut the chain at the head.
	require.NoError(t, r.storage.WriteWord(0, wordNext, 0))

	_, err = r.Get(0)
	assert.ErrorIs(t, err, ErrInvalidData)

	var cerr *CorruptionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 0, cerr.Key)
}
