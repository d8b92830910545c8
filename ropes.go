package sharedslab

// Rope record layout constants. A head chunk spends three words on its
// header (version, length, next); a continuation chunk spends one (next).
const (
	wordVersion = 0
	wordLength  = 1
	wordNext    = 2

	headPayloadOffset = 12
	contPayloadOffset = 4

	// endOfChain terminates a chain. It is distinct from 0 so a terminal
	// continuation chunk is not mistaken for a never-written one.
	endOfChain = 1
)

// Ropes stores variable-length byte records in an arena of chunks. A record
// is a singly-linked chain of chunks beginning at a caller-chosen key (the
// head chunk index). Word 0 of a head chunk is a monotonic version counter;
// zero means nothing is stored at that key.
//
// A Ropes instance is one context's view of the arena: the free cursor is
// local, and concurrent writers in other contexts are reconciled only
// through the version counters. Alloc, AllocPeek, Insert, InsertAt and
// Remove move the free cursor and are not safe for concurrent use; Slab
// serializes them. VersionOf, Contains and Get only read the arena, and
// Slab.Prefetch calls them from several goroutines at once.
type Ropes struct {
	storage  *Chunked
	nextFree int

	// reserved is the head chunk of an insert in progress. Its version word
	// is written last, so the allocator must skip it explicitly or it could
	// hand the head out as its own continuation.
	reserved int
}

// NewRopes creates a rope store over storage. The free cursor starts past
// the root chunk, which is only ever written explicitly.
func NewRopes(storage *Chunked) *Ropes {
	return &Ropes{storage: storage, nextFree: RootKey + 1}
}

// NumChunks returns the number of chunks in the arena.
func (r *Ropes) NumChunks() int { return r.storage.NumChunks() }

// VersionOf returns the version counter at key. Zero means nothing is
// stored there.
func (r *Ropes) VersionOf(key int) (uint32, error) {
	if err := ValidateKey(key, r.storage.NumChunks()); err != nil {
		return 0, err
	}
	return r.storage.ReadWord(key, wordVersion)
}

// Contains reports whether a record is stored at key.
func (r *Ropes) Contains(key int) bool {
	ver, err := r.VersionOf(key)
	return err == nil && ver != 0
}

// AllocPeek returns the key the next Alloc would claim, without advancing
// the free cursor past it. The claim is not reserved: under concurrent
// writers a peek and the matching Alloc can observe different keys, and a
// caller that needs the key must write to it immediately.
func (r *Ropes) AllocPeek() (int, error) {
	for r.nextFree < r.storage.NumChunks() {
		if r.nextFree == r.reserved {
			r.nextFree++
			continue
		}
		ver, err := r.storage.ReadWord(r.nextFree, wordVersion)
		if err != nil {
			return 0, err
		}
		if ver == 0 {
			return r.nextFree, nil
		}
		r.nextFree++
	}
	return 0, ErrOutOfBuffer
}

// Alloc returns the lowest free chunk index at or past the free cursor and
// advances the cursor past it. Allocation is optimistic: the chunk is
// claimed only once a subsequent insert writes a non-zero version.
func (r *Ropes) Alloc() (int, error) {
	key, err := r.AllocPeek()
	if err != nil {
		return 0, err
	}
	r.nextFree = key + 1
	return key, nil
}

// Insert allocates a key and stores data there, returning the key and the
// record's first version.
func (r *Ropes) Insert(data []byte) (int, uint32, error) {
	key, err := r.Alloc()
	if err != nil {
		return 0, 0, err
	}
	ver, err := r.InsertAt(key, data)
	if err != nil {
		return 0, 0, err
	}
	return key, ver, nil
}

// InsertAt stores data as a chain starting at key and returns the new
// version. Payload bytes, continuation links, and the length word are all
// written before the head's version word, so a reader that observes the new
// version observes a complete record.
//
// An existing chain at key is reused chunk by chunk; shrinking a record
// keeps the head's next pointer intact so the detached tail stays claimed
// and can be re-consumed by a later growth.
func (r *Ropes) InsertAt(key int, data []byte) (uint32, error) {
	ver, err := r.VersionOf(key)
	if err != nil {
		return 0, err
	}
	r.reserved = key
	defer func() { r.reserved = RootKey }()
	prevNext, err := r.storage.ReadWord(key, wordNext)
	if err != nil {
		return 0, err
	}
	// The next pointer is meaningful only while the head is live; a chunk
	// recycled by Remove may carry stale bytes there.
	if ver == 0 {
		prevNext = 0
	}
	n, err := r.storage.WriteBytes(key, headPayloadOffset, data)
	if err != nil {
		return 0, err
	}
	next := prevNext
	if n < len(data) {
		cont, err := r.insertCont(prevNext, data[n:])
		if err != nil {
			return 0, err
		}
		next = uint32(cont)
	}
	if err := r.storage.WriteWord(key, wordLength, uint32(len(data))); err != nil {
		return 0, err
	}
	if next != prevNext {
		if err := r.storage.WriteWord(key, wordNext, next); err != nil {
			return 0, err
		}
	}
	if err := r.storage.WriteWord(key, wordVersion, ver+1); err != nil {
		return 0, err
	}
	return ver + 1, nil
}

// allocCont allocates a continuation chunk. Chunk indexes 0 and 1 collide
// with the chain terminator values and can never carry a continuation, so
// they are skipped; a skipped chunk stays free for a later head.
func (r *Ropes) allocCont() (int, error) {
	k, err := r.Alloc()
	if err != nil {
		return 0, err
	}
	for k <= endOfChain {
		k, err = r.Alloc()
		if err != nil {
			return 0, err
		}
	}
	return k, nil
}

// insertCont writes the payload tail across continuation chunks, reusing an
// existing chain at maybeAt when present and allocating fresh chunks as the
// tail outgrows it. The final chunk's next word is set to the end-of-chain
// sentinel. Returns the chain's first chunk.
func (r *Ropes) insertCont(maybeAt uint32, data []byte) (int, error) {
	head := int(maybeAt)
	if maybeAt <= endOfChain {
		var err error
		head, err = r.allocCont()
		if err != nil {
			return 0, err
		}
	}
	cur := head
	offset := 0
	for offset < len(data) {
		prev, err := r.storage.ReadWord(cur, 0)
		if err != nil {
			return 0, err
		}
		n, err := r.storage.WriteBytes(cur, contPayloadOffset, data[offset:])
		if err != nil {
			return 0, err
		}
		offset += n
		next := uint32(endOfChain)
		if offset < len(data) {
			if prev > endOfChain {
				next = prev
			} else {
				fresh, err := r.allocCont()
				if err != nil {
					return 0, err
				}
				next = uint32(fresh)
			}
		}
		if next != prev {
			if err := r.storage.WriteWord(cur, 0, next); err != nil {
				return 0, err
			}
		}
		cur = int(next)
	}
	return head, nil
}

// Get reconstructs the payload stored at key by following the chain until
// the length recorded at the head is exhausted.
func (r *Ropes) Get(key int) ([]byte, error) {
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
	out := make([]byte, int(length))
	offset := 0
	cur := key
	dataOffset := headPayloadOffset
	nextIndex := wordNext
	for offset < len(out) {
		n, err := r.storage.ReadBytesInto(cur, dataOffset, out[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		if offset < len(out) {
			next, err := r.storage.ReadWord(cur, nextIndex)
			if err != nil {
				return nil, err
			}
			if next <= endOfChain || int(next) >= r.storage.NumChunks() {
				return nil, &CorruptionError{
					Key:     key,
					Chunk:   cur,
					Message: "chain ends before the recorded length",
				}
			}
			cur = int(next)
			dataOffset = contPayloadOffset
			nextIndex = 0
		}
	}
	return out, nil
}

// Remove deletes the record at key, walking the chain within the recorded
// length and zeroing each chunk's header word so continuation chunks return
// to the free pool. The cursor rewinds so freed chunks are found again.
func (r *Ropes) Remove(key int) error {
	ver, err := r.VersionOf(key)
	if err != nil {
		return err
	}
	if ver == 0 {
		return ErrNoEntry
	}
	length, err := r.storage.ReadWord(key, wordLength)
	if err != nil {
		return err
	}
	remaining := int(length) - (r.storage.ChunkSize() - headPayloadOffset)
	var chain []int
	cur := key
	nextIndex := wordNext
	for remaining > 0 {
		next, err := r.storage.ReadWord(cur, nextIndex)
		if err != nil {
			return err
		}
		if next <= endOfChain || int(next) >= r.storage.NumChunks() {
			break
		}
		cur = int(next)
		chain = append(chain, cur)
		remaining -= r.storage.ChunkSize() - contPayloadOffset
		nextIndex = 0
	}
	if err := r.storage.WriteWord(key, wordVersion, 0); err != nil {
		return err
	}
	lowest := r.storage.NumChunks()
	if key > RootKey {
		lowest = key
	}
	for _, c := range chain {
		if err := r.storage.WriteWord(c, 0, 0); err != nil {
			return err
		}
		if c < lowest && c > RootKey {
			lowest = c
		}
	}
	if lowest < r.nextFree {
		r.nextFree = lowest
	}
	return nil
}
