// Package sharedslab provides a shared, versioned object store layered over a
// raw byte buffer, the storage substrate for an in-memory filesystem that can
// be observed from several isolated execution contexts at once.
//
// # Overview
//
// sharedslab carves a caller-provided buffer into fixed-size chunks and stores
// variable-length records as singly-linked chunk chains ("ropes"). Each record
// is addressed by the index of its head chunk (its key) and carries a
// monotonic version counter. On top of the rope store, a typed slab caches
// decoded values and uses the version counters to detect writes made through
// other slabs attached to the same buffer.
//
// Three layers, leaves first:
//
//   - Chunked: bounded word and byte access at (chunk, offset) coordinates.
//   - Ropes: chained variable-length records with per-key versioning and a
//     free-chunk cursor.
//   - Slab: a typed cache keyed by chunk index, serializing values with an
//     injected codec (CBOR by default) and reconciling with the buffer
//     through version checks.
//
// # Basic Usage
//
//	// Create a shared arena of 1024 chunks.
//	buf, err := sharedslab.NewByteBuffer(1024 * sharedslab.DefaultChunkSize)
//	if err != nil {
//	    panic(err)
//	}
//
//	slab, err := sharedslab.NewSlab[Node](nil, nil)
//	if err != nil {
//	    panic(err)
//	}
//	if err := slab.Attach(buf); err != nil {
//	    panic(err)
//	}
//
//	key, _ := slab.Insert(Node{Name: "etc"})
//	n, _ := slab.Get(key)   // cached, version-checked view
//	n.Name = "usr"
//	_ = slab.Flush(key)     // publish the change to the buffer
//
// A second slab attached to the same buffer observes the insert through the
// version counter and decodes the record on its next Get.
//
// # Arena Format
//
// The buffer is an array of chunks of ChunkSize bytes (default 1024). Word
// fields are big-endian uint32. A chunk that begins a record chain (a head
// chunk, whose index is the record's key) is laid out as:
//
//	┌──────────────┬──────────────┬──────────────┬────────────────────┐
//	│ word 0       │ word 1       │ word 2       │ bytes 12..C        │
//	│ version      │ length       │ next chunk   │ payload            │
//	└──────────────┴──────────────┴──────────────┴────────────────────┘
//
// A continuation chunk carries overflow payload:
//
//	┌──────────────┬─────────────────────────────────────────────────┐
//	│ word 0       │ bytes 4..C                                      │
//	│ next chunk   │ payload                                         │
//	└──────────────┴─────────────────────────────────────────────────┘
//
// A version of zero means the chunk is not a live head. A next pointer of 0
// or 1 terminates the chain; 1 is the end-of-chain sentinel written by the
// store, distinct from the never-written 0. Chunk 0 is the root record and is
// only written explicitly.
//
// # Sharing Model
//
// The buffer is the only shared state. Every attached Slab keeps its own
// cache and its own free cursor; they reconcile lazily, readers through the
// version counters and allocators by skipping any chunk whose header word is
// non-zero. Writes order payload before the version word, so a reader that
// observes a new version observes a complete record. Concurrent writers to
// the same key are resolved last-writer-wins at the version counter; this is
// the accepted consistency tier, not a transactional store.
//
// # Buffers
//
// Any io.ReaderAt/io.WriterAt pair with a fixed length can serve as the
// arena. The package ships three: ByteBuffer (heap), FileBuffer (an arena in
// any absfs.File), and MmapBuffer (a file-mapped arena shared between
// processes).
package sharedslab
