package sharedslab

import (
	"fmt"
)

// Input validation helpers shared by the buffer and store constructors

// ValidateChunkSize checks if a chunk size is usable for the arena format
func ValidateChunkSize(chunkSize int) error {
	if chunkSize < MinChunkSize {
		return &ValidationError{
			Field:   "chunkSize",
			Value:   chunkSize,
			Message: fmt.Sprintf("chunk size too small: got %d, minimum is %d", chunkSize, MinChunkSize),
		}
	}
	if chunkSize > MaxChunkSize {
		return &ValidationError{
			Field:   "chunkSize",
			Value:   chunkSize,
			Message: fmt.Sprintf("chunk size too large: got %d, maximum is %d", chunkSize, MaxChunkSize),
		}
	}
	if chunkSize%4 != 0 {
		return &ValidationError{
			Field:   "chunkSize",
			Value:   chunkSize,
			Message: "chunk size must be a multiple of the 4-byte word size",
		}
	}
	return nil
}

// ValidateArenaSize checks if a buffer length can hold a whole number of chunks
func ValidateArenaSize(size, chunkSize int) error {
	if size <= 0 {
		return &ValidationError{
			Field:   "size",
			Value:   size,
			Message: "arena size must be positive",
		}
	}
	if size%chunkSize != 0 {
		return &ValidationError{
			Field:   "size",
			Value:   size,
			Message: fmt.Sprintf("arena size must be a multiple of the chunk size %d", chunkSize),
		}
	}
	return nil
}

// ValidateKey checks if a key addresses a chunk inside the arena
func ValidateKey(key, numChunks int) error {
	if key < 0 || key >= numChunks {
		return &ValidationError{
			Field:   "key",
			Value:   key,
			Message: fmt.Sprintf("key must be in [0, %d)", numChunks),
			Err:     ErrOutOfRange,
		}
	}
	return nil
}
