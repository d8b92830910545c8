package sharedslab

import (
	"github.com/fxamacker/cbor/v2"
)

// Codec serializes slab values. Encodings must be total over well-formed
// values and round-trippable; the store records the byte length itself, so
// the encoding does not need to be self-delimiting beyond that.
//
// Every context attached to the same arena must use an identical codec.
type Codec[T any] interface {
	// Encode serializes v.
	Encode(v *T) ([]byte, error)

	// Decode deserializes data into v.
	Decode(data []byte, v *T) error
}

// cborEnc is the canonical encoding mode shared by all CBORCodec instances.
var cborEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEnc = em
}

// CBORCodec is the reference Codec, encoding values as canonical CBOR.
type CBORCodec[T any] struct{}

// Encode implements Codec.
func (CBORCodec[T]) Encode(v *T) ([]byte, error) {
	return cborEnc.Marshal(v)
}

// Decode implements Codec.
func (CBORCodec[T]) Decode(data []byte, v *T) error {
	return cbor.Unmarshal(data, v)
}
