// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Admin messages are flat maps of a few flags. These bounds reject
// anything shaped otherwise long before it costs memory.
const (
	maxNestedLevels = 8
	maxMapPairs     = 64
	maxArrayLength  = 64
)

var (
	// encMode is Core Deterministic Encoding (RFC 8949 §4.2), so
	// requests and replies are byte-identical across runs.
	encMode = mustEncMode(cbor.CoreDetEncOptions())

	// looseMode decodes untyped maps as map[string]any and skips
	// fields the target struct lacks.
	looseMode = mustDecMode(cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels:  maxNestedLevels,
		MaxMapPairs:      maxMapPairs,
		MaxArrayElements: maxArrayLength,
	})

	// strictMode additionally fails on duplicate map keys and on
	// fields the target struct lacks.
	strictMode = mustDecMode(cbor.DecOptions{
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels:   maxNestedLevels,
		MaxMapPairs:       maxMapPairs,
		MaxArrayElements:  maxArrayLength,
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	})
)

func mustEncMode(options cbor.EncOptions) cbor.EncMode {
	mode, err := options.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building CBOR encoder: %v", err))
	}
	return mode
}

func mustDecMode(options cbor.DecOptions) cbor.DecMode {
	mode, err := options.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building CBOR decoder: %v", err))
	}
	return mode
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v, ignoring fields v has no room for.
func Unmarshal(data []byte, v any) error {
	return looseMode.Unmarshal(data, v)
}

// UnmarshalStrict decodes data into v and fails on a duplicate map key
// or a field v does not declare. Admin requests are decoded this way so
// a misspelled flag is an error rather than a no-op.
func UnmarshalStrict(data []byte, v any) error {
	return strictMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage is an encoded CBOR value whose decoding is deferred.
type RawMessage = cbor.RawMessage

// NewEncoder returns a deterministic encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a lenient decoder reading from r. Clients read
// replies with it so a newer server may add reply fields.
func NewDecoder(r io.Reader) *Decoder {
	return looseMode.NewDecoder(r)
}

// NewStrictDecoder returns a decoder reading from r with the rules of
// UnmarshalStrict. The admin socket reads requests with it.
func NewStrictDecoder(r io.Reader) *Decoder {
	return strictMode.NewDecoder(r)
}
