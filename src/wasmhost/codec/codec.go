// Package codec implements the multicodec-prefixed payload encoding of
// spec §4.6/§4.7: every guest payload carries a leading tag byte naming
// its encoding, and decoders verify the prefix before deserializing.
package codec

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/fxamacker/cbor/v2"
)

// Tag identifies a payload's encoding. Values deliberately leave room in
// the byte space for Borsh/MessagePack/Protobuf per spec §4.6, which this
// host does not yet decode but may in the future.
type Tag byte

const (
	TagJSON Tag = 0x01
	TagCBOR Tag = 0x02
)

var (
	// ErrUnsupportedTag is returned when the payload's leading byte does
	// not name an encoding this host understands.
	ErrUnsupportedTag = errors.New("codec: unsupported multicodec tag")
	// ErrEmptyPayload is returned when a payload has no prefix byte at all.
	ErrEmptyPayload = errors.New("codec: empty payload")
)

// Safe CBOR decode limits mirroring the teacher's CBOR hardening: reject
// duplicate map keys, indefinite-length items and all tags, and bound
// array length, map size and nesting depth.
var cborDecMode = mustCBORDecMode()

func mustCBORDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		TagsMd:           cbor.TagsForbidden,
		MaxArrayElements: 65536,
		MaxMapPairs:      65536,
		MaxNestedLevels:  32,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building CBOR decode mode: %v", err))
	}
	return dm
}

// Encode prefixes the JSON or CBOR serialization of v with its multicodec
// tag byte.
func Encode(tag Tag, v any) ([]byte, error) {
	var body []byte
	var err error
	switch tag {
	case TagJSON:
		body, err = sonic.Marshal(v)
	case TagCBOR:
		body, err = cbor.Marshal(v)
	default:
		return nil, ErrUnsupportedTag
	}
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return append([]byte{byte(tag)}, body...), nil
}

// SniffTag validates payload's leading multicodec tag byte without
// deserializing the body, for callers (like the bridge's messaging imports)
// that forward the payload opaquely and only need to know it is well-formed.
func SniffTag(payload []byte) (Tag, error) {
	if len(payload) == 0 {
		return 0, ErrEmptyPayload
	}
	tag := Tag(payload[0])
	switch tag {
	case TagJSON, TagCBOR:
		return tag, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedTag, byte(tag))
	}
}

// Decode reads the leading multicodec tag from payload and deserializes
// the remainder into out, verifying the prefix before touching the body.
func Decode(payload []byte, out any) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	tag := Tag(payload[0])
	body := payload[1:]
	switch tag {
	case TagJSON:
		if err := sonic.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding JSON payload: %w", err)
		}
	case TagCBOR:
		if err := cborDecMode.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding CBOR payload: %w", err)
		}
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnsupportedTag, byte(tag))
	}
	return nil
}
