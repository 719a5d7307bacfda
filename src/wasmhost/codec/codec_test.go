package codec

import (
	"errors"
	"testing"
)

type sample struct {
	Name  string `json:"name" cbor:"name"`
	Count int    `json:"count" cbor:"count"`
}

func TestEncodeDecode_JSONRoundTrip(t *testing.T) {
	in := sample{Name: "widget", Count: 3}
	payload, err := Encode(TagJSON, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload[0] != byte(TagJSON) {
		t.Fatalf("expected JSON tag prefix, got 0x%02x", payload[0])
	}

	var out sample
	if err := Decode(payload, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestEncodeDecode_CBORRoundTrip(t *testing.T) {
	in := sample{Name: "gadget", Count: 7}
	payload, err := Encode(TagCBOR, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload[0] != byte(TagCBOR) {
		t.Fatalf("expected CBOR tag prefix, got 0x%02x", payload[0])
	}

	var out sample
	if err := Decode(payload, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestDecode_RejectsUnsupportedTag(t *testing.T) {
	var out sample
	err := Decode([]byte{0xFF, 0x01, 0x02}, &out)
	if !errors.Is(err, ErrUnsupportedTag) {
		t.Fatalf("expected ErrUnsupportedTag, got %v", err)
	}
}

func TestDecode_RejectsEmptyPayload(t *testing.T) {
	var out sample
	if err := Decode(nil, &out); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestEncode_RejectsUnsupportedTag(t *testing.T) {
	_, err := Encode(Tag(0xAA), sample{})
	if !errors.Is(err, ErrUnsupportedTag) {
		t.Fatalf("expected ErrUnsupportedTag, got %v", err)
	}
}
