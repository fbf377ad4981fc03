package items

import (
	"testing"

	"github.com/rs-go/retroshare-node/internal/wire"
)

func TestEncodeDecodeRoundTripsRegisteredItem(t *testing.T) {
	reg := NewRegistryWithDefaults()
	orig := &HeartbeatItem{}

	h, body := Encode(orig)
	if h.Service != ServiceHeartbeat || h.Subtype != orig.Subtype() {
		t.Fatalf("unexpected header: %+v", h)
	}

	decoded, err := reg.Decode(h, body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := decoded.(*HeartbeatItem); !ok {
		t.Fatalf("expected *HeartbeatItem, got %T", decoded)
	}
}

func TestDecodeUnregisteredPairYieldsUnknown(t *testing.T) {
	reg := NewRegistry() // deliberately empty
	h := wire.Header{Service: 0xBEEF, Subtype: 0x42, Length: wire.HeaderSize + 3}
	payload := []byte{1, 2, 3}

	decoded, err := reg.Decode(h, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	unk, ok := decoded.(*Unknown)
	if !ok {
		t.Fatalf("expected *Unknown, got %T", decoded)
	}
	if unk.Service != 0xBEEF || unk.Sub != 0x42 {
		t.Fatalf("unexpected Unknown fields: %+v", unk)
	}
	if string(unk.Payload) != string(payload) {
		t.Fatalf("payload mismatch: got %v, want %v", unk.Payload, payload)
	}
}

func TestDecodeRejectsTrailingBytesForRegisteredSchema(t *testing.T) {
	reg := NewRegistryWithDefaults()
	h, body := Encode(&HeartbeatItem{})
	body = append(body, 0xFF) // corrupt: one extra byte HeartbeatItem does not consume

	if _, err := reg.Decode(h, body); err == nil {
		t.Fatal("expected an error for a payload with unconsumed trailing bytes")
	}
}

func TestRegisterPanicsOnDuplicateKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Register to panic on a duplicate (service, sub) key")
		}
	}()
	reg := NewRegistry()
	reg.Register(1, 1, Schema{Decode: func(uint16, uint8, *wire.Reader) (Item, error) { return nil, nil }})
	reg.Register(1, 1, Schema{Decode: func(uint16, uint8, *wire.Reader) (Item, error) { return nil, nil }})
}

func TestUnknownEncodeBodyEmitsRawPayload(t *testing.T) {
	u := &Unknown{Service: 1, Sub: 2, Payload: []byte{9, 9, 9}}
	w := wire.NewWriter()
	u.EncodeBody(w)
	if string(w.Bytes()) != string(u.Payload) {
		t.Fatalf("got %v, want %v", w.Bytes(), u.Payload)
	}
}
