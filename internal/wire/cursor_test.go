package wire

import (
	"errors"
	"testing"
)

func TestWriterReaderRoundTripPrimitives(t *testing.T) {
	w := NewWriter()
	w.U8(0xAB)
	w.U16(0x1234)
	w.U32(0xDEADBEEF)
	w.U64(0x0102030405060708)
	w.I32(-7)
	w.Bool(true)
	w.Bool(false)
	w.String("hello")

	r := NewReader(w.Bytes())
	if v, err := r.U8(); err != nil || v != 0xAB {
		t.Fatalf("U8: got %x, %v", v, err)
	}
	if v, err := r.U16(); err != nil || v != 0x1234 {
		t.Fatalf("U16: got %x, %v", v, err)
	}
	if v, err := r.U32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("U32: got %x, %v", v, err)
	}
	if v, err := r.U64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("U64: got %x, %v", v, err)
	}
	if v, err := r.I32(); err != nil || v != -7 {
		t.Fatalf("I32: got %d, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != true {
		t.Fatalf("Bool(true): got %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != false {
		t.Fatalf("Bool(false): got %v, %v", v, err)
	}
	if v, err := r.String(); err != nil || v != "hello" {
		t.Fatalf("String: got %q, %v", v, err)
	}
	if err := r.AssertExhausted(); err != nil {
		t.Fatalf("expected cursor exhausted, got %v", err)
	}
}

func TestReaderReturnsInsufficientBytes(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.U32(); !errors.Is(err, ErrInsufficientBytes) {
		t.Fatalf("expected ErrInsufficientBytes, got %v", err)
	}
}

func TestAssertExhaustedReportsTrailingBytes(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.U8(); err != nil {
		t.Fatalf("U8: %v", err)
	}
	if err := r.AssertExhausted(); !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}

func TestPatchOverwritesBackfilledRegion(t *testing.T) {
	w := NewWriter()
	at := w.Len()
	w.U32(0) // placeholder
	w.String("payload")
	w.Patch(at, []byte{0, 0, 0, 42})

	r := NewReader(w.Bytes())
	v, err := r.U32()
	if err != nil || v != 42 {
		t.Fatalf("expected patched value 42, got %d, %v", v, err)
	}
}

func TestFixedArrayCopiesExactLength(t *testing.T) {
	w := NewWriter()
	w.RawBytes([]byte{1, 2, 3, 4})
	r := NewReader(w.Bytes())
	var dst [4]byte
	if err := r.FixedArray(dst[:]); err != nil {
		t.Fatalf("FixedArray: %v", err)
	}
	if dst != ([4]byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected contents: %v", dst)
	}
}
