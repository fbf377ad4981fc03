package framer

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/wire"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestSplitReturnsSinglePacketUnderLimit(t *testing.T) {
	h := wire.Header{Version: 2, Service: 1, Subtype: 1}
	payload := []byte("small payload")
	packets := Split(func() uint32 { return 1 }, h, payload)
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	if packets[0].Slice != nil {
		t.Fatal("expected no slice header for a packet under the limit")
	}
	if int(packets[0].Header.Length) != wire.HeaderSize+len(payload) {
		t.Fatalf("unexpected length %d", packets[0].Header.Length)
	}
}

func TestSplitSlicesOversizedPayload(t *testing.T) {
	h := wire.Header{Version: 2, Service: 1, Subtype: 1}
	payload := make([]byte, MaxPacket*2+123)
	for i := range payload {
		payload[i] = byte(i)
	}
	nextID := uint32(42)
	packets := Split(func() uint32 { return nextID }, h, payload)
	if len(packets) < 2 {
		t.Fatalf("expected multiple slice fragments, got %d", len(packets))
	}
	for i, p := range packets {
		if p.Slice == nil {
			t.Fatalf("fragment %d missing slice header", i)
		}
		if p.Slice.SliceID != nextID {
			t.Fatalf("fragment %d: slice id = %d, want %d", i, p.Slice.SliceID, nextID)
		}
		if int(p.Slice.SliceSeq) != i {
			t.Fatalf("fragment %d: slice seq = %d, want %d", i, p.Slice.SliceSeq, i)
		}
		isLast := i == len(packets)-1
		if p.Slice.IsLast() != isLast {
			t.Fatalf("fragment %d: IsLast() = %v, want %v", i, p.Slice.IsLast(), isLast)
		}
	}
}

func TestReassemblerReconstructsSlicedPayload(t *testing.T) {
	h := wire.Header{Version: 2, Service: 1, Subtype: 1}
	payload := make([]byte, MaxPacket*3+7)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	packets := Split(func() uint32 { return 7 }, h, payload)
	if len(packets) < 2 {
		t.Fatal("test payload did not produce multiple fragments")
	}

	re := NewReassembler(testLog())
	var final wire.Header
	var finalPayload []byte
	for i, p := range packets {
		gotH, gotPayload, err := re.Feed(p.Header, p.Slice, p.Payload)
		if err != nil {
			t.Fatalf("Feed fragment %d: %v", i, err)
		}
		if i < len(packets)-1 {
			if gotPayload != nil {
				t.Fatalf("fragment %d: expected incomplete reassembly, got payload", i)
			}
			continue
		}
		final, finalPayload = gotH, gotPayload
	}

	if len(finalPayload) != len(payload) {
		t.Fatalf("reassembled length = %d, want %d", len(finalPayload), len(payload))
	}
	for i := range payload {
		if finalPayload[i] != payload[i] {
			t.Fatalf("byte %d mismatch: got %x, want %x", i, finalPayload[i], payload[i])
		}
	}
	if final.Version != 0x02 {
		t.Fatalf("expected reconstructed header version 0x02, got %x", final.Version)
	}
}

func TestReassemblerRejectsOutOfOrderSlice(t *testing.T) {
	h := wire.Header{Version: wire.SliceVersion, Service: 1, Subtype: 1}
	re := NewReassembler(testLog())
	sh := wire.SliceHeader{SliceFlag: 1, SliceID: 1, SliceSeq: 1} // first seq must be 0
	_, _, err := re.Feed(h, &sh, []byte("x"))
	if err == nil {
		t.Fatal("expected an error for a slice group that doesn't start at seq 0")
	}
}

func TestReassemblerRejectsDuplicateSlice(t *testing.T) {
	h := wire.Header{Version: wire.SliceVersion, Service: 1, Subtype: 1}
	re := NewReassembler(testLog())
	first := wire.SliceHeader{SliceFlag: 1, SliceID: 2, SliceSeq: 0}
	if _, _, err := re.Feed(h, &first, []byte("a")); err != nil {
		t.Fatalf("first Feed: %v", err)
	}
	// A retransmitted seq 0 should be rejected outright, independent of the
	// expected-seq check, since it was already marked seen.
	dup := wire.SliceHeader{SliceFlag: 1, SliceID: 2, SliceSeq: 0}
	if _, _, err := re.Feed(h, &dup, []byte("a")); err == nil {
		t.Fatal("expected an error for a duplicate slice seq")
	}
}

func TestReassemblerAbandonClearsPendingGroups(t *testing.T) {
	h := wire.Header{Version: wire.SliceVersion, Service: 1, Subtype: 1}
	re := NewReassembler(testLog())
	sh := wire.SliceHeader{SliceFlag: 1, SliceID: 3, SliceSeq: 0}
	if _, _, err := re.Feed(h, &sh, []byte("a")); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	re.Abandon()
	// After Abandon, seq 0 for the same id must be accepted again as a fresh
	// group rather than rejected as a duplicate/out-of-order resend.
	if _, _, err := re.Feed(h, &sh, []byte("a")); err != nil {
		t.Fatalf("expected Abandon to clear pending state, got error: %v", err)
	}
}

func TestPayloadLenAccountsForSliceHeader(t *testing.T) {
	h := wire.Header{Length: uint32(wire.HeaderSize + wire.HeaderSize + 10)}
	if n := PayloadLen(h, true); n != 10 {
		t.Fatalf("PayloadLen(slice) = %d, want 10", n)
	}
	h2 := wire.Header{Length: uint32(wire.HeaderSize + 10)}
	if n := PayloadLen(h2, false); n != 10 {
		t.Fatalf("PayloadLen(regular) = %d, want 10", n)
	}
}
