// Package framer implements the packet framer of §4.C: outbound slicing of
// oversized items and per-session inbound reassembly.
package framer

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/wire"
)

// MaxPacket is the largest single packet emitted before slicing kicks in
// (§4.C.1 default).
const MaxPacket = 512 * 1024

// ErrReassembly marks framing corruption that is session-fatal per §4.C
// failure semantics and §7 (non-retriable).
type ErrReassembly struct{ Reason string }

func (e *ErrReassembly) Error() string { return "framer: reassembly violation: " + e.Reason }

// Packet is one on-wire unit: either a regular item packet or a slice
// fragment, already framed with its header bytes.
type Packet struct {
	Header  wire.Header
	Slice   *wire.SliceHeader // non-nil for slice fragments
	Payload []byte
}

// Split turns (header, payload) into one or more wire packets. If the total
// size is within MaxPacket, it emits a single regular packet; otherwise it
// slices into N fragments sharing a fresh slice_id, numbered 0..N-1, with
// is_last set only on the final fragment (§8 invariant 3).
func Split(nextSliceID func() uint32, h wire.Header, payload []byte) []Packet {
	total := wire.HeaderSize + len(payload)
	if total <= MaxPacket {
		h.Length = uint32(total)
		return []Packet{{Header: h, Payload: payload}}
	}

	id := nextSliceID()
	chunkSize := MaxPacket - wire.HeaderSize - 16 // leave room for slice framing overhead
	if chunkSize <= 0 {
		chunkSize = 1
	}
	var packets []Packet
	for off, seq := 0, uint16(0); off < len(payload); off, seq = off+chunkSize, seq+1 {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		isLast := end == len(payload)
		var lastFlag uint8
		if isLast {
			lastFlag = 1
		}
		chunk := payload[off:end]
		sh := wire.SliceHeader{SliceFlag: 1, SliceID: id, SliceSeq: seq, LastFlag: lastFlag}
		sliceHeader := h
		sliceHeader.Version = wire.SliceVersion
		sliceHeader.Length = uint32(wire.HeaderSize + wire.HeaderSize + len(chunk))
		packets = append(packets, Packet{Header: sliceHeader, Slice: &sh, Payload: chunk})
	}
	return packets
}

type reassembly struct {
	header    wire.Header
	expectSeq uint16
	seen      *bitset.BitSet
	buf       []byte
}

// Reassembler holds the per-session reassembly table of §4.C.2. Feed and
// Abandon serialize on an internal mutex; a session has a single inbound
// reader.
type Reassembler struct {
	mu      sync.Mutex
	pending map[uint32]*reassembly
	log     *logrus.Entry
}

// NewReassembler returns an empty reassembly table for one session.
func NewReassembler(log *logrus.Entry) *Reassembler {
	return &Reassembler{pending: make(map[uint32]*reassembly), log: log}
}

// Feed processes one inbound packet. It returns a non-nil assembled payload
// (plus its reconstructed header) when a regular packet or the final slice
// of a group arrives; it returns (zero, nil, nil) while a slice group is
// still incomplete. A non-nil error is session-fatal (§4.C failure
// semantics) and the caller must tear down the session.
func (re *Reassembler) Feed(h wire.Header, slice *wire.SliceHeader, payload []byte) (wire.Header, []byte, error) {
	if slice == nil {
		return h, payload, nil
	}

	re.mu.Lock()
	defer re.mu.Unlock()

	group, ok := re.pending[slice.SliceID]
	if !ok {
		if slice.SliceSeq != 0 {
			return wire.Header{}, nil, &ErrReassembly{Reason: fmt.Sprintf("slice id %d first seen at seq %d, not 0", slice.SliceID, slice.SliceSeq)}
		}
		group = &reassembly{
			header:    h,
			expectSeq: 0,
			seen:      bitset.New(1024),
		}
		re.pending[slice.SliceID] = group
	}

	if uint(slice.SliceSeq) < group.seen.Len() && group.seen.Test(uint(slice.SliceSeq)) {
		return wire.Header{}, nil, &ErrReassembly{Reason: fmt.Sprintf("duplicate slice seq %d for id %d", slice.SliceSeq, slice.SliceID)}
	}
	if slice.SliceSeq != group.expectSeq {
		return wire.Header{}, nil, &ErrReassembly{Reason: fmt.Sprintf("out-of-order slice seq %d for id %d, expected %d", slice.SliceSeq, slice.SliceID, group.expectSeq)}
	}

	group.seen.Set(uint(slice.SliceSeq))
	group.buf = append(group.buf, payload...)
	group.expectSeq++

	if !slice.IsLast() {
		return wire.Header{}, nil, nil
	}

	delete(re.pending, slice.SliceID)
	final := group.header
	final.Version = 0x02
	final.Length = uint32(wire.HeaderSize + len(group.buf))
	return final, group.buf, nil
}

// Abandon drops all in-flight reassembly state, used on session teardown.
func (re *Reassembler) Abandon() {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.pending = make(map[uint32]*reassembly)
}
