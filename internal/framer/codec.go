package framer

import "github.com/rs-go/retroshare-node/internal/wire"

// EncodePacket serializes a Packet to the exact bytes placed on the wire:
// the 8-byte header, an 8-byte slice header when present, then the payload.
func EncodePacket(p Packet) []byte {
	w := wire.NewWriter()
	p.Header.Encode(w)
	if p.Slice != nil {
		p.Slice.Encode(w)
	}
	w.RawBytes(p.Payload)
	return w.Bytes()
}

// DecodeHeaderPrefix decodes only the leading 8-byte header from a
// freshly-read prefix; it never decodes a slice header (see
// DecodeSlicePrefix). The caller is responsible for reading exactly
// wire.HeaderSize bytes first, inspecting IsSlice, and reading a further
// wire.HeaderSize bytes plus the remaining payload accordingly — this
// mirrors how a stream reader has no way to know slice-ness before decoding
// the first 8 bytes.
func DecodeHeaderPrefix(b []byte) (wire.Header, error) {
	r := wire.NewReader(b)
	return wire.DecodeHeader(r)
}

// DecodeSlicePrefix decodes the second 8-byte slice header following a
// header with IsSlice() == true.
func DecodeSlicePrefix(b []byte) (wire.SliceHeader, error) {
	r := wire.NewReader(b)
	return wire.DecodeSliceHeader(r)
}

// PayloadLen returns the number of payload bytes that follow the header(s)
// for a packet whose total Length field is h.Length, accounting for the
// extra 8-byte slice header when isSlice is true.
func PayloadLen(h wire.Header, isSlice bool) int {
	n := int(h.Length) - wire.HeaderSize
	if isSlice {
		n -= wire.HeaderSize
	}
	if n < 0 {
		return 0
	}
	return n
}
