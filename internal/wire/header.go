package wire

// HeaderSize is the size in bytes of a packet header (§4.A, §6).
const HeaderSize = 8

// SliceVersion is the reserved header version value marking a slice packet
// (§4.C). A regular item header never uses this value.
const SliceVersion = 0xff

// Header is the 8-byte packet header: version, service, subtype, length
// (big-endian). Length counts the whole packet including the header.
type Header struct {
	Version uint8
	Service uint16
	Subtype uint8
	Length  uint32
}

// Encode writes the 8-byte header.
func (h Header) Encode(w *Writer) {
	w.U8(h.Version)
	w.U16(h.Service)
	w.U8(h.Subtype)
	w.U32(h.Length)
}

// DecodeHeader reads an 8-byte header from r.
func DecodeHeader(r *Reader) (Header, error) {
	version, err := r.U8()
	if err != nil {
		return Header{}, err
	}
	service, err := r.U16()
	if err != nil {
		return Header{}, err
	}
	subtype, err := r.U8()
	if err != nil {
		return Header{}, err
	}
	length, err := r.U32()
	if err != nil {
		return Header{}, err
	}
	return Header{Version: version, Service: service, Subtype: subtype, Length: length}, nil
}

// IsSlice reports whether this header introduces a slice fragment (§4.C,§6).
func (h Header) IsSlice() bool { return h.Version == SliceVersion }

// SliceHeader is the 8-byte slice fragment header (§6): slice_flag,
// slice_id(u32), slice_seq(u16), last_flag. It follows a Header whose
// Version is SliceVersion.
type SliceHeader struct {
	SliceFlag uint8
	SliceID   uint32
	SliceSeq  uint16
	LastFlag  uint8
}

func (s SliceHeader) Encode(w *Writer) {
	w.U8(s.SliceFlag)
	w.U32(s.SliceID)
	w.U16(s.SliceSeq)
	w.U8(s.LastFlag)
}

func DecodeSliceHeader(r *Reader) (SliceHeader, error) {
	flag, err := r.U8()
	if err != nil {
		return SliceHeader{}, err
	}
	id, err := r.U32()
	if err != nil {
		return SliceHeader{}, err
	}
	seq, err := r.U16()
	if err != nil {
		return SliceHeader{}, err
	}
	last, err := r.U8()
	if err != nil {
		return SliceHeader{}, err
	}
	return SliceHeader{SliceFlag: flag, SliceID: id, SliceSeq: seq, LastFlag: last}, nil
}

func (s SliceHeader) IsLast() bool { return s.LastFlag != 0 }
