package wire

// TlvHeaderSize is the size in bytes of a TLV header: tag(u16) + length(u32).
const TlvHeaderSize = 6

// TlvHeader is the 6-byte {tag, total_length} prefix shared by every TLV
// flavour. total_length always includes this header.
type TlvHeader struct {
	Tag    uint16
	Length uint32
}

func (h TlvHeader) encode(w *Writer) {
	w.U16(h.Tag)
	w.U32(h.Length)
}

func readTlvHeader(r *Reader) (TlvHeader, error) {
	tag, err := r.U16()
	if err != nil {
		return TlvHeader{}, err
	}
	length, err := r.U32()
	if err != nil {
		return TlvHeader{}, err
	}
	return TlvHeader{Tag: tag, Length: length}, nil
}

// PeekTag reads the tag of the TLV at the cursor without consuming it.
func PeekTag(r *Reader) (uint16, error) {
	if r.Remaining() < 2 {
		return 0, ErrInsufficientBytes
	}
	sub := NewReader(r.buf[r.pos:])
	return sub.U16()
}

// WriteTaggedString encodes {tag:u16, total_length:u32, utf8 bytes}, where
// total_length includes the 6-byte header (§4.A "Tagged string").
func WriteTaggedString(w *Writer, tag uint16, s string) {
	w.U16(tag)
	w.U32(uint32(TlvHeaderSize + len(s)))
	w.RawBytes([]byte(s))
}

// ReadTaggedString decodes a tagged string, requiring tag == wantTag.
func ReadTaggedString(r *Reader, wantTag uint16) (string, error) {
	hdr, err := readTlvHeader(r)
	if err != nil {
		return "", err
	}
	if hdr.Tag != wantTag {
		return "", ErrWrongTag
	}
	if hdr.Length < TlvHeaderSize {
		return "", ErrInsufficientBytes
	}
	b, err := r.Bytes(int(hdr.Length) - TlvHeaderSize)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteTlv encodes Tlv<TAG,T>: {tag, total_length, encoded(T)}. encode must
// write exactly the primitive/TLV encoding of T into the body writer.
func WriteTlv(w *Writer, tag uint16, encodeBody func(*Writer)) {
	bodyW := NewWriter()
	encodeBody(bodyW)
	w.U16(tag)
	w.U32(uint32(TlvHeaderSize + bodyW.Len()))
	w.RawBytes(bodyW.Bytes())
}

// ReadTlv decodes Tlv<TAG,T>, handing the exact body bytes (length-bounded,
// per invariant 2 in §8: decoding consumes exactly L bytes) to decodeBody.
func ReadTlv[T any](r *Reader, wantTag uint16, decodeBody func(*Reader) (T, error)) (T, error) {
	var zero T
	hdr, err := readTlvHeader(r)
	if err != nil {
		return zero, err
	}
	if hdr.Tag != wantTag {
		return zero, ErrWrongTag
	}
	if hdr.Length < TlvHeaderSize {
		return zero, ErrInsufficientBytes
	}
	bodyLen := int(hdr.Length) - TlvHeaderSize
	body, err := r.Bytes(bodyLen)
	if err != nil {
		return zero, err
	}
	br := NewReader(body)
	v, err := decodeBody(br)
	if err != nil {
		return zero, err
	}
	if err := br.AssertExhausted(); err != nil {
		return zero, err
	}
	return v, nil
}

// WriteTlv2 encodes the "Tlv2" flavour (§4.A): T embeds its own u32 length
// internally on the legacy wire, but the outer TLV header supersedes it —
// the inner length field is omitted entirely here and must not be written
// by encodeBody.
func WriteTlv2(w *Writer, tag uint16, encodeBody func(*Writer)) { WriteTlv(w, tag, encodeBody) }

// ReadTlv2 decodes the Tlv2 flavour; identical framing to ReadTlv, kept as a
// distinct name so call sites document which on-wire flavour a field uses.
func ReadTlv2[T any](r *Reader, wantTag uint16, decodeBody func(*Reader) (T, error)) (T, error) {
	return ReadTlv(r, wantTag, decodeBody)
}

// WriteTlvSet encodes a tlv-set of T under tag: {tag, total_length,
// concatenated encoded T...}. There is no inner count; the boundary is
// total_length, so decoding must loop until the body is exhausted.
func WriteTlvSet[T any](w *Writer, tag uint16, items []T, encode func(*Writer, T)) {
	bodyW := NewWriter()
	for _, it := range items {
		encode(bodyW, it)
	}
	w.U16(tag)
	w.U32(uint32(TlvHeaderSize + bodyW.Len()))
	w.RawBytes(bodyW.Bytes())
}

// ReadTlvSet decodes a tlv-set of T under tag, looping the per-element
// decoder until the declared body length is exhausted.
func ReadTlvSet[T any](r *Reader, wantTag uint16, decode func(*Reader) (T, error)) ([]T, error) {
	hdr, err := readTlvHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Tag != wantTag {
		return nil, ErrWrongTag
	}
	if hdr.Length < TlvHeaderSize {
		return nil, ErrInsufficientBytes
	}
	bodyLen := int(hdr.Length) - TlvHeaderSize
	body, err := r.Bytes(bodyLen)
	if err != nil {
		return nil, err
	}
	br := NewReader(body)
	var out []T
	for br.Remaining() > 0 {
		v, err := decode(br)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// WriteTlvMap encodes a tlv-map under tag with pair tag pairTag: {tag,
// total_length, {pairTag, pair_len, encoded(K), encoded(V)}...}. The pair
// tag is a per-map-type constant, not a single global value — see
// SPEC_FULL §3 on retroshare_compat/tlv_keys.rs / tlv_map.rs.
func WriteTlvMap[K comparable, V any](w *Writer, tag, pairTag uint16, m map[K]V, encodeK func(*Writer, K), encodeV func(*Writer, V)) {
	bodyW := NewWriter()
	for k, v := range m {
		pairW := NewWriter()
		encodeK(pairW, k)
		encodeV(pairW, v)
		bodyW.U16(pairTag)
		bodyW.U32(uint32(TlvHeaderSize + pairW.Len()))
		bodyW.RawBytes(pairW.Bytes())
	}
	w.U16(tag)
	w.U32(uint32(TlvHeaderSize + bodyW.Len()))
	w.RawBytes(bodyW.Bytes())
}

// ReadTlvMap decodes a tlv-map under tag with pair tag pairTag.
func ReadTlvMap[K comparable, V any](r *Reader, tag, pairTag uint16, decodeK func(*Reader) (K, error), decodeV func(*Reader) (V, error)) (map[K]V, error) {
	hdr, err := readTlvHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Tag != tag {
		return nil, ErrWrongTag
	}
	if hdr.Length < TlvHeaderSize {
		return nil, ErrInsufficientBytes
	}
	bodyLen := int(hdr.Length) - TlvHeaderSize
	body, err := r.Bytes(bodyLen)
	if err != nil {
		return nil, err
	}
	br := NewReader(body)
	out := make(map[K]V)
	for br.Remaining() > 0 {
		pairHdr, err := readTlvHeader(br)
		if err != nil {
			return nil, err
		}
		if pairHdr.Tag != pairTag {
			return nil, ErrWrongTag
		}
		if pairHdr.Length < TlvHeaderSize {
			return nil, ErrInsufficientBytes
		}
		pairBody, err := br.Bytes(int(pairHdr.Length) - TlvHeaderSize)
		if err != nil {
			return nil, err
		}
		pr := NewReader(pairBody)
		k, err := decodeK(pr)
		if err != nil {
			return nil, err
		}
		v, err := decodeV(pr)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
