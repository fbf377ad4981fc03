package wire

import "encoding/binary"

// Reader is a cursor over a byte slice implementing the big-endian primitive
// decode rules of §4.A. It never panics: every read checks remaining length
// and returns ErrInsufficientBytes.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding starting at offset 0.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Pos returns the current cursor offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// AssertExhausted returns ErrTrailingBytes if the cursor has not reached the
// end of the buffer.
func (r *Reader) AssertExhausted() error {
	if r.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrInsufficientBytes
	}
	return nil
}

// Bytes consumes and returns the next n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// FixedArray copies the next len(dst) bytes into dst.
func (r *Reader) FixedArray(dst []byte) error {
	b, err := r.Bytes(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// Bool decodes a one-byte boolean (0 or 1 per §4.A; any non-zero is true on
// read for tolerance, but Writer.Bool always emits 0/1).
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// String decodes a u32 length + UTF-8 byte string with no trailing NUL.
func (r *Reader) String() (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer accumulates big-endian encoded bytes per §4.A.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) RawBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) U8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) U16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *Writer) U32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *Writer) U64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *Writer) I8(v int8)   { w.U8(uint8(v)) }
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// String encodes a u32 byte-length prefix followed by the UTF-8 bytes.
func (w *Writer) String(s string) {
	w.U32(uint32(len(s)))
	w.RawBytes([]byte(s))
}

// Patch overwrites w.buf[at:at+len(b)] with b, used to backfill a length
// field once the body it covers has been written.
func (w *Writer) Patch(at int, b []byte) { copy(w.buf[at:], b) }
