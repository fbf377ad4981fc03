package wire

import "testing"

func TestWriteSeqReadSeqRoundTrip(t *testing.T) {
	w := NewWriter()
	WriteSeq(w, []string{"a", "bb", "ccc"}, func(bw *Writer, s string) { bw.String(s) })

	r := NewReader(w.Bytes())
	got, err := ReadSeq(r, func(br *Reader) (string, error) { return br.String() })
	if err != nil {
		t.Fatalf("ReadSeq: %v", err)
	}
	want := []string{"a", "bb", "ccc"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWriteSeqEmptySliceRoundTrips(t *testing.T) {
	w := NewWriter()
	WriteSeq[string](w, nil, func(bw *Writer, s string) { bw.String(s) })
	r := NewReader(w.Bytes())
	got, err := ReadSeq(r, func(br *Reader) (string, error) { return br.String() })
	if err != nil {
		t.Fatalf("ReadSeq: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestWriteMapReadMapRoundTrip(t *testing.T) {
	w := NewWriter()
	m := map[uint32]string{1: "one", 2: "two"}
	WriteMap(w, m, func(bw *Writer, k uint32) { bw.U32(k) }, func(bw *Writer, v string) { bw.String(v) })

	r := NewReader(w.Bytes())
	got, err := ReadMap(r, func(br *Reader) (uint32, error) { return br.U32() }, func(br *Reader) (string, error) { return br.String() })
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if len(got) != len(m) {
		t.Fatalf("len = %d, want %d", len(got), len(m))
	}
	for k, v := range m {
		if got[k] != v {
			t.Errorf("key %d: got %q, want %q", k, got[k], v)
		}
	}
}
