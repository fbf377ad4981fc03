package items

import "github.com/rs-go/retroshare-node/internal/wire"

// SliceProbeItem is the sentinel emitted periodically by some peers and
// consumed silently (§4.C.3, §8 invariant 8). It carries no payload.
type SliceProbeItem struct{}

func (i *SliceProbeItem) ServiceType() uint16       { return ServiceSliceProbe }
func (i *SliceProbeItem) Subtype() uint8            { return SubSliceProbe }
func (i *SliceProbeItem) EncodeBody(w *wire.Writer) {}

func decodeSliceProbe(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	return &SliceProbeItem{}, nil
}

// LegacySharedDirectoriesItem is event type 13, marked deprecated by the
// legacy source but still occupying its ordinal. §9 Open Questions: whether
// a peer still emits it is unresolved, so the decoder accepts and discards
// it rather than treating it as unknown.
type LegacySharedDirectoriesItem struct {
	RawPayload []byte
}

const SubSharedDirectoriesLegacy uint8 = 13

func (i *LegacySharedDirectoriesItem) ServiceType() uint16 { return ServiceDiscovery }
func (i *LegacySharedDirectoriesItem) Subtype() uint8      { return SubSharedDirectoriesLegacy }
func (i *LegacySharedDirectoriesItem) EncodeBody(w *wire.Writer) {
	w.RawBytes(i.RawPayload)
}

func decodeLegacySharedDirectories(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	rest, err := body.Bytes(body.Remaining())
	if err != nil {
		return nil, err
	}
	return &LegacySharedDirectoriesItem{RawPayload: append([]byte(nil), rest...)}, nil
}

func init() {
	registerDefault(ServiceSliceProbe, SubSliceProbe, Schema{Decode: decodeSliceProbe})
	registerDefault(ServiceDiscovery, SubSharedDirectoriesLegacy, Schema{Decode: decodeLegacySharedDirectories})
}
