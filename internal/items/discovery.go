package items

import "github.com/rs-go/retroshare-node/internal/wire"

// DiscoveryPeerRecordItem gossips a friend-of-friend peer record and its
// known addresses (§4.F Discovery, §3 "Peer record").
type DiscoveryPeerRecordItem struct {
	PeerID          [16]byte
	PgpID           [8]byte
	DisplayName     string
	LocalAddresses  []string
	ExternalAddresses []string
	HiddenNode      bool
	LastSeen        int64
}

func (i *DiscoveryPeerRecordItem) ServiceType() uint16 { return ServiceDiscovery }
func (i *DiscoveryPeerRecordItem) Subtype() uint8      { return SubDiscoveryPeerRecord }

func (i *DiscoveryPeerRecordItem) EncodeBody(w *wire.Writer) {
	w.RawBytes(i.PeerID[:])
	w.RawBytes(i.PgpID[:])
	w.String(i.DisplayName)
	wire.WriteSeq(w, i.LocalAddresses, func(bw *wire.Writer, s string) { bw.String(s) })
	wire.WriteSeq(w, i.ExternalAddresses, func(bw *wire.Writer, s string) { bw.String(s) })
	w.Bool(i.HiddenNode)
	w.I64(i.LastSeen)
}

func decodeDiscoveryPeerRecord(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	var out DiscoveryPeerRecordItem
	if err := body.FixedArray(out.PeerID[:]); err != nil {
		return nil, err
	}
	if err := body.FixedArray(out.PgpID[:]); err != nil {
		return nil, err
	}
	name, err := body.String()
	if err != nil {
		return nil, err
	}
	out.DisplayName = name
	local, err := wire.ReadSeq(body, func(r *wire.Reader) (string, error) { return r.String() })
	if err != nil {
		return nil, err
	}
	out.LocalAddresses = local
	ext, err := wire.ReadSeq(body, func(r *wire.Reader) (string, error) { return r.String() })
	if err != nil {
		return nil, err
	}
	out.ExternalAddresses = ext
	hidden, err := body.Bool()
	if err != nil {
		return nil, err
	}
	out.HiddenNode = hidden
	ts, err := body.I64()
	if err != nil {
		return nil, err
	}
	out.LastSeen = ts
	return &out, nil
}

func init() {
	registerDefault(ServiceDiscovery, SubDiscoveryPeerRecord, Schema{Decode: decodeDiscoveryPeerRecord})
}
