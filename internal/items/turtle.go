package items

import "github.com/rs-go/retroshare-node/internal/wire"

// TurtleHeader is held as a composed field by the OpenTunnel and TunnelOk
// items instead of a "turtle generic" base class (§9 composition over
// inheritance); TurtleGenericDataItem carries only its tunnel id.
type TurtleHeader struct {
	RequestID uint32
}

func (h TurtleHeader) encode(w *wire.Writer) { w.U32(h.RequestID) }

func decodeTurtleHeader(r *wire.Reader) (TurtleHeader, error) {
	id, err := r.U32()
	return TurtleHeader{RequestID: id}, err
}

// TurtleOpenTunnelItem is flooded with decreasing depth (max 6) while
// searching for a store matching Hash (§4.F turtle tunnel protocol).
type TurtleOpenTunnelItem struct {
	Header TurtleHeader
	Depth  uint8
	Hash   [20]byte
}

func (i *TurtleOpenTunnelItem) ServiceType() uint16 { return ServiceTurtle }
func (i *TurtleOpenTunnelItem) Subtype() uint8      { return SubTurtleOpenTunnel }
func (i *TurtleOpenTunnelItem) EncodeBody(w *wire.Writer) {
	i.Header.encode(w)
	w.U8(i.Depth)
	w.RawBytes(i.Hash[:])
}

func decodeTurtleOpenTunnel(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	h, err := decodeTurtleHeader(body)
	if err != nil {
		return nil, err
	}
	depth, err := body.U8()
	if err != nil {
		return nil, err
	}
	var hash [20]byte
	if err := body.FixedArray(hash[:]); err != nil {
		return nil, err
	}
	return &TurtleOpenTunnelItem{Header: h, Depth: depth, Hash: hash}, nil
}

// TurtleTunnelOkItem walks the request edges back to the source; TunnelID
// is rewritten by XOR with a per-hop random at each relay (§4.F).
type TurtleTunnelOkItem struct {
	Header   TurtleHeader
	TunnelID uint32
}

func (i *TurtleTunnelOkItem) ServiceType() uint16 { return ServiceTurtle }
func (i *TurtleTunnelOkItem) Subtype() uint8      { return SubTurtleTunnelOk }
func (i *TurtleTunnelOkItem) EncodeBody(w *wire.Writer) {
	i.Header.encode(w)
	w.U32(i.TunnelID)
}

func decodeTurtleTunnelOk(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	h, err := decodeTurtleHeader(body)
	if err != nil {
		return nil, err
	}
	tid, err := body.U32()
	if err != nil {
		return nil, err
	}
	return &TurtleTunnelOkItem{Header: h, TunnelID: tid}, nil
}

// TurtleGenericDataItem is forwarded blindly along a known tunnel; unknown
// tunnel_ids are dropped by the receiving service, not by the codec.
type TurtleGenericDataItem struct {
	TunnelID uint32
	Payload  []byte
}

func (i *TurtleGenericDataItem) ServiceType() uint16 { return ServiceTurtle }
func (i *TurtleGenericDataItem) Subtype() uint8      { return SubTurtleGenericData }
func (i *TurtleGenericDataItem) EncodeBody(w *wire.Writer) {
	w.U32(i.TunnelID)
	w.U32(uint32(len(i.Payload)))
	w.RawBytes(i.Payload)
}

func decodeTurtleGenericData(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	tid, err := body.U32()
	if err != nil {
		return nil, err
	}
	n, err := body.U32()
	if err != nil {
		return nil, err
	}
	payload, err := body.Bytes(int(n))
	if err != nil {
		return nil, err
	}
	return &TurtleGenericDataItem{TunnelID: tid, Payload: append([]byte(nil), payload...)}, nil
}

func init() {
	registerDefault(ServiceTurtle, SubTurtleOpenTunnel, Schema{Decode: decodeTurtleOpenTunnel})
	registerDefault(ServiceTurtle, SubTurtleTunnelOk, Schema{Decode: decodeTurtleTunnelOk})
	registerDefault(ServiceTurtle, SubTurtleGenericData, Schema{Decode: decodeTurtleGenericData})
}
