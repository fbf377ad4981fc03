package items

import "github.com/rs-go/retroshare-node/internal/wire"

// RTTPingItem carries a monotonic sequence number and the sender's local
// clock, used to measure round-trip time and clock skew (§4.F).
type RTTPingItem struct {
	Seq       uint32
	SendTimeUs int64
}

func (i *RTTPingItem) ServiceType() uint16 { return ServiceRTT }
func (i *RTTPingItem) Subtype() uint8      { return SubRTTPing }
func (i *RTTPingItem) EncodeBody(w *wire.Writer) {
	w.U32(i.Seq)
	w.I64(i.SendTimeUs)
}

// RTTPongItem echoes a ping, adding the responder's own local receive time
// so the requester can also estimate clock skew.
type RTTPongItem struct {
	Seq          uint32
	SendTimeUs   int64
	ReceiveTimeUs int64
}

func (i *RTTPongItem) ServiceType() uint16 { return ServiceRTT }
func (i *RTTPongItem) Subtype() uint8      { return SubRTTPong }
func (i *RTTPongItem) EncodeBody(w *wire.Writer) {
	w.U32(i.Seq)
	w.I64(i.SendTimeUs)
	w.I64(i.ReceiveTimeUs)
}

func decodeRTTPing(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	seq, err := body.U32()
	if err != nil {
		return nil, err
	}
	ts, err := body.I64()
	if err != nil {
		return nil, err
	}
	return &RTTPingItem{Seq: seq, SendTimeUs: ts}, nil
}

func decodeRTTPong(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	seq, err := body.U32()
	if err != nil {
		return nil, err
	}
	st, err := body.I64()
	if err != nil {
		return nil, err
	}
	rt, err := body.I64()
	if err != nil {
		return nil, err
	}
	return &RTTPongItem{Seq: seq, SendTimeUs: st, ReceiveTimeUs: rt}, nil
}

func init() {
	registerDefault(ServiceRTT, SubRTTPing, Schema{Decode: decodeRTTPing})
	registerDefault(ServiceRTT, SubRTTPong, Schema{Decode: decodeRTTPong})
}
