package items

import "github.com/rs-go/retroshare-node/internal/wire"

// BwCtrlItem advertises the permitted inbound rate in kB/s (§4.F).
type BwCtrlItem struct {
	AllowedKbPerSec uint32
}

func (i *BwCtrlItem) ServiceType() uint16 { return ServiceBwCtrl }
func (i *BwCtrlItem) Subtype() uint8      { return SubBwCtrl }
func (i *BwCtrlItem) EncodeBody(w *wire.Writer) { w.U32(i.AllowedKbPerSec) }

func decodeBwCtrl(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	v, err := body.U32()
	if err != nil {
		return nil, err
	}
	return &BwCtrlItem{AllowedKbPerSec: v}, nil
}

func init() {
	registerDefault(ServiceBwCtrl, SubBwCtrl, Schema{Decode: decodeBwCtrl})
}
