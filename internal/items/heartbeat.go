package items

import "github.com/rs-go/retroshare-node/internal/wire"

// HeartbeatItem is the periodic liveness token (§4.F, default every 5s). It
// carries no payload; presence alone is the signal.
type HeartbeatItem struct{}

func (i *HeartbeatItem) ServiceType() uint16     { return ServiceHeartbeat }
func (i *HeartbeatItem) Subtype() uint8          { return SubHeartbeatPing }
func (i *HeartbeatItem) EncodeBody(w *wire.Writer) {}

func decodeHeartbeat(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	return &HeartbeatItem{}, nil
}

func init() {
	registerDefault(ServiceHeartbeat, SubHeartbeatPing, Schema{Decode: decodeHeartbeat})
}
