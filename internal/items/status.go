package items

import "github.com/rs-go/retroshare-node/internal/wire"

// Presence is the propagated status enum (§4.F).
type Presence uint8

const (
	PresenceOffline Presence = iota
	PresenceAway
	PresenceBusy
	PresenceOnline
	PresenceInactive
)

// StatusItem propagates the sender's presence.
type StatusItem struct {
	Status Presence
}

func (i *StatusItem) ServiceType() uint16       { return ServiceStatus }
func (i *StatusItem) Subtype() uint8            { return SubStatus }
func (i *StatusItem) EncodeBody(w *wire.Writer) { w.U8(uint8(i.Status)) }

func decodeStatus(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	v, err := body.U8()
	if err != nil {
		return nil, err
	}
	return &StatusItem{Status: Presence(v)}, nil
}

func init() {
	registerDefault(ServiceStatus, SubStatus, Schema{Decode: decodeStatus})
}
