// Package services implements the on-peer service set of §4.F: keepalive,
// RTT, status, service-info negotiation, chat, turtle tunneling, bwctrl and
// discovery.
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
)

// HeartbeatInterval is the default liveness cadence (§4.F).
const HeartbeatInterval = 5 * time.Second

// HeartbeatService emits a periodic liveness token and does nothing with
// the ones it receives beyond noting the peer is alive.
type HeartbeatService struct {
	log      *logrus.Entry
	lastSeen time.Time
}

func NewHeartbeatService(log *logrus.Entry) *HeartbeatService {
	return &HeartbeatService{log: log}
}

func (h *HeartbeatService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "Heartbeat", ServiceNumber: uint32(items.ServiceHeartbeat), VersionMajor: 1, MinMajor: 1}
}

func (h *HeartbeatService) Start(ctx context.Context, out chan<- items.Item) {
	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- &items.HeartbeatItem{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func (h *HeartbeatService) HandleItem(item items.Item) peeractor.HandleOutcome {
	h.lastSeen = time.Now()
	return peeractor.HandleOutcome{}
}

// LastSeen reports the last time a heartbeat was received from the peer.
func (h *HeartbeatService) LastSeen() time.Time { return h.lastSeen }
