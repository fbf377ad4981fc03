package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
)

// BwCtrlService advertises the locally permitted inbound rate and tracks
// the peer's advertisement (§4.F).
type BwCtrlService struct {
	log        *logrus.Entry
	allowedKbs uint32

	mu          sync.Mutex
	peerAllowed uint32
}

func NewBwCtrlService(log *logrus.Entry, allowedKbs uint32) *BwCtrlService {
	return &BwCtrlService{log: log, allowedKbs: allowedKbs}
}

func (b *BwCtrlService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "BwCtrl", ServiceNumber: uint32(items.ServiceBwCtrl), VersionMajor: 1, MinMajor: 1}
}

func (b *BwCtrlService) Start(ctx context.Context, out chan<- items.Item) {
	select {
	case out <- &items.BwCtrlItem{AllowedKbPerSec: b.allowedKbs}:
	case <-ctx.Done():
	}
}

func (b *BwCtrlService) HandleItem(item items.Item) peeractor.HandleOutcome {
	it, ok := item.(*items.BwCtrlItem)
	if !ok {
		return peeractor.HandleOutcome{}
	}
	b.mu.Lock()
	b.peerAllowed = it.AllowedKbPerSec
	b.mu.Unlock()
	return peeractor.HandleOutcome{}
}

func (b *BwCtrlService) PeerAllowedKbps() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peerAllowed
}
