package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
)

// StatusService propagates presence to the peer and tracks theirs (§4.F).
type StatusService struct {
	log *logrus.Entry

	mu      sync.Mutex
	own     items.Presence
	peer    items.Presence
	onChange func(items.Presence)
}

func NewStatusService(log *logrus.Entry, initial items.Presence, onChange func(items.Presence)) *StatusService {
	return &StatusService{log: log, own: initial, onChange: onChange}
}

func (s *StatusService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "Status", ServiceNumber: uint32(items.ServiceStatus), VersionMajor: 1, MinMajor: 1}
}

func (s *StatusService) Start(ctx context.Context, out chan<- items.Item) {
	s.mu.Lock()
	cur := s.own
	s.mu.Unlock()
	select {
	case out <- &items.StatusItem{Status: cur}:
	case <-ctx.Done():
	}
}

// SetOwnStatus updates the locally advertised presence and emits it if a
// channel is supplied, matching the re-emit-on-change contract shared with
// the service-info negotiation (§4.F).
func (s *StatusService) SetOwnStatus(p items.Presence, out chan<- items.Item) {
	s.mu.Lock()
	s.own = p
	s.mu.Unlock()
	select {
	case out <- &items.StatusItem{Status: p}:
	default:
	}
}

func (s *StatusService) HandleItem(item items.Item) peeractor.HandleOutcome {
	it, ok := item.(*items.StatusItem)
	if !ok {
		return peeractor.HandleOutcome{}
	}
	s.mu.Lock()
	s.peer = it.Status
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(it.Status)
	}
	return peeractor.HandleOutcome{}
}

// PeerStatus returns the peer's last reported presence.
func (s *StatusService) PeerStatus() items.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}
