package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
)

// ServiceInfoService exchanges the capability list once on connect and
// re-emits it on local change (§4.F). A service is "enabled with peer P"
// iff both sides advertise it and the version ranges overlap.
type ServiceInfoService struct {
	log   *logrus.Entry
	local []items.RsServiceInfo

	mu      sync.RWMutex
	remote  map[uint32]items.RsServiceInfo
	enabled map[uint32]bool
	onNegotiated func(enabled map[uint32]bool)
}

func NewServiceInfoService(log *logrus.Entry, local []items.RsServiceInfo, onNegotiated func(map[uint32]bool)) *ServiceInfoService {
	return &ServiceInfoService{
		log:          log,
		local:        local,
		remote:       make(map[uint32]items.RsServiceInfo),
		enabled:      make(map[uint32]bool),
		onNegotiated: onNegotiated,
	}
}

func (s *ServiceInfoService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "ServiceInfo", ServiceNumber: uint32(items.ServiceServiceInfo), VersionMajor: 1, MinMajor: 1}
}

// Start emits nothing here: the actor's boot step already sends the initial
// ServiceInfoListItem (§4.E "Boot"), built from the same local service list
// this service is constructed with.
func (s *ServiceInfoService) Start(ctx context.Context, out chan<- items.Item) {}

// Reemit re-sends the local capability list, used when a local service is
// added or its version changes after the initial handshake.
func (s *ServiceInfoService) Reemit(out chan<- items.Item) {
	select {
	case out <- &items.ServiceInfoListItem{Services: s.local}:
	default:
	}
}

func overlaps(aMin, aCur, bMin, bCur uint16) bool {
	return aCur >= bMin && bCur >= aMin
}

func (s *ServiceInfoService) HandleItem(item items.Item) peeractor.HandleOutcome {
	it, ok := item.(*items.ServiceInfoListItem)
	if !ok {
		return peeractor.HandleOutcome{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = make(map[uint32]items.RsServiceInfo, len(it.Services))
	for _, svc := range it.Services {
		s.remote[svc.ServiceNumber] = svc
	}
	newEnabled := make(map[uint32]bool)
	for _, l := range s.local {
		r, present := s.remote[l.ServiceNumber]
		if !present {
			continue
		}
		if overlaps(l.MinMajor, l.VersionMajor, r.MinMajor, r.VersionMajor) {
			newEnabled[l.ServiceNumber] = true
		}
	}
	s.enabled = newEnabled
	if s.onNegotiated != nil {
		s.onNegotiated(newEnabled)
	}
	return peeractor.HandleOutcome{}
}

// Enabled reports whether svcType is enabled with this peer.
func (s *ServiceInfoService) Enabled(svcType uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[svcType]
}
