package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

// DiscoveryReemitInterval controls how often known peer records are
// re-gossiped to a connected peer (§4.F).
const DiscoveryReemitInterval = 10 * time.Minute

// PeerDirectory is the process-wide peer record store; discovery both
// reads from it (to gossip what this node knows) and writes to it (records
// learned from peers), so it is shared across every peer session rather
// than owned by one DiscoveryService.
type PeerDirectory interface {
	All() []ids.PeerRecord
	Merge(rec ids.PeerRecord) (changed bool)
}

// DiscoveryService gossips known peer records to one connected peer and
// folds records it receives back into the shared PeerDirectory (§4.F).
type DiscoveryService struct {
	log *logrus.Entry
	dir PeerDirectory

	mu      sync.Mutex
	learned int
}

func NewDiscoveryService(log *logrus.Entry, dir PeerDirectory) *DiscoveryService {
	return &DiscoveryService{log: log, dir: dir}
}

func (d *DiscoveryService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "Discovery", ServiceNumber: uint32(items.ServiceDiscovery), VersionMajor: 1, MinMajor: 1}
}

func (d *DiscoveryService) Start(ctx context.Context, out chan<- items.Item) {
	d.reemit(ctx, out)
	go func() {
		ticker := time.NewTicker(DiscoveryReemitInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.reemit(ctx, out)
			}
		}
	}()
}

func (d *DiscoveryService) reemit(ctx context.Context, out chan<- items.Item) {
	for _, rec := range d.dir.All() {
		it := recordToItem(rec)
		select {
		case out <- it:
		case <-ctx.Done():
			return
		default:
			d.log.Warn("discovery: outbound channel full, dropping gossip item")
		}
	}
}

func (d *DiscoveryService) HandleItem(item items.Item) peeractor.HandleOutcome {
	it, ok := item.(*items.DiscoveryPeerRecordItem)
	if !ok {
		return peeractor.HandleOutcome{}
	}
	rec := itemToRecord(it)
	if d.dir.Merge(rec) {
		d.mu.Lock()
		d.learned++
		d.mu.Unlock()
	}
	return peeractor.HandleOutcome{}
}

func recordToItem(rec ids.PeerRecord) *items.DiscoveryPeerRecordItem {
	local := make([]string, len(rec.LocalAddresses))
	for i, a := range rec.LocalAddresses {
		local[i] = a.Multiaddr.String()
	}
	ext := make([]string, len(rec.ExternalAddresses))
	for i, a := range rec.ExternalAddresses {
		ext[i] = a.Multiaddr.String()
	}
	return &items.DiscoveryPeerRecordItem{
		PeerID:            rec.PeerID,
		PgpID:             rec.PgpID,
		DisplayName:       rec.DisplayName,
		LocalAddresses:    local,
		ExternalAddresses: ext,
		HiddenNode:        rec.HiddenNode,
		LastSeen:          rec.LastSeen,
	}
}

func itemToRecord(it *items.DiscoveryPeerRecordItem) ids.PeerRecord {
	parseAll := func(addrs []string) []ids.PeerAddr {
		out := make([]ids.PeerAddr, 0, len(addrs))
		for _, s := range addrs {
			a, err := ids.ParsePeerAddr(s, it.HiddenNode)
			if err != nil {
				continue
			}
			out = append(out, a)
		}
		return out
	}
	return ids.PeerRecord{
		PeerID:            ids.PeerID(it.PeerID),
		PgpID:             ids.PgpID(it.PgpID),
		DisplayName:       it.DisplayName,
		LocalAddresses:    parseAll(it.LocalAddresses),
		ExternalAddresses: parseAll(it.ExternalAddresses),
		HiddenNode:        it.HiddenNode,
		LastSeen:          it.LastSeen,
	}
}
