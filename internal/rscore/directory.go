package rscore

import (
	"sync"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

// MemPeerDirectory is the process-wide known-peer store shared by every
// DiscoveryService instance (services.PeerDirectory).
type MemPeerDirectory struct {
	mu      sync.RWMutex
	records map[ids.PeerID]ids.PeerRecord
}

func NewMemPeerDirectory() *MemPeerDirectory {
	return &MemPeerDirectory{records: make(map[ids.PeerID]ids.PeerRecord)}
}

func (d *MemPeerDirectory) All() []ids.PeerRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ids.PeerRecord, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	return out
}

// Merge folds rec into the directory, replacing any existing record for
// the same peer only if rec is newer (LastSeen strictly greater).
func (d *MemPeerDirectory) Merge(rec ids.PeerRecord) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.records[rec.PeerID]
	if ok && cur.LastSeen >= rec.LastSeen {
		return false
	}
	d.records[rec.PeerID] = rec
	return true
}

// Put inserts or overwrites rec unconditionally, used when the controller
// itself learns of a peer (e.g. from config's bootstrap list).
func (d *MemPeerDirectory) Put(rec ids.PeerRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[rec.PeerID] = rec
}

// MemHashStore is a minimal LocalHashStore (services.LocalHashStore):
// the set of content hashes this node can serve over a turtle tunnel.
type MemHashStore struct {
	mu     sync.RWMutex
	hashes map[[20]byte]struct{}
}

func NewMemHashStore() *MemHashStore {
	return &MemHashStore{hashes: make(map[[20]byte]struct{})}
}

func (s *MemHashStore) Has(hash [20]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[hash]
	return ok
}

func (s *MemHashStore) Add(hash [20]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[hash] = struct{}{}
}

func (s *MemHashStore) Remove(hash [20]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, hash)
}
