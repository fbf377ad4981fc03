// Package nxs implements the transactional sync protocol of §4.H that
// replicates GXS group/message content between peers: per-peer timestamp
// vectors, the periodic sync tick, and the transaction state machine.
package nxs

import (
	"sync"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

// TimestampVectors tracks what each peer has told us about their data and
// what we've changed locally, grounded on the original implementation's
// four-map design (§3 "Sync timestamp vectors").
type TimestampVectors struct {
	mu sync.RWMutex

	peersGroupUpdate   map[ids.PeerID]int64
	peersMessageUpdate map[ids.PeerID]map[ids.GxsGroupID]int64
	localGroupUpdates  map[ids.GxsGroupID]int64
	localLastUpdate    int64
}

func NewTimestampVectors() *TimestampVectors {
	return &TimestampVectors{
		peersGroupUpdate:   make(map[ids.PeerID]int64),
		peersMessageUpdate: make(map[ids.PeerID]map[ids.GxsGroupID]int64),
		localGroupUpdates:  make(map[ids.GxsGroupID]int64),
	}
}

func (t *TimestampVectors) UpdatePeerGroup(peer ids.PeerID, ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts > t.peersGroupUpdate[peer] {
		t.peersGroupUpdate[peer] = ts
	}
}

func (t *TimestampVectors) PeerGroup(peer ids.PeerID) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peersGroupUpdate[peer]
}

func (t *TimestampVectors) UpdatePeerMessage(peer ids.PeerID, group ids.GxsGroupID, ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	perGroup, ok := t.peersMessageUpdate[peer]
	if !ok {
		perGroup = make(map[ids.GxsGroupID]int64)
		t.peersMessageUpdate[peer] = perGroup
	}
	if ts > perGroup[group] {
		perGroup[group] = ts
	}
}

func (t *TimestampVectors) PeerMessage(peer ids.PeerID, group ids.GxsGroupID) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peersMessageUpdate[peer][group]
}

// UpdateLocalGroup records a local modification to group and bumps the
// monotone local_last_update (§8 invariant 5: "local_last_update ≥
// local_group_updates[id(g)]").
func (t *TimestampVectors) UpdateLocalGroup(group ids.GxsGroupID, ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts > t.localGroupUpdates[group] {
		t.localGroupUpdates[group] = ts
	}
	if ts > t.localLastUpdate {
		t.localLastUpdate = ts
	}
}

func (t *TimestampVectors) LocalGroup(group ids.GxsGroupID) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.localGroupUpdates[group]
}

func (t *TimestampVectors) LocalLastUpdate() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.localLastUpdate
}

// NeedsGroupSync reports whether local_last_update > peers_group_update[P]
// (§4.H sync tick trigger).
func (t *TimestampVectors) NeedsGroupSync(peer ids.PeerID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.localLastUpdate > t.peersGroupUpdate[peer]
}

// NeedsMessageSync reports whether local_group_updates[g] >
// peers_message_update[P][g].
func (t *TimestampVectors) NeedsMessageSync(peer ids.PeerID, group ids.GxsGroupID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.localGroupUpdates[group] > t.peersMessageUpdate[peer][group]
}
