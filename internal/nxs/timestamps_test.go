package nxs

import (
	"testing"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

func TestTimestampVectorsUpdatePeerGroupOnlyAdvances(t *testing.T) {
	v := NewTimestampVectors()
	var p ids.PeerID
	p[0] = 1

	v.UpdatePeerGroup(p, 10)
	v.UpdatePeerGroup(p, 5) // stale, must not regress
	if got := v.PeerGroup(p); got != 10 {
		t.Fatalf("expected peer group timestamp to stay 10, got %d", got)
	}
	v.UpdatePeerGroup(p, 20)
	if got := v.PeerGroup(p); got != 20 {
		t.Fatalf("expected peer group timestamp to advance to 20, got %d", got)
	}
}

func TestTimestampVectorsUpdatePeerMessagePerGroup(t *testing.T) {
	v := NewTimestampVectors()
	var p ids.PeerID
	p[0] = 1
	var g1, g2 ids.GxsGroupID
	g1[0], g2[0] = 1, 2

	v.UpdatePeerMessage(p, g1, 5)
	v.UpdatePeerMessage(p, g2, 7)
	if got := v.PeerMessage(p, g1); got != 5 {
		t.Fatalf("group 1 timestamp: want 5, got %d", got)
	}
	if got := v.PeerMessage(p, g2); got != 7 {
		t.Fatalf("group 2 timestamp: want 7, got %d", got)
	}
}

func TestUpdateLocalGroupBumpsLocalLastUpdate(t *testing.T) {
	v := NewTimestampVectors()
	var g ids.GxsGroupID
	g[0] = 9

	v.UpdateLocalGroup(g, 100)
	if v.LocalGroup(g) != 100 {
		t.Fatalf("expected local group timestamp 100, got %d", v.LocalGroup(g))
	}
	if v.LocalLastUpdate() < 100 {
		t.Fatalf("expected local_last_update >= local_group_updates[g], got %d", v.LocalLastUpdate())
	}

	v.UpdateLocalGroup(g, 50) // stale write must not regress either map
	if v.LocalGroup(g) != 100 {
		t.Fatalf("expected local group timestamp to stay 100, got %d", v.LocalGroup(g))
	}
	if v.LocalLastUpdate() != 100 {
		t.Fatalf("expected local_last_update to stay 100, got %d", v.LocalLastUpdate())
	}
}

func TestNeedsGroupSyncReflectsLocalVsPeerVector(t *testing.T) {
	v := NewTimestampVectors()
	var p ids.PeerID
	p[0] = 1
	var g ids.GxsGroupID
	g[0] = 1

	if v.NeedsGroupSync(p) {
		t.Fatal("expected no sync needed with no local updates yet")
	}
	v.UpdateLocalGroup(g, 10)
	if !v.NeedsGroupSync(p) {
		t.Fatal("expected sync needed once local_last_update exceeds peer's group vector")
	}
	v.UpdatePeerGroup(p, 10)
	if v.NeedsGroupSync(p) {
		t.Fatal("expected no sync needed once peer vector caught up")
	}
}

func TestNeedsMessageSyncReflectsPerGroupVector(t *testing.T) {
	v := NewTimestampVectors()
	var p ids.PeerID
	p[0] = 1
	var g ids.GxsGroupID
	g[0] = 1

	v.UpdateLocalGroup(g, 5)
	if !v.NeedsMessageSync(p, g) {
		t.Fatal("expected message sync needed once local group has an update the peer hasn't seen")
	}
	v.UpdatePeerMessage(p, g, 5)
	if v.NeedsMessageSync(p, g) {
		t.Fatal("expected no message sync needed once peer's message vector caught up")
	}
}
