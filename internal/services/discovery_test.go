package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

type fakeDirectory struct {
	records map[ids.PeerID]ids.PeerRecord
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{records: make(map[ids.PeerID]ids.PeerRecord)}
}

func (f *fakeDirectory) All() []ids.PeerRecord {
	out := make([]ids.PeerRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out
}

func (f *fakeDirectory) Merge(rec ids.PeerRecord) bool {
	cur, ok := f.records[rec.PeerID]
	if ok && cur.LastSeen >= rec.LastSeen {
		return false
	}
	f.records[rec.PeerID] = rec
	return true
}

func TestDiscoveryServiceReemitsKnownRecordsOnStart(t *testing.T) {
	dir := newFakeDirectory()
	dir.records[peerN(9)] = ids.PeerRecord{PeerID: peerN(9), DisplayName: "friend", LastSeen: 100}

	svc := NewDiscoveryService(testLog(), dir)
	out := make(chan items.Item, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx, out)

	select {
	case it := <-out:
		rec := it.(*items.DiscoveryPeerRecordItem)
		if rec.DisplayName != "friend" {
			t.Fatalf("unexpected display name %q", rec.DisplayName)
		}
	default:
		t.Fatal("expected known record gossiped immediately on Start")
	}
}

func TestDiscoveryServiceHandleItemMergesNewerRecord(t *testing.T) {
	dir := newFakeDirectory()
	peer := peerN(3)
	dir.records[peer] = ids.PeerRecord{PeerID: peer, DisplayName: "old", LastSeen: 10}

	svc := NewDiscoveryService(testLog(), dir)
	incoming := &items.DiscoveryPeerRecordItem{
		PeerID:      [16]byte(peer),
		DisplayName: "new",
		LastSeen:    20,
	}
	svc.HandleItem(incoming)

	if got := dir.records[peer].DisplayName; got != "new" {
		t.Fatalf("expected record updated to %q, got %q", "new", got)
	}
}

func TestDiscoveryServiceHandleItemIgnoresStaleRecord(t *testing.T) {
	dir := newFakeDirectory()
	peer := peerN(4)
	dir.records[peer] = ids.PeerRecord{PeerID: peer, DisplayName: "current", LastSeen: 50}

	svc := NewDiscoveryService(testLog(), dir)
	stale := &items.DiscoveryPeerRecordItem{
		PeerID:      [16]byte(peer),
		DisplayName: "outdated",
		LastSeen:    5,
	}
	svc.HandleItem(stale)

	if got := dir.records[peer].DisplayName; got != "current" {
		t.Fatalf("expected record to stay %q, got %q", "current", got)
	}
}

func TestDiscoveryServiceIgnoresUnrelatedItems(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewDiscoveryService(testLog(), dir)
	outcome := svc.HandleItem(&items.HeartbeatItem{})
	if outcome.Err != nil {
		t.Fatalf("unexpected error handling unrelated item: %v", outcome.Err)
	}
	if len(dir.records) != 0 {
		t.Fatal("expected no records merged for an unrelated item")
	}
}

func TestRecordToItemAndBackRoundTripsAddresses(t *testing.T) {
	addr, err := ids.ParsePeerAddr("/ip4/127.0.0.1/tcp/7812", false)
	if err != nil {
		t.Fatalf("ParsePeerAddr: %v", err)
	}
	rec := ids.PeerRecord{
		PeerID:         peerN(1),
		DisplayName:    "alice",
		LocalAddresses: []ids.PeerAddr{addr},
		LastSeen:       time.Now().Unix(),
	}
	it := recordToItem(rec)
	back := itemToRecord(it)
	if len(back.LocalAddresses) != 1 || back.LocalAddresses[0].String() != addr.String() {
		t.Fatalf("address did not round trip: %+v", back.LocalAddresses)
	}
	if back.DisplayName != rec.DisplayName {
		t.Fatalf("display name did not round trip: %q", back.DisplayName)
	}
}
