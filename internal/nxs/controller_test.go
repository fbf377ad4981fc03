package nxs

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/gxs"
	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

func testWorker(t *testing.T) *gxs.Worker {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	store, err := gxs.Open(log, gxs.OpenStoreOptions{InMemory: true})
	if err != nil {
		t.Fatalf("gxs.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	w := gxs.NewWorker(log, store)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	return w
}

const testSvc = 0x0211

func TestHandleSyncGroupRepliesWithSummaryOfStoredGroups(t *testing.T) {
	worker := testWorker(t)
	ctx := context.Background()

	g, _, err := gxs.CreateGroup("chan-one", gxs.PolicyPublishKeySigned)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := worker.PutGroup(ctx, g, 500); err != nil {
		t.Fatalf("PutGroup: %v", err)
	}

	var peer ids.PeerID
	peer[0] = 1
	vectors := NewTimestampVectors()
	c := NewController(logrus.NewEntry(logrus.New()), peer, testSvc, vectors, worker, nil)
	out := make(chan items.Item, 4)
	c.out = out

	c.handleSyncGroup(&items.NxsSyncGroupItem{Svc: testSvc, SinceTS: 0})

	select {
	case it := <-out:
		list, ok := it.(*items.NxsGroupListItem)
		if !ok {
			t.Fatalf("expected NxsGroupListItem, got %T", it)
		}
		if len(list.Entries) != 1 || list.Entries[0].GroupID != g.GroupID {
			t.Fatalf("unexpected entries: %+v", list.Entries)
		}
	default:
		t.Fatal("expected a group-list reply")
	}
}

// TestFullGroupFetchTransactionCompletesAndUpdatesVectors wires a requester
// and a responder controller directly together (bypassing the wire codec)
// to exercise the sync-then-fetch transaction handshake end to end.
func TestFullGroupFetchTransactionCompletesAndUpdatesVectors(t *testing.T) {
	worker := testWorker(t)
	ctx := context.Background()

	g, _, err := gxs.CreateGroup("chan-two", gxs.PolicyPublishKeySigned)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := worker.PutGroup(ctx, g, 500); err != nil {
		t.Fatalf("PutGroup: %v", err)
	}

	var responderPeer, requesterPeer ids.PeerID
	responderPeer[0], requesterPeer[0] = 1, 2

	responderOut := make(chan items.Item, 8)
	requesterOut := make(chan items.Item, 8)

	responder := NewController(logrus.NewEntry(logrus.New()), requesterPeer, testSvc, NewTimestampVectors(), worker, nil)
	responder.out = responderOut

	requesterVectors := NewTimestampVectors()
	requester := NewController(logrus.NewEntry(logrus.New()), responderPeer, testSvc, requesterVectors, worker, nil)
	requester.out = requesterOut

	// Requester's sync tick equivalent: ask the responder to summarize.
	responder.handleSyncGroup(&items.NxsSyncGroupItem{Svc: testSvc, SinceTS: 0})
	summary := drainOne(t, responderOut)
	requester.HandleItem(summary)

	// Requester opened a fetch transaction: two items go out (Starting, then
	// the targeted fetch list), both must reach the responder in order.
	txStart := drainOne(t, requesterOut)
	responder.HandleItem(txStart)
	fetchReq := drainOne(t, requesterOut)
	responder.HandleItem(fetchReq)

	// Responder streams the group push followed by a Completed marker.
	push := drainOne(t, responderOut)
	requester.HandleItem(push)
	done := drainOne(t, responderOut)
	requester.HandleItem(done)

	if len(requester.active) != 0 {
		t.Fatalf("expected requester transaction to be cleared on completion, got %d active", len(requester.active))
	}
	if requesterVectors.PeerGroup(responderPeer) == 0 {
		t.Fatal("expected requester's peer-group vector to advance after a completed fetch")
	}
}

// TestFullGroupFetchTransactionWithMultipleItemsOnlyCompletesOnLastPush
// exercises a transaction carrying more than one item, the normal case,
// which a completion check keyed off the accepted-so-far count rather than
// the declared count would complete (and clear) after the first push.
func TestFullGroupFetchTransactionWithMultipleItemsOnlyCompletesOnLastPush(t *testing.T) {
	worker := testWorker(t)
	ctx := context.Background()

	g1, _, err := gxs.CreateGroup("chan-three", gxs.PolicyPublishKeySigned)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := worker.PutGroup(ctx, g1, 500); err != nil {
		t.Fatalf("PutGroup: %v", err)
	}
	g2, _, err := gxs.CreateGroup("chan-four", gxs.PolicyPublishKeySigned)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := worker.PutGroup(ctx, g2, 501); err != nil {
		t.Fatalf("PutGroup: %v", err)
	}

	var responderPeer, requesterPeer ids.PeerID
	responderPeer[0], requesterPeer[0] = 3, 4

	responderOut := make(chan items.Item, 8)
	requesterOut := make(chan items.Item, 8)

	responder := NewController(logrus.NewEntry(logrus.New()), requesterPeer, testSvc, NewTimestampVectors(), worker, nil)
	responder.out = responderOut

	requesterVectors := NewTimestampVectors()
	requester := NewController(logrus.NewEntry(logrus.New()), responderPeer, testSvc, requesterVectors, worker, nil)
	requester.out = requesterOut

	responder.handleSyncGroup(&items.NxsSyncGroupItem{Svc: testSvc, SinceTS: 0})
	summary := drainOne(t, responderOut)
	requester.HandleItem(summary)

	txStart := drainOne(t, requesterOut)
	responder.HandleItem(txStart)
	fetchReq := drainOne(t, requesterOut)
	responder.HandleItem(fetchReq)

	firstPush := drainOne(t, responderOut)
	requester.HandleItem(firstPush)
	if len(requester.active) != 1 {
		t.Fatalf("expected the transaction to remain active after only the first of two pushed items, got %d active", len(requester.active))
	}
	if requesterVectors.PeerGroup(responderPeer) != 0 {
		t.Fatal("expected the peer-group vector to stay put until the whole transaction completes")
	}

	secondPush := drainOne(t, responderOut)
	requester.HandleItem(secondPush)
	done := drainOne(t, responderOut)
	requester.HandleItem(done)

	if len(requester.active) != 0 {
		t.Fatalf("expected requester transaction to be cleared on completion, got %d active", len(requester.active))
	}
	if requesterVectors.PeerGroup(responderPeer) == 0 {
		t.Fatal("expected requester's peer-group vector to advance after both items completed the fetch")
	}
}

func drainOne(t *testing.T, ch chan items.Item) items.Item {
	t.Helper()
	select {
	case it := <-ch:
		return it
	case <-time.After(time.Second):
		t.Fatal("expected an item on the channel")
		return nil
	}
}
