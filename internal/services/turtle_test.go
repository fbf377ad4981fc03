package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

type fakeHashStore struct {
	has [20]byte
}

func (f fakeHashStore) Has(hash [20]byte) bool { return hash == f.has }

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func peerN(n byte) ids.PeerID {
	var p ids.PeerID
	p[0] = n
	return p
}

func TestTurtleRouterFloodsOpenTunnelToOtherPeers(t *testing.T) {
	router := NewTurtleRouter(testLog(), fakeHashStore{})
	a, b, c := peerN(1), peerN(2), peerN(3)
	outB := make(chan items.Item, 1)
	outC := make(chan items.Item, 1)
	router.RegisterPeer(b, outB)
	router.RegisterPeer(c, outC)

	req := &items.TurtleOpenTunnelItem{Header: items.TurtleHeader{RequestID: 7}, Depth: 3, Hash: [20]byte{1}}
	router.HandleOpenTunnel(a, req)

	select {
	case fwd := <-outB:
		it := fwd.(*items.TurtleOpenTunnelItem)
		if it.Depth != 2 {
			t.Fatalf("expected depth decremented to 2, got %d", it.Depth)
		}
	default:
		t.Fatal("expected flood to peer b")
	}
	select {
	case <-outC:
	default:
		t.Fatal("expected flood to peer c")
	}
}

func TestTurtleRouterRepliesTunnelOkWhenHashMatches(t *testing.T) {
	hash := [20]byte{9, 9}
	router := NewTurtleRouter(testLog(), fakeHashStore{has: hash})
	a, b := peerN(1), peerN(2)
	outA := make(chan items.Item, 1)
	router.RegisterPeer(a, outA)
	router.RegisterPeer(b, make(chan items.Item, 1))

	req := &items.TurtleOpenTunnelItem{Header: items.TurtleHeader{RequestID: 42}, Depth: 5, Hash: hash}
	router.HandleOpenTunnel(a, req)

	select {
	case reply := <-outA:
		ok := reply.(*items.TurtleTunnelOkItem)
		if ok.Header.RequestID != 42 {
			t.Fatalf("expected request id echoed, got %d", ok.Header.RequestID)
		}
	default:
		t.Fatal("expected TunnelOk reply to the requesting peer")
	}
}

func TestTurtleRouterOpenTunnelStopsAtZeroDepth(t *testing.T) {
	router := NewTurtleRouter(testLog(), fakeHashStore{})
	a, b := peerN(1), peerN(2)
	outB := make(chan items.Item, 1)
	router.RegisterPeer(b, outB)

	req := &items.TurtleOpenTunnelItem{Header: items.TurtleHeader{RequestID: 1}, Depth: 0, Hash: [20]byte{1}}
	router.HandleOpenTunnel(a, req)

	select {
	case <-outB:
		t.Fatal("did not expect flood past zero depth")
	default:
	}
}

func TestTurtleRouterTunnelOkRewritesIDWalkingBackToSource(t *testing.T) {
	router := NewTurtleRouter(testLog(), fakeHashStore{})
	a, b := peerN(1), peerN(2)
	outA := make(chan items.Item, 1)
	router.RegisterPeer(a, outA)

	// the request arrived at this router from a, so the edge table
	// attributes request 99 to source a.
	router.HandleOpenTunnel(a, &items.TurtleOpenTunnelItem{Header: items.TurtleHeader{RequestID: 99}, Depth: 3, Hash: [20]byte{1}})

	ok := &items.TurtleTunnelOkItem{Header: items.TurtleHeader{RequestID: 99}, TunnelID: 0xABCD}
	router.HandleTunnelOk(b, ok)

	select {
	case fwd := <-outA:
		rewritten := fwd.(*items.TurtleTunnelOkItem)
		if rewritten.TunnelID == ok.TunnelID {
			t.Fatal("expected tunnel id to be XOR-rewritten at this hop")
		}
	default:
		t.Fatal("expected TunnelOk forwarded back toward source a")
	}
}

func TestTurtleRouterGenericDataForwardsAlongKnownTunnel(t *testing.T) {
	hash := [20]byte{5}
	router := NewTurtleRouter(testLog(), fakeHashStore{has: hash})
	a, b := peerN(1), peerN(2)
	outA := make(chan items.Item, 1)
	router.RegisterPeer(a, outA)
	router.RegisterPeer(b, make(chan items.Item, 1))

	router.HandleOpenTunnel(a, &items.TurtleOpenTunnelItem{Header: items.TurtleHeader{RequestID: 1}, Depth: 3, Hash: hash})
	reply := (<-outA).(*items.TurtleTunnelOkItem)

	data := &items.TurtleGenericDataItem{TunnelID: reply.TunnelID, Payload: []byte("hello")}
	router.HandleGenericData(a, data)

	select {
	case fwd := <-outA:
		got := fwd.(*items.TurtleGenericDataItem)
		if string(got.Payload) != "hello" {
			t.Fatalf("unexpected payload %q", got.Payload)
		}
	default:
		t.Fatal("expected data forwarded along the tunnel back to a")
	}
}

func TestTurtleRouterGenericDataDropsUnknownTunnel(t *testing.T) {
	router := NewTurtleRouter(testLog(), fakeHashStore{})
	a := peerN(1)
	outA := make(chan items.Item, 1)
	router.RegisterPeer(a, outA)

	router.HandleGenericData(a, &items.TurtleGenericDataItem{TunnelID: 0xDEAD, Payload: []byte("x")})

	select {
	case <-outA:
		t.Fatal("did not expect forward for an unknown tunnel id")
	default:
	}
}

func TestTurtleRouterGCDropsExpiredEdgesAndTunnels(t *testing.T) {
	router := NewTurtleRouter(testLog(), fakeHashStore{})
	a := peerN(1)
	router.RegisterPeer(a, make(chan items.Item, 1))
	router.HandleOpenTunnel(a, &items.TurtleOpenTunnelItem{Header: items.TurtleHeader{RequestID: 1}, Depth: 1, Hash: [20]byte{1}})

	future := time.Now().Add(TurtleEdgeTTL + time.Minute)
	edges, tunnels := router.GCOnce(future)
	if edges == 0 {
		t.Error("expected stale edge to be garbage collected")
	}
	_ = tunnels
}

func TestTurtleServiceUnregistersOnContextDone(t *testing.T) {
	router := NewTurtleRouter(testLog(), fakeHashStore{})
	peer := peerN(1)
	svc := NewTurtleService(testLog(), peer, router)
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan items.Item, 1)
	svc.Start(ctx, out)
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		router.mu.Lock()
		_, ok := router.peerOut[peer]
		router.mu.Unlock()
		if !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected peer to be unregistered after context cancellation")
}
