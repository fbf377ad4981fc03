package services

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

// Turtle tunnel protocol constants (§4.F).
const (
	TurtleMaxDepth      = 6
	TurtleEdgeTTL       = 10 * time.Minute
	TurtleTunnelIdleTTL = 60 * time.Second
)

type turtleEdge struct {
	source    ids.PeerID
	createdAt time.Time
}

type turtleTunnel struct {
	peer       ids.PeerID
	lastActive time.Time
	hopSecret  uint32
}

// LocalHashStore reports whether the local node holds content matching a
// turtle search hash, so this node can terminate a tunnel search with
// TunnelOk (§4.F).
type LocalHashStore interface {
	Has(hash [20]byte) bool
}

// TurtleRouter is the cross-session state backing anonymous tunnels: the
// request_id → source-edge table and the tunnel_id → peer forwarding table
// both span every connected peer, so — like LobbyManager — they live
// outside any single peer's Service instance (§4.F).
type TurtleRouter struct {
	log   *logrus.Entry
	store LocalHashStore

	mu      sync.Mutex
	edges   map[uint32]turtleEdge
	tunnels map[uint32]turtleTunnel
	peerOut map[ids.PeerID]chan<- items.Item
}

func NewTurtleRouter(log *logrus.Entry, store LocalHashStore) *TurtleRouter {
	return &TurtleRouter{
		log:     log,
		store:   store,
		edges:   make(map[uint32]turtleEdge),
		tunnels: make(map[uint32]turtleTunnel),
		peerOut: make(map[ids.PeerID]chan<- items.Item),
	}
}

func (t *TurtleRouter) RegisterPeer(peer ids.PeerID, out chan<- items.Item) {
	t.mu.Lock()
	t.peerOut[peer] = out
	t.mu.Unlock()
}

func (t *TurtleRouter) UnregisterPeer(peer ids.PeerID) {
	t.mu.Lock()
	delete(t.peerOut, peer)
	t.mu.Unlock()
}

func randomU32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// HandleOpenTunnel floods a search request with decreasing depth, recording
// the source edge for TurtleEdgeTTL, and replies TunnelOk if the local
// store matches the requested hash (§4.F).
func (t *TurtleRouter) HandleOpenTunnel(from ids.PeerID, it *items.TurtleOpenTunnelItem) {
	t.mu.Lock()
	if _, exists := t.edges[it.Header.RequestID]; !exists {
		t.edges[it.Header.RequestID] = turtleEdge{source: from, createdAt: time.Now()}
	}
	out, haveOut := t.peerOut[from]
	t.mu.Unlock()

	if t.store != nil && t.store.Has(it.Hash) {
		tunnelID := randomU32()
		t.mu.Lock()
		t.tunnels[tunnelID] = turtleTunnel{peer: from, lastActive: time.Now(), hopSecret: randomU32()}
		t.mu.Unlock()
		if haveOut {
			select {
			case out <- &items.TurtleTunnelOkItem{Header: it.Header, TunnelID: tunnelID}:
			default:
			}
		}
		return
	}

	if it.Depth == 0 {
		return
	}
	flooded := *it
	flooded.Depth--
	t.mu.Lock()
	defer t.mu.Unlock()
	for peer, out := range t.peerOut {
		if peer == from {
			continue
		}
		select {
		case out <- &flooded:
		default:
			t.log.Warn("turtle: peer channel full, dropping OpenTunnel flood")
		}
	}
}

// HandleTunnelOk walks the request edge back toward the original searcher,
// XOR-rewriting the tunnel_id with a fresh per-hop random at this relay
// (§4.F).
func (t *TurtleRouter) HandleTunnelOk(from ids.PeerID, it *items.TurtleTunnelOkItem) {
	t.mu.Lock()
	edge, ok := t.edges[it.Header.RequestID]
	if !ok {
		t.mu.Unlock()
		return
	}
	hop := randomU32()
	rewritten := it.TunnelID ^ hop
	t.tunnels[rewritten] = turtleTunnel{peer: edge.source, lastActive: time.Now(), hopSecret: hop}
	out, haveOut := t.peerOut[edge.source]
	t.mu.Unlock()

	if haveOut {
		select {
		case out <- &items.TurtleTunnelOkItem{Header: it.Header, TunnelID: rewritten}:
		default:
		}
	}
}

// HandleGenericData forwards blindly along a known tunnel; unknown
// tunnel_ids are dropped (§4.F).
func (t *TurtleRouter) HandleGenericData(from ids.PeerID, it *items.TurtleGenericDataItem) {
	t.mu.Lock()
	tun, ok := t.tunnels[it.TunnelID]
	if !ok {
		t.mu.Unlock()
		return
	}
	tun.lastActive = time.Now()
	t.tunnels[it.TunnelID] = tun
	out, haveOut := t.peerOut[tun.peer]
	t.mu.Unlock()

	if haveOut {
		select {
		case out <- it:
		default:
		}
	}
}

// GCOnce drops edges older than TurtleEdgeTTL and tunnels idle longer than
// TurtleTunnelIdleTTL (§4.F).
func (t *TurtleRouter) GCOnce(now time.Time) (edges, tunnels int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.edges {
		if now.Sub(e.createdAt) > TurtleEdgeTTL {
			delete(t.edges, id)
			edges++
		}
	}
	for id, tun := range t.tunnels {
		if now.Sub(tun.lastActive) > TurtleTunnelIdleTTL {
			delete(t.tunnels, id)
			tunnels++
		}
	}
	return
}

// TurtleService is the per-peer front end dispatching into the shared
// TurtleRouter (§4.F).
type TurtleService struct {
	log    *logrus.Entry
	peer   ids.PeerID
	router *TurtleRouter
}

func NewTurtleService(log *logrus.Entry, peer ids.PeerID, router *TurtleRouter) *TurtleService {
	return &TurtleService{log: log, peer: peer, router: router}
}

func (t *TurtleService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "Turtle Router", ServiceNumber: uint32(items.ServiceTurtle), VersionMajor: 1, MinMajor: 1}
}

func (t *TurtleService) Start(ctx context.Context, out chan<- items.Item) {
	t.router.RegisterPeer(t.peer, out)
	go func() {
		<-ctx.Done()
		t.router.UnregisterPeer(t.peer)
	}()
}

func (t *TurtleService) HandleItem(item items.Item) peeractor.HandleOutcome {
	switch it := item.(type) {
	case *items.TurtleOpenTunnelItem:
		t.router.HandleOpenTunnel(t.peer, it)
	case *items.TurtleTunnelOkItem:
		t.router.HandleTunnelOk(t.peer, it)
	case *items.TurtleGenericDataItem:
		t.router.HandleGenericData(t.peer, it)
	}
	return peeractor.HandleOutcome{}
}
