package rscore

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/gxs"
	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/nxs"
	"github.com/rs-go/retroshare-node/internal/peeractor"
	"github.com/rs-go/retroshare-node/internal/services"
	"github.com/rs-go/retroshare-node/internal/transport"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

// defaultAllowedKbPerSec is the default bandwidth advertisement if config
// leaves it unset.
const defaultAllowedKbPerSec = 1024

// PeerHandle is everything the controller tracks for one active session.
type PeerHandle struct {
	PeerID  ids.PeerID
	Session *transport.Session
	Actor   *peeractor.Actor
	Mailbox *peeractor.Mailbox
	Cancel  context.CancelFunc

	ServiceInfo *services.ServiceInfoService
	Status      *services.StatusService
	Heartbeat   *services.HeartbeatService
}

// Controller is the process-wide core: local identity, peer registry, and
// the cross-session collaborators every peer actor's service set shares
// (turtle router, peer directory, lobby manager, GXS store and worker).
type Controller struct {
	log      *logrus.Entry
	self     ids.PeerID
	identity transport.Identity
	backoff  transport.DialBackoff
	reg      *items.Registry

	mu    sync.RWMutex
	peers map[ids.PeerID]*PeerHandle

	dir          *MemPeerDirectory
	hashes       *MemHashStore
	turtleRouter *services.TurtleRouter
	lobbies      *services.LobbyManager

	gxsStore  *gxs.Store
	gxsWorker *gxs.Worker
	gxsKeys   gxs.KeyResolver
	gxsSigner *gxs.Signer
	vectors   *nxs.TimestampVectors

	allowedKbPerSec uint32

	onChatMessage func(ids.PeerID, *items.ChatMessageItem)
}

// Options configures a new Controller.
type Options struct {
	Log             *logrus.Entry
	Self            ids.PeerID
	Identity        transport.Identity
	GxsStore        *gxs.Store
	GxsKeys         gxs.KeyResolver
	AllowedKbPerSec uint32
	OnChatMessage   func(ids.PeerID, *items.ChatMessageItem)
}

// New constructs a Controller ready to accept or dial sessions. The
// returned Controller owns a background gxs.Worker goroutine once Start
// is called.
func New(opt Options) *Controller {
	if opt.AllowedKbPerSec == 0 {
		opt.AllowedKbPerSec = defaultAllowedKbPerSec
	}
	keys := opt.GxsKeys
	if keys == nil {
		keys = gxs.NewMemKeyResolver()
	}
	c := &Controller{
		log:             opt.Log,
		self:            opt.Self,
		identity:        opt.Identity,
		backoff:         transport.DefaultBackoff(),
		reg:             items.NewRegistryWithDefaults(),
		peers:           make(map[ids.PeerID]*PeerHandle),
		dir:             NewMemPeerDirectory(),
		hashes:          NewMemHashStore(),
		gxsStore:        opt.GxsStore,
		gxsKeys:         keys,
		gxsSigner:       gxs.NewSigner(keys),
		vectors:         nxs.NewTimestampVectors(),
		allowedKbPerSec: opt.AllowedKbPerSec,
		onChatMessage:   opt.OnChatMessage,
	}
	c.turtleRouter = services.NewTurtleRouter(c.log, c.hashes)
	c.lobbies = services.NewLobbyManager(c.log, c.gxsSigner)
	if c.gxsStore != nil {
		c.gxsWorker = gxs.NewWorker(c.log, c.gxsStore)
	}
	return c
}

// Start launches the gxs worker loop. It returns immediately; shutdown is
// driven by ctx cancellation.
func (c *Controller) Start(ctx context.Context) {
	if c.gxsWorker != nil {
		go c.gxsWorker.Run(ctx)
	}
}

// Directory exposes the shared peer directory, e.g. for seeding bootstrap
// peers read from config.
func (c *Controller) Directory() *MemPeerDirectory { return c.dir }

// LocalServices is the capability list advertised on every new session's
// boot ServiceInfoListItem.
func (c *Controller) LocalServices() []items.RsServiceInfo {
	list := []items.RsServiceInfo{
		{Name: "ServiceInfo", ServiceNumber: uint32(items.ServiceServiceInfo), VersionMajor: 1, MinMajor: 1},
		{Name: "Heartbeat", ServiceNumber: uint32(items.ServiceHeartbeat), VersionMajor: 1, MinMajor: 1},
		{Name: "RTT", ServiceNumber: uint32(items.ServiceRTT), VersionMajor: 1, MinMajor: 1},
		{Name: "BwCtrl", ServiceNumber: uint32(items.ServiceBwCtrl), VersionMajor: 1, MinMajor: 1},
		{Name: "Status", ServiceNumber: uint32(items.ServiceStatus), VersionMajor: 1, MinMajor: 1},
		{Name: "Chat", ServiceNumber: uint32(items.ServiceChat), VersionMajor: 1, MinMajor: 1},
		{Name: "Turtle", ServiceNumber: uint32(items.ServiceTurtle), VersionMajor: 1, MinMajor: 1},
		{Name: "Discovery", ServiceNumber: uint32(items.ServiceDiscovery), VersionMajor: 1, MinMajor: 1},
	}
	if c.gxsWorker != nil {
		list = append(list, items.RsServiceInfo{Name: "NXS-GxsId", ServiceNumber: uint32(items.ServiceGxsID), VersionMajor: 1, MinMajor: 1})
	}
	return list
}

// DialPeer establishes an outbound session to peer over addrs and attaches
// it to the controller.
func (c *Controller) DialPeer(ctx context.Context, peer ids.PeerID, addrs []string, expectedCert *x509.Certificate) error {
	conn, err := transport.Dial(addrs, c.identity, expectedCert, c.backoff, c.log)
	if err != nil {
		return fmt.Errorf("rscore: dial %s: %w", peer, err)
	}
	c.AttachPeer(ctx, peer, conn)
	return nil
}

// AttachPeer wraps an already-authenticated conn (inbound or outbound) in
// a transport.Session and drives its peeractor.Actor to completion in a
// new goroutine. It installs the full service set described by §4.F, with
// cross-session state (turtle router, lobbies, directory, GXS worker)
// shared across every PeerHandle.
func (c *Controller) AttachPeer(ctx context.Context, peer ids.PeerID, conn net.Conn) *PeerHandle {
	log := c.log.WithField("peer", peer.String())
	session := transport.NewSession(peer, conn, log)
	mailbox := peeractor.NewMailbox()
	actor := peeractor.New(session, mailbox, log)

	handle := &PeerHandle{PeerID: peer, Session: session, Actor: actor, Mailbox: mailbox}

	handle.Heartbeat = services.NewHeartbeatService(log)
	rtt := services.NewRTTService(log)
	bw := services.NewBwCtrlService(log, c.allowedKbPerSec)
	handle.Status = services.NewStatusService(log, items.PresenceOnline, nil)
	chat := services.NewChatService(log, peer, c.lobbies, c.onChatMessage)
	turtle := services.NewTurtleService(log, peer, c.turtleRouter)
	discovery := services.NewDiscoveryService(log, c.dir)
	handle.ServiceInfo = services.NewServiceInfoService(log, c.LocalServices(), nil)

	actor.RegisterService(items.ServiceHeartbeat, handle.Heartbeat)
	actor.RegisterService(items.ServiceRTT, rtt)
	actor.RegisterService(items.ServiceBwCtrl, bw)
	actor.RegisterService(items.ServiceStatus, handle.Status)
	actor.RegisterService(items.ServiceChat, chat)
	actor.RegisterService(items.ServiceTurtle, turtle)
	actor.RegisterService(items.ServiceDiscovery, discovery)
	actor.RegisterService(items.ServiceServiceInfo, handle.ServiceInfo)

	if c.gxsWorker != nil {
		nxsCtrl := nxs.NewController(log, peer, items.ServiceGxsID, c.vectors, c.gxsWorker, c.gxsKeys)
		actor.RegisterService(items.ServiceGxsID, nxsCtrl)
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle.Cancel = cancel

	c.mu.Lock()
	if old, exists := c.peers[peer]; exists {
		old.Cancel()
	}
	c.peers[peer] = handle
	c.mu.Unlock()

	go func() {
		actor.Run(runCtx, c.reg, c.LocalServices())
		c.mu.Lock()
		if c.peers[peer] == handle {
			delete(c.peers, peer)
		}
		c.mu.Unlock()
		log.Info("rscore: session closed")
	}()

	return handle
}

// Peer returns the active handle for peer, if any.
func (c *Controller) Peer(peer ids.PeerID) (*PeerHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.peers[peer]
	return h, ok
}

// Peers lists the currently attached peer ids.
func (c *Controller) Peers() []ids.PeerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ids.PeerID, 0, len(c.peers))
	for id := range c.peers {
		out = append(out, id)
	}
	return out
}

// Disconnect terminates the session with peer, if attached.
func (c *Controller) Disconnect(peer ids.PeerID) {
	c.mu.RLock()
	h, ok := c.peers[peer]
	c.mu.RUnlock()
	if ok {
		h.Cancel()
		_ = h.Session.Close() // unblocks an actor stuck in a stream write
	}
}
