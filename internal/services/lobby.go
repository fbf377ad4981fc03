package services

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

// dedupLRUSize is the per-lobby bounce-dedup window (§4.F: "a 20-message
// LRU per lobby").
const dedupLRUSize = 20

// LobbyKeepAliveInterval and LobbyGCTimeout implement §4.F's lobby
// liveness contract: each subscribed participant emits a KeepAlive every
// 120s; a lobby is garbage-collected locally after 300s without events.
const (
	LobbyKeepAliveInterval = 120 * time.Second
	LobbyGCTimeout         = 300 * time.Second
)

// Signer verifies and produces the GxsId signature covering a bounced
// lobby message's (lobby_id, msg_id, nick, payload, send_time) tuple
// (§4.F). The GXS package supplies the concrete implementation; chat only
// depends on this narrow interface to avoid an import cycle.
type Signer interface {
	Sign(gxsID [16]byte, data []byte) ([]byte, error)
	Verify(gxsID [16]byte, data, sig []byte) bool
}

// Lobby holds one chat-lobby's membership and bounce-dedup state (§3, §4.F).
type Lobby struct {
	ID    uint64
	Name  string
	Topic string
	Flags items.ChatFlags

	mu       sync.Mutex
	members  map[ids.PeerID]chan<- items.Item
	seen     *lru.Cache[dedupKey, struct{}]
	lastEvent time.Time
}

type dedupKey struct {
	lobbyID uint64
	msgID   uint64
}

func newLobby(id uint64, name, topic string, flags items.ChatFlags) *Lobby {
	c, _ := lru.New[dedupKey, struct{}](dedupLRUSize)
	return &Lobby{
		ID:        id,
		Name:      name,
		Topic:     topic,
		Flags:     flags,
		members:   make(map[ids.PeerID]chan<- items.Item),
		seen:      c,
		lastEvent: time.Now(),
	}
}

// LobbyManager is the shared, cross-session state the per-peer ChatService
// instances delegate to: lobby membership and bounce dedup span every
// connected peer, not just one session (§4.F, §8 invariant 7).
type LobbyManager struct {
	log *logrus.Entry
	sgn Signer

	mu      sync.Mutex
	lobbies map[uint64]*Lobby
}

func NewLobbyManager(log *logrus.Entry, sgn Signer) *LobbyManager {
	return &LobbyManager{log: log, sgn: sgn, lobbies: make(map[uint64]*Lobby)}
}

// Join registers peer as a member of lobby id, creating the lobby if this
// is the first member (e.g. via an invite, §4.F).
func (m *LobbyManager) Join(id uint64, name, topic string, flags items.ChatFlags, peer ids.PeerID, out chan<- items.Item) {
	m.mu.Lock()
	l, ok := m.lobbies[id]
	if !ok {
		l = newLobby(id, name, topic, flags)
		m.lobbies[id] = l
	}
	m.mu.Unlock()

	l.mu.Lock()
	l.members[peer] = out
	l.lastEvent = time.Now()
	l.mu.Unlock()
}

// Leave removes peer from lobby id.
func (m *LobbyManager) Leave(id uint64, peer ids.PeerID) {
	m.mu.Lock()
	l, ok := m.lobbies[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	l.mu.Lock()
	delete(l.members, peer)
	l.mu.Unlock()
}

// Touch records lobby activity for GC purposes (join/leave/keepalive/bounce).
func (m *LobbyManager) Touch(id uint64) {
	m.mu.Lock()
	l := m.lobbies[id]
	m.mu.Unlock()
	if l == nil {
		return
	}
	l.mu.Lock()
	l.lastEvent = time.Now()
	l.mu.Unlock()
}

// Bounce delivers a lobby message received from sender to every other
// member, deduplicating by (lobby_id, msg_id) (§4.F, §8 invariant 7). It
// returns false without forwarding if the message was already seen, if the
// signature fails verification, or if the lobby is unknown.
func (m *LobbyManager) Bounce(sender ids.PeerID, bounce items.BouncingObject, raw func() []byte) bool {
	m.mu.Lock()
	l, ok := m.lobbies[bounce.LobbyID]
	m.mu.Unlock()
	if !ok {
		return false
	}

	if m.sgn != nil && !m.sgn.Verify(bounce.Sig.SignerGxsID, raw(), bounce.Sig.Signature) {
		m.log.WithField("lobby", bounce.LobbyID).Warn("lobby: signature verification failed, dropping bounce")
		return false
	}

	key := dedupKey{lobbyID: bounce.LobbyID, msgID: bounce.MsgID}
	l.mu.Lock()
	if _, seen := l.seen.Get(key); seen {
		l.mu.Unlock()
		return false
	}
	l.seen.Add(key, struct{}{})
	l.lastEvent = time.Now()
	recipients := make([]chan<- items.Item, 0, len(l.members))
	for peer, out := range l.members {
		if peer == sender {
			continue
		}
		recipients = append(recipients, out)
	}
	l.mu.Unlock()

	for _, out := range recipients {
		select {
		case out <- &items.ChatLobbyBounceItem{Bounce: bounce}:
		default:
			m.log.WithField("lobby", bounce.LobbyID).Warn("lobby: recipient channel full, dropping bounce for that peer")
		}
	}
	return true
}

// GCOnce removes lobbies that have seen no event for LobbyGCTimeout,
// returning the ids it collected.
func (m *LobbyManager) GCOnce(now time.Time) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dead []uint64
	for id, l := range m.lobbies {
		l.mu.Lock()
		stale := now.Sub(l.lastEvent) > LobbyGCTimeout
		l.mu.Unlock()
		if stale {
			dead = append(dead, id)
			delete(m.lobbies, id)
		}
	}
	return dead
}

func (m *LobbyManager) lobbyInfo(id uint64) (string, string, items.ChatFlags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[id]
	if !ok {
		return "", "", 0, fmt.Errorf("services: unknown lobby %d", id)
	}
	return l.Name, l.Topic, l.Flags, nil
}
