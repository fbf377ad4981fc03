package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/peeractor"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

// ChatService is the per-peer half of the chat protocol (§4.F): direct
// messages, status, avatar, and lobby participation. Lobby membership and
// bounce dedup are cross-session, so they live in the shared LobbyManager
// this service delegates to.
type ChatService struct {
	log    *logrus.Entry
	peer   ids.PeerID
	lobbies *LobbyManager
	out    chan<- items.Item

	onMessage func(ids.PeerID, *items.ChatMessageItem)
}

func NewChatService(log *logrus.Entry, peer ids.PeerID, lobbies *LobbyManager, onMessage func(ids.PeerID, *items.ChatMessageItem)) *ChatService {
	return &ChatService{log: log, peer: peer, lobbies: lobbies, onMessage: onMessage}
}

func (c *ChatService) Info() items.RsServiceInfo {
	return items.RsServiceInfo{Name: "Chat", ServiceNumber: uint32(items.ServiceChat), VersionMajor: 1, MinMajor: 1}
}

// Start only records the outbound channel; per-lobby keep-alive timers are
// started individually by JoinLobby once a lobby is actually joined.
func (c *ChatService) Start(ctx context.Context, out chan<- items.Item) {
	c.out = out
}

// JoinLobby registers this peer as a lobby member and starts its
// keep-alive emission (§4.F: "each subscribed participant emits a
// KeepAlive event every 120 s").
func (c *ChatService) JoinLobby(ctx context.Context, id uint64, name, topic string, flags items.ChatFlags, nick string) {
	c.lobbies.Join(id, name, topic, flags, c.peer, c.out)
	go func() {
		ticker := time.NewTicker(LobbyKeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.lobbies.Leave(id, c.peer)
				return
			case <-ticker.C:
				c.lobbies.Touch(id)
				select {
				case c.out <- &items.ChatLobbyEventItem{LobbyID: id, Event: items.LobbyEventKeepAlive, Nick: nick}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func (c *ChatService) HandleItem(item items.Item) peeractor.HandleOutcome {
	switch it := item.(type) {
	case *items.ChatMessageItem:
		if c.onMessage != nil {
			c.onMessage(c.peer, it)
		}
	case *items.ChatStatusItem, *items.ChatAvatarItem:
		// Delivered to the UI/collaborator layer (out of scope, §1); the
		// core simply accepts and forwards nothing further.
	case *items.ChatLobbyBounceItem:
		raw := func() []byte {
			w := bounceSignedBytes(it.Bounce)
			return w
		}
		c.lobbies.Bounce(c.peer, it.Bounce, raw)
	case *items.ChatLobbyEventItem:
		c.lobbies.Touch(it.LobbyID)
	case *items.ChatLobbyInviteItem:
		c.lobbies.Join(it.LobbyID, it.Name, it.Topic, it.Flags, c.peer, c.out)
	}
	return peeractor.HandleOutcome{}
}

// bounceSignedBytes reconstructs the exact byte tuple the sender signed:
// (lobby_id, msg_id, nick, payload, send_time) — §4.F "Messages are signed
// by the sender's GxsId; signature covers (lobby_id, msg_id, nick, payload,
// send_time)".
func bounceSignedBytes(b items.BouncingObject) []byte {
	buf := make([]byte, 0, 8+8+len(b.Nick)+len(b.Payload)+8)
	appendU64 := func(v uint64) {
		buf = append(buf, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	appendU64(b.LobbyID)
	appendU64(b.MsgID)
	buf = append(buf, []byte(b.Nick)...)
	buf = append(buf, []byte(b.Payload)...)
	appendU64(uint64(b.SendTime))
	return buf
}
