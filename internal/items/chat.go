package items

import "github.com/rs-go/retroshare-node/internal/wire"

// ChatFlags is a u32 bitset; the legacy source declares it as a long-int
// enum populated with i16-sized constants, but only the low bits are
// defined here (§9 Open Questions, resolved as instructed: treat as u32,
// define only the documented low bits).
type ChatFlags uint32

const (
	ChatFlagPublic          ChatFlags = 0x0001
	ChatFlagPrivate         ChatFlags = 0x0002
	ChatFlagAvatarAvailable ChatFlags = 0x0004
)

// ChatMessageItem is a direct chat message.
type ChatMessageItem struct {
	Flags    ChatFlags
	Message  string
	SendTime int64
}

func (i *ChatMessageItem) ServiceType() uint16 { return ServiceChat }
func (i *ChatMessageItem) Subtype() uint8      { return SubChatMessage }
func (i *ChatMessageItem) EncodeBody(w *wire.Writer) {
	w.U32(uint32(i.Flags))
	w.String(i.Message)
	w.I64(i.SendTime)
}

func decodeChatMessage(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	flags, err := body.U32()
	if err != nil {
		return nil, err
	}
	msg, err := body.String()
	if err != nil {
		return nil, err
	}
	ts, err := body.I64()
	if err != nil {
		return nil, err
	}
	return &ChatMessageItem{Flags: ChatFlags(flags), Message: msg, SendTime: ts}, nil
}

// ChatStatusItem carries a free-form status string (e.g. "is typing").
type ChatStatusItem struct {
	Status string
}

func (i *ChatStatusItem) ServiceType() uint16       { return ServiceChat }
func (i *ChatStatusItem) Subtype() uint8            { return SubChatStatus }
func (i *ChatStatusItem) EncodeBody(w *wire.Writer) { w.String(i.Status) }

func decodeChatStatus(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	s, err := body.String()
	if err != nil {
		return nil, err
	}
	return &ChatStatusItem{Status: s}, nil
}

// ChatAvatarItem carries raw avatar image bytes. §9 Open Questions: some
// legacy builds omit the length prefix; tolerate both forms on decode by
// falling back to "rest of the packet" when the declared length doesn't
// match the remaining bytes, and always emit the length-prefixed form on
// encode.
type ChatAvatarItem struct {
	ImageData []byte
}

func (i *ChatAvatarItem) ServiceType() uint16 { return ServiceChat }
func (i *ChatAvatarItem) Subtype() uint8      { return SubChatAvatar }
func (i *ChatAvatarItem) EncodeBody(w *wire.Writer) {
	w.U32(uint32(len(i.ImageData)))
	w.RawBytes(i.ImageData)
}

func decodeChatAvatar(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	n, err := body.U32()
	if err != nil {
		return nil, err
	}
	if int(n) == body.Remaining() {
		b, err := body.Bytes(int(n))
		if err != nil {
			return nil, err
		}
		return &ChatAvatarItem{ImageData: append([]byte(nil), b...)}, nil
	}
	// Declared length doesn't match what remains: this is the legacy
	// unlength-prefixed form where the four bytes just consumed are in
	// fact the start of the image, not a length. Treat the whole packet
	// body as the image.
	rest, err := body.Bytes(body.Remaining())
	if err != nil {
		return nil, err
	}
	full := make([]byte, 0, 4+len(rest))
	full = append(full, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	full = append(full, rest...)
	return &ChatAvatarItem{ImageData: full}, nil
}

// ChatSignature covers a lobby message's (lobby_id, msg_id, nick, payload,
// send_time) tuple, signed by the sender's GxsId (§4.F chat lobby protocol).
type ChatSignature struct {
	SignerGxsID [16]byte
	Signature   []byte
}

// BouncingObject is held by lobby items as a composed field rather than via
// inheritance (§9: "re-express as composition: the lobby message holds a
// bouncing-object field").
type BouncingObject struct {
	LobbyID  uint64
	MsgID    uint64
	Nick     string
	Payload  string
	SendTime int64
	Sig      ChatSignature
}

func (b BouncingObject) encode(w *wire.Writer) {
	w.U64(b.LobbyID)
	w.U64(b.MsgID)
	w.String(b.Nick)
	w.String(b.Payload)
	w.I64(b.SendTime)
	w.RawBytes(b.Sig.SignerGxsID[:])
	w.U32(uint32(len(b.Sig.Signature)))
	w.RawBytes(b.Sig.Signature)
}

func decodeBouncingObject(r *wire.Reader) (BouncingObject, error) {
	var b BouncingObject
	var err error
	if b.LobbyID, err = r.U64(); err != nil {
		return b, err
	}
	if b.MsgID, err = r.U64(); err != nil {
		return b, err
	}
	if b.Nick, err = r.String(); err != nil {
		return b, err
	}
	if b.Payload, err = r.String(); err != nil {
		return b, err
	}
	if b.SendTime, err = r.I64(); err != nil {
		return b, err
	}
	if err = r.FixedArray(b.Sig.SignerGxsID[:]); err != nil {
		return b, err
	}
	n, err := r.U32()
	if err != nil {
		return b, err
	}
	sig, err := r.Bytes(int(n))
	if err != nil {
		return b, err
	}
	b.Sig.Signature = append([]byte(nil), sig...)
	return b, nil
}

// ChatLobbyBounceItem is a lobby message rebroadcast to every subscribed
// peer except the sender (§4.F, §8 invariant 7).
type ChatLobbyBounceItem struct {
	Bounce BouncingObject
}

func (i *ChatLobbyBounceItem) ServiceType() uint16       { return ServiceChat }
func (i *ChatLobbyBounceItem) Subtype() uint8            { return SubChatLobbyBounce }
func (i *ChatLobbyBounceItem) EncodeBody(w *wire.Writer) { i.Bounce.encode(w) }

func decodeChatLobbyBounce(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	b, err := decodeBouncingObject(body)
	if err != nil {
		return nil, err
	}
	return &ChatLobbyBounceItem{Bounce: b}, nil
}

// LobbyEventType enumerates lobby participation events.
type LobbyEventType uint8

const (
	LobbyEventJoin LobbyEventType = iota
	LobbyEventLeave
	LobbyEventKeepAlive
)

// ChatLobbyEventItem carries a join/leave/keep-alive signal (§4.F, 120s
// keep-alive cadence, 300s local GC timeout).
type ChatLobbyEventItem struct {
	LobbyID uint64
	Event   LobbyEventType
	Nick    string
}

func (i *ChatLobbyEventItem) ServiceType() uint16 { return ServiceChat }
func (i *ChatLobbyEventItem) Subtype() uint8      { return SubChatLobbyEvent }
func (i *ChatLobbyEventItem) EncodeBody(w *wire.Writer) {
	w.U64(i.LobbyID)
	w.U8(uint8(i.Event))
	w.String(i.Nick)
}

func decodeChatLobbyEvent(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	id, err := body.U64()
	if err != nil {
		return nil, err
	}
	ev, err := body.U8()
	if err != nil {
		return nil, err
	}
	nick, err := body.String()
	if err != nil {
		return nil, err
	}
	return &ChatLobbyEventItem{LobbyID: id, Event: LobbyEventType(ev), Nick: nick}, nil
}

// ChatLobbyInviteItem lets a peer join a lobby without prior visibility
// (§4.F "Invites and challenges implement join without pre-existing
// visibility").
type ChatLobbyInviteItem struct {
	LobbyID uint64
	Name    string
	Topic   string
	Flags   ChatFlags
}

func (i *ChatLobbyInviteItem) ServiceType() uint16 { return ServiceChat }
func (i *ChatLobbyInviteItem) Subtype() uint8      { return SubChatLobbyInvite }
func (i *ChatLobbyInviteItem) EncodeBody(w *wire.Writer) {
	w.U64(i.LobbyID)
	w.String(i.Name)
	w.String(i.Topic)
	w.U32(uint32(i.Flags))
}

func decodeChatLobbyInvite(service uint16, sub uint8, body *wire.Reader) (Item, error) {
	id, err := body.U64()
	if err != nil {
		return nil, err
	}
	name, err := body.String()
	if err != nil {
		return nil, err
	}
	topic, err := body.String()
	if err != nil {
		return nil, err
	}
	flags, err := body.U32()
	if err != nil {
		return nil, err
	}
	return &ChatLobbyInviteItem{LobbyID: id, Name: name, Topic: topic, Flags: ChatFlags(flags)}, nil
}

func init() {
	registerDefault(ServiceChat, SubChatMessage, Schema{Decode: decodeChatMessage})
	registerDefault(ServiceChat, SubChatStatus, Schema{Decode: decodeChatStatus})
	registerDefault(ServiceChat, SubChatAvatar, Schema{Decode: decodeChatAvatar})
	registerDefault(ServiceChat, SubChatLobbyBounce, Schema{Decode: decodeChatLobbyBounce})
	registerDefault(ServiceChat, SubChatLobbyEvent, Schema{Decode: decodeChatLobbyEvent})
	registerDefault(ServiceChat, SubChatLobbyInvite, Schema{Decode: decodeChatLobbyInvite})
}
