package items

import "github.com/rs-go/retroshare-node/internal/wire"

// NXS items implement the sync/transaction wire traffic of §4.H. Unlike
// the core RetroShare services above, the same item shapes are reused
// across every GXS service_type (forums, channels, identities, ...); each
// item therefore carries its own Svc field rather than a constant
// ServiceType(), and RegisterNxsItems binds the shapes to one concrete
// service_type at a time.

// NxsSyncGroupItem requests groups newer than SinceTS (§4.H "SyncGroup
// request to P with the last-seen timestamp").
type NxsSyncGroupItem struct {
	Svc     uint16
	SinceTS int64
}

func (i *NxsSyncGroupItem) ServiceType() uint16       { return i.Svc }
func (i *NxsSyncGroupItem) Subtype() uint8            { return SubNxsSyncGroup }
func (i *NxsSyncGroupItem) EncodeBody(w *wire.Writer) { w.I64(i.SinceTS) }

// NxsGroupMetaEntry is one row of a SyncGroup reply.
type NxsGroupMetaEntry struct {
	GroupID   [16]byte
	UpdateTS  int64
	GroupName string
}

// NxsGroupListItem is the SyncGroup reply (§4.H "list of (group_id,
// update_ts, group_meta_summary)"), capped at 20 entries (§8). The same
// shape doubles as the requester's targeted group-fetch request once
// TransactionID is set to an already-opened transaction: a zero
// TransactionID marks a plain sync-reply summary.
type NxsGroupListItem struct {
	Svc           uint16
	TransactionID uint32
	Entries       []NxsGroupMetaEntry
}

func (i *NxsGroupListItem) ServiceType() uint16 { return i.Svc }
func (i *NxsGroupListItem) Subtype() uint8      { return SubNxsGroupList }
func (i *NxsGroupListItem) EncodeBody(w *wire.Writer) {
	w.U32(i.TransactionID)
	wire.WriteSeq(w, i.Entries, func(bw *wire.Writer, e NxsGroupMetaEntry) {
		bw.RawBytes(e.GroupID[:])
		bw.I64(e.UpdateTS)
		bw.String(e.GroupName)
	})
}

// NxsSyncMessageItem requests messages of GroupID newer than SinceTS
// (§4.H "SyncMessage(g, ts)").
type NxsSyncMessageItem struct {
	Svc     uint16
	GroupID [16]byte
	SinceTS int64
}

func (i *NxsSyncMessageItem) ServiceType() uint16 { return i.Svc }
func (i *NxsSyncMessageItem) Subtype() uint8      { return SubNxsSyncMessage }
func (i *NxsSyncMessageItem) EncodeBody(w *wire.Writer) {
	w.RawBytes(i.GroupID[:])
	w.I64(i.SinceTS)
}

// NxsMessageIDEntry is one row of a SyncMessage reply.
type NxsMessageIDEntry struct {
	MessageID [20]byte
	UpdateTS  int64
}

// NxsMessageListItem is the SyncMessage reply, also the fetch request list.
type NxsMessageListItem struct {
	Svc     uint16
	GroupID [16]byte
	Entries []NxsMessageIDEntry
}

func (i *NxsMessageListItem) ServiceType() uint16 { return i.Svc }
func (i *NxsMessageListItem) Subtype() uint8      { return SubNxsMessageList }
func (i *NxsMessageListItem) EncodeBody(w *wire.Writer) {
	w.RawBytes(i.GroupID[:])
	wire.WriteSeq(w, i.Entries, func(bw *wire.Writer, e NxsMessageIDEntry) {
		bw.RawBytes(e.MessageID[:])
		bw.I64(e.UpdateTS)
	})
}

// NxsTransactionPhase mirrors the transaction states of §3/§4.H.
type NxsTransactionPhase uint8

const (
	NxsPhaseStarting NxsTransactionPhase = iota
	NxsPhaseSendingOrReceiving
	NxsPhaseWaitingConfirm
	NxsPhaseCompleted
	NxsPhaseFailed
)

// NxsTransactionItem brackets a transaction's item stream: a Starting
// item announces ItemCount items will follow tagged with TransactionID
// and a monotonic Seq (§4.H "monotonic sub-sequence in a single
// transaction id").
type NxsTransactionItem struct {
	Svc           uint16
	TransactionID uint32
	Phase         NxsTransactionPhase
	ItemCount     uint32
	Seq           uint32
}

func (i *NxsTransactionItem) ServiceType() uint16 { return i.Svc }
func (i *NxsTransactionItem) Subtype() uint8      { return SubNxsTransaction }
func (i *NxsTransactionItem) EncodeBody(w *wire.Writer) {
	w.U32(i.TransactionID)
	w.U8(uint8(i.Phase))
	w.U32(i.ItemCount)
	w.U32(i.Seq)
}

// NxsGroupPushItem carries one fetched group's serialized payload within a
// transaction (§4.G "serialized group data").
type NxsGroupPushItem struct {
	Svc              uint16
	TransactionID    uint32
	Seq              uint32
	GroupID          [16]byte
	AuthorID         [16]byte
	GroupName        string
	PublishTS        int64
	AdminPublicKey   []byte
	PublishPublicKey []byte
	AdminSignature   []byte
	Data             []byte
}

func (i *NxsGroupPushItem) ServiceType() uint16 { return i.Svc }
func (i *NxsGroupPushItem) Subtype() uint8      { return SubNxsGroupPush }
func (i *NxsGroupPushItem) EncodeBody(w *wire.Writer) {
	w.U32(i.TransactionID)
	w.U32(i.Seq)
	w.RawBytes(i.GroupID[:])
	w.RawBytes(i.AuthorID[:])
	w.String(i.GroupName)
	w.I64(i.PublishTS)
	w.String(string(i.AdminPublicKey))
	w.String(string(i.PublishPublicKey))
	w.String(string(i.AdminSignature))
	w.String(string(i.Data))
}

// NxsMessagePushItem carries one fetched message's serialized payload.
type NxsMessagePushItem struct {
	Svc           uint16
	TransactionID uint32
	Seq           uint32
	GroupID       [16]byte
	MessageID     [20]byte
	AuthorID      [16]byte
	PublishTS     int64
	Signature     []byte
	Data          []byte
}

func (i *NxsMessagePushItem) ServiceType() uint16 { return i.Svc }
func (i *NxsMessagePushItem) Subtype() uint8      { return SubNxsMessagePush }
func (i *NxsMessagePushItem) EncodeBody(w *wire.Writer) {
	w.U32(i.TransactionID)
	w.U32(i.Seq)
	w.RawBytes(i.GroupID[:])
	w.RawBytes(i.MessageID[:])
	w.RawBytes(i.AuthorID[:])
	w.I64(i.PublishTS)
	w.String(string(i.Signature))
	w.String(string(i.Data))
}

// RegisterNxsItems registers the NXS item family under serviceType, one
// per concrete GXS service instance (§4.H). Safe to call once per
// service_type; a second call for the same service_type panics via the
// registry's duplicate-registration guard.
func RegisterNxsItems(reg *Registry, serviceType uint16) {
	reg.Register(serviceType, SubNxsSyncGroup, Schema{Decode: decodeNxsSyncGroup})
	reg.Register(serviceType, SubNxsGroupList, Schema{Decode: decodeNxsGroupList})
	reg.Register(serviceType, SubNxsSyncMessage, Schema{Decode: decodeNxsSyncMessage})
	reg.Register(serviceType, SubNxsMessageList, Schema{Decode: decodeNxsMessageList})
	reg.Register(serviceType, SubNxsTransaction, Schema{Decode: decodeNxsTransaction})
	reg.Register(serviceType, SubNxsGroupPush, Schema{Decode: decodeNxsGroupPush})
	reg.Register(serviceType, SubNxsMessagePush, Schema{Decode: decodeNxsMessagePush})
}

func decodeNxsSyncGroup(service uint16, _ uint8, r *wire.Reader) (Item, error) {
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	return &NxsSyncGroupItem{Svc: service, SinceTS: ts}, nil
}

func decodeNxsGroupList(service uint16, _ uint8, r *wire.Reader) (Item, error) {
	txID, err := r.U32()
	if err != nil {
		return nil, err
	}
	entries, err := wire.ReadSeq(r, func(br *wire.Reader) (NxsGroupMetaEntry, error) {
		var e NxsGroupMetaEntry
		if err := br.FixedArray(e.GroupID[:]); err != nil {
			return e, err
		}
		ts, err := br.I64()
		if err != nil {
			return e, err
		}
		e.UpdateTS = ts
		name, err := br.String()
		if err != nil {
			return e, err
		}
		e.GroupName = name
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return &NxsGroupListItem{Svc: service, TransactionID: txID, Entries: entries}, nil
}

func decodeNxsSyncMessage(service uint16, _ uint8, r *wire.Reader) (Item, error) {
	var groupID [16]byte
	if err := r.FixedArray(groupID[:]); err != nil {
		return nil, err
	}
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	return &NxsSyncMessageItem{Svc: service, GroupID: groupID, SinceTS: ts}, nil
}

func decodeNxsMessageList(service uint16, _ uint8, r *wire.Reader) (Item, error) {
	var groupID [16]byte
	if err := r.FixedArray(groupID[:]); err != nil {
		return nil, err
	}
	entries, err := wire.ReadSeq(r, func(br *wire.Reader) (NxsMessageIDEntry, error) {
		var e NxsMessageIDEntry
		if err := br.FixedArray(e.MessageID[:]); err != nil {
			return e, err
		}
		ts, err := br.I64()
		if err != nil {
			return e, err
		}
		e.UpdateTS = ts
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return &NxsMessageListItem{Svc: service, GroupID: groupID, Entries: entries}, nil
}

func decodeNxsTransaction(service uint16, _ uint8, r *wire.Reader) (Item, error) {
	txID, err := r.U32()
	if err != nil {
		return nil, err
	}
	phase, err := r.U8()
	if err != nil {
		return nil, err
	}
	count, err := r.U32()
	if err != nil {
		return nil, err
	}
	seq, err := r.U32()
	if err != nil {
		return nil, err
	}
	return &NxsTransactionItem{Svc: service, TransactionID: txID, Phase: NxsTransactionPhase(phase), ItemCount: count, Seq: seq}, nil
}

func decodeNxsGroupPush(service uint16, _ uint8, r *wire.Reader) (Item, error) {
	txID, err := r.U32()
	if err != nil {
		return nil, err
	}
	seq, err := r.U32()
	if err != nil {
		return nil, err
	}
	var groupID, authorID [16]byte
	if err := r.FixedArray(groupID[:]); err != nil {
		return nil, err
	}
	if err := r.FixedArray(authorID[:]); err != nil {
		return nil, err
	}
	name, err := r.String()
	if err != nil {
		return nil, err
	}
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	adminPub, err := r.String()
	if err != nil {
		return nil, err
	}
	publishPub, err := r.String()
	if err != nil {
		return nil, err
	}
	sig, err := r.String()
	if err != nil {
		return nil, err
	}
	data, err := r.String()
	if err != nil {
		return nil, err
	}
	return &NxsGroupPushItem{
		Svc: service, TransactionID: txID, Seq: seq, GroupID: groupID, AuthorID: authorID,
		GroupName: name, PublishTS: ts,
		AdminPublicKey: []byte(adminPub), PublishPublicKey: []byte(publishPub),
		AdminSignature: []byte(sig), Data: []byte(data),
	}, nil
}

func decodeNxsMessagePush(service uint16, _ uint8, r *wire.Reader) (Item, error) {
	txID, err := r.U32()
	if err != nil {
		return nil, err
	}
	seq, err := r.U32()
	if err != nil {
		return nil, err
	}
	var groupID [16]byte
	var msgID [20]byte
	var authorID [16]byte
	if err := r.FixedArray(groupID[:]); err != nil {
		return nil, err
	}
	if err := r.FixedArray(msgID[:]); err != nil {
		return nil, err
	}
	if err := r.FixedArray(authorID[:]); err != nil {
		return nil, err
	}
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	sig, err := r.String()
	if err != nil {
		return nil, err
	}
	data, err := r.String()
	if err != nil {
		return nil, err
	}
	return &NxsMessagePushItem{
		Svc: service, TransactionID: txID, Seq: seq, GroupID: groupID, MessageID: msgID, AuthorID: authorID,
		PublishTS: ts, Signature: []byte(sig), Data: []byte(data),
	}, nil
}
