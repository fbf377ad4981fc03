// Package gxs implements the signed, eventually-consistent group/message
// store of §4.G: group and message persistence, RSA-SHA1 signature
// verification, an LRU front cache, and the cooperative request-queue
// worker that NXS and the peer actors read and write through.
package gxs

import "github.com/rs-go/retroshare-node/pkg/ids"

// KeyFlags marks which keys a group's key set carries (§4.G "admin key and
// publish key have distinct flag bits").
type KeyFlags uint32

const (
	KeyFlagPublicAdmin KeyFlags = 1 << iota
	KeyFlagPublishAdmin
	KeyFlagPublicPublish
	KeyFlagPrivateAdmin
	KeyFlagPrivatePublish
)

// KeySet holds the RSA keys attached to a group, stored as DER-encoded
// PKCS1 blobs so the store never needs to round-trip parsed key objects
// for rows it only forwards (§4.G).
type KeySet struct {
	Flags         KeyFlags
	PublicAdmin   []byte
	PublicPublish []byte
	PrivateAdmin  []byte // only present for locally-administered groups
	PrivatePublish []byte
}

// SignaturePolicy controls which key a message's author signature must
// verify against (§4.G "publish key ... or author-identity admin key if
// group policy is identity-signed").
type SignaturePolicy int

const (
	PolicyPublishKeySigned SignaturePolicy = iota
	PolicyIdentitySigned
)

// SubscribeFlags and GroupFlags are opaque bitfields carried through
// unmodified from the wire representation; the store does not interpret
// individual bits beyond what put_group/put_message require.
type SubscribeFlags uint32
type GroupFlags uint32
type MessageFlags uint32

// Group is a GXS group row (§3 "GXS group").
type Group struct {
	GroupID        ids.GxsGroupID
	ServiceType    uint16
	GroupName      string
	PublishTS      int64
	SubscribeFlags SubscribeFlags
	GroupFlags     GroupFlags
	AuthorID       ids.GxsID // zero value if anonymous
	Keys           KeySet
	Policy         SignaturePolicy
	AdminSignature []byte
	Data           []byte // serialized group-type-specific payload
}

// Message is a GXS message row (§3 "GXS message").
type Message struct {
	GroupID      ids.GxsGroupID
	MessageID    ids.GxsMessageID
	ParentID     ids.GxsMessageID
	ThreadID     ids.GxsMessageID
	AuthorID     ids.GxsID
	PublishTS    int64
	MessageFlags MessageFlags
	Data         []byte
	Signature    []byte
}

// GroupMeta is the summary row NXS exchanges during SyncGroup (§4.H
// "group_meta_summary"): enough to decide whether a full fetch is worth
// issuing, without the group payload itself.
type GroupMeta struct {
	GroupID     ids.GxsGroupID
	ServiceType uint16
	GroupName   string
	PublishTS   int64
	UpdateTS    int64
}
