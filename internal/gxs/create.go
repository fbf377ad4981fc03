package gxs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"time"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

const groupKeyBits = 2048

// NewGroupKeys is the keypair set minted for a locally-originated group:
// the admin key always exists, the publish key only under
// PolicyPublishKeySigned (§3 "keys:", §8 invariant 5).
type NewGroupKeys struct {
	AdminPrivate   *rsa.PrivateKey
	PublishPrivate *rsa.PrivateKey // nil under PolicyIdentitySigned
}

// CreateGroup mints a new locally-originated group: a fresh admin (and,
// for PolicyPublishKeySigned, publish) keypair, a random GroupID
// (ids.NewGxsGroupID, mirroring the UUID-based id generation used
// elsewhere for locally originated records), and an admin signature over
// the canonical bytes per §8 invariant 5. The returned keys are the
// caller's responsibility to persist; CreateMessage needs the relevant
// one back to sign later messages in the group.
func CreateGroup(name string, policy SignaturePolicy) (Group, NewGroupKeys, error) {
	adminPriv, err := rsa.GenerateKey(rand.Reader, groupKeyBits)
	if err != nil {
		return Group{}, NewGroupKeys{}, err
	}
	g := Group{
		GroupID:   ids.NewGxsGroupID(),
		GroupName: name,
		PublishTS: time.Now().Unix(),
		Policy:    policy,
		Keys: KeySet{
			Flags:       KeyFlagPublicAdmin | KeyFlagPrivateAdmin,
			PublicAdmin: x509.MarshalPKCS1PublicKey(&adminPriv.PublicKey),
		},
	}
	keys := NewGroupKeys{AdminPrivate: adminPriv}

	if policy == PolicyPublishKeySigned {
		publishPriv, err := rsa.GenerateKey(rand.Reader, groupKeyBits)
		if err != nil {
			return Group{}, NewGroupKeys{}, err
		}
		g.Keys.Flags |= KeyFlagPublicPublish | KeyFlagPrivatePublish
		g.Keys.PublicPublish = x509.MarshalPKCS1PublicKey(&publishPriv.PublicKey)
		keys.PublishPrivate = publishPriv
	}

	digest := sha1.Sum(CanonicalGroupBytes(g))
	sig, err := rsa.SignPKCS1v15(rand.Reader, adminPriv, hashAlgorithm, digest[:])
	if err != nil {
		return Group{}, NewGroupKeys{}, err
	}
	g.AdminSignature = sig

	return g, keys, nil
}

// CreateMessage mints a new message authored by authorID under group g,
// signing it with signingKey: the author's own identity key under
// PolicyIdentitySigned, or the group's publish key otherwise (§8
// invariant 5).
func CreateMessage(g Group, authorID ids.GxsID, signingKey *rsa.PrivateKey, data []byte) (Message, error) {
	m := Message{
		GroupID:   g.GroupID,
		MessageID: ids.NewGxsMessageID(),
		ThreadID:  ids.NewGxsMessageID(),
		AuthorID:  authorID,
		PublishTS: time.Now().Unix(),
		Data:      data,
	}
	digest := sha1.Sum(CanonicalMessageBytes(m))
	sig, err := rsa.SignPKCS1v15(rand.Reader, signingKey, hashAlgorithm, digest[:])
	if err != nil {
		return Message{}, err
	}
	m.Signature = sig
	return m, nil
}
