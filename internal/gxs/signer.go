package gxs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

// Signature operations use RSA with SHA-1 for legacy wire compatibility
// with RetroShare (§4.G); this is a protocol requirement, not a local
// choice, so it is implemented against crypto/rsa and crypto/sha1 rather
// than a modern signature library from the example pack (none of which
// produce RSA-PKCS1v15-SHA1 signatures compatible with the existing
// network).
var hashAlgorithm = crypto.SHA1

// KeyResolver looks up the keypair associated with a GxsID, used both to
// sign locally-authored content and to verify incoming signatures.
type KeyResolver interface {
	// PrivateKey returns the RSA private key for gxsID, if this node
	// administers that identity.
	PrivateKey(gxsID ids.GxsID) (*rsa.PrivateKey, bool)
	// PublicKey returns the RSA public key for gxsID.
	PublicKey(gxsID ids.GxsID) (*rsa.PublicKey, bool)
}

// MemKeyResolver is a minimal in-memory KeyResolver, sufficient for a
// local identity set; the GXS store layers this under the persistent key
// set carried on each Group (§3 "keys:").
type MemKeyResolver struct {
	mu       sync.RWMutex
	privates map[ids.GxsID]*rsa.PrivateKey
	publics  map[ids.GxsID]*rsa.PublicKey
}

func NewMemKeyResolver() *MemKeyResolver {
	return &MemKeyResolver{
		privates: make(map[ids.GxsID]*rsa.PrivateKey),
		publics:  make(map[ids.GxsID]*rsa.PublicKey),
	}
}

func (r *MemKeyResolver) AddPrivate(gxsID ids.GxsID, key *rsa.PrivateKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.privates[gxsID] = key
	r.publics[gxsID] = &key.PublicKey
}

func (r *MemKeyResolver) AddPublic(gxsID ids.GxsID, key *rsa.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publics[gxsID] = key
}

func (r *MemKeyResolver) PrivateKey(gxsID ids.GxsID) (*rsa.PrivateKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.privates[gxsID]
	return k, ok
}

func (r *MemKeyResolver) PublicKey(gxsID ids.GxsID) (*rsa.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.publics[gxsID]
	return k, ok
}

// Signer implements services.Signer against a KeyResolver's RSA keys for
// the chat lobby bounce path. CreateGroup and CreateMessage sign with
// crypto/rsa directly and do not go through Signer.
type Signer struct {
	keys KeyResolver
}

func NewSigner(keys KeyResolver) *Signer {
	return &Signer{keys: keys}
}

func (s *Signer) Sign(gxsID [16]byte, data []byte) ([]byte, error) {
	priv, ok := s.keys.PrivateKey(ids.GxsID(gxsID))
	if !ok {
		return nil, fmt.Errorf("gxs: no private key for identity %x", gxsID)
	}
	digest := sha1.Sum(data)
	return rsa.SignPKCS1v15(rand.Reader, priv, hashAlgorithm, digest[:])
}

func (s *Signer) Verify(gxsID [16]byte, data, sig []byte) bool {
	pub, ok := s.keys.PublicKey(ids.GxsID(gxsID))
	if !ok {
		return false
	}
	digest := sha1.Sum(data)
	return rsa.VerifyPKCS1v15(pub, hashAlgorithm, digest[:], sig) == nil
}

// VerifyGroupAdmin checks a group's admin signature against its own
// declared admin public key (§4.G "verify all declared signatures against
// the included public keys").
func VerifyGroupAdmin(g Group, canonicalBytes []byte) (bool, error) {
	if g.Keys.PublicAdmin == nil {
		return false, fmt.Errorf("gxs: group %s has no admin public key", g.GroupID)
	}
	pub, err := x509.ParsePKCS1PublicKey(g.Keys.PublicAdmin)
	if err != nil {
		return false, fmt.Errorf("gxs: parse admin key: %w", err)
	}
	digest := sha1.Sum(canonicalBytes)
	return rsa.VerifyPKCS1v15(pub, hashAlgorithm, digest[:], g.AdminSignature) == nil, nil
}

// VerifyMessageAuthor checks a message's author signature according to
// the owning group's signature policy (§4.G).
func VerifyMessageAuthor(g Group, m Message, canonicalBytes []byte, identity KeyResolver) (bool, error) {
	var pub *rsa.PublicKey
	switch g.Policy {
	case PolicyIdentitySigned:
		if identity == nil {
			return false, fmt.Errorf("gxs: identity-signed group requires an identity resolver")
		}
		p, ok := identity.PublicKey(m.AuthorID)
		if !ok {
			return false, fmt.Errorf("gxs: no admin key for author identity %s", m.AuthorID)
		}
		pub = p
	default:
		if g.Keys.PublicPublish == nil {
			return false, fmt.Errorf("gxs: group %s has no publish key", g.GroupID)
		}
		p, err := x509.ParsePKCS1PublicKey(g.Keys.PublicPublish)
		if err != nil {
			return false, fmt.Errorf("gxs: parse publish key: %w", err)
		}
		pub = p
	}
	digest := sha1.Sum(canonicalBytes)
	return rsa.VerifyPKCS1v15(pub, hashAlgorithm, digest[:], m.Signature) == nil, nil
}
