// Package ids defines the fixed-width opaque identifier types shared across
// the wire codec, the peer registry and the GXS store. Equality and hashing
// are bytewise; the zero value is the sentinel "none" id.
package ids

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// PeerID is the 16 byte SSL/node instance identifier.
type PeerID [16]byte

// PgpID is the 8 byte long PGP key id.
type PgpID [8]byte

// PgpFingerprint is the full 20 byte PGP fingerprint.
type PgpFingerprint [20]byte

// GxsID identifies a GXS identity (also used as GxsGroupID/GxsCircleID).
type GxsID [16]byte

// GxsGroupID identifies a GXS group.
type GxsGroupID [16]byte

// GxsCircleID identifies a GXS circle.
type GxsCircleID [16]byte

// GxsMessageID identifies a GXS message.
type GxsMessageID [20]byte

// Sha1 is a 20 byte SHA-1 digest, also used as a generic content hash.
type Sha1 [20]byte

// Sha256 is a 32 byte SHA-256 digest.
type Sha256 [32]byte

// String renders the identifier as lowercase hex, its canonical printable form.
func (p PeerID) String() string  { return hex.EncodeToString(p[:]) }
func (p PgpID) String() string   { return hex.EncodeToString(p[:]) }
func (p PgpFingerprint) String() string { return hex.EncodeToString(p[:]) }
func (g GxsID) String() string   { return hex.EncodeToString(g[:]) }
func (g GxsGroupID) String() string  { return hex.EncodeToString(g[:]) }
func (g GxsCircleID) String() string { return hex.EncodeToString(g[:]) }
func (m GxsMessageID) String() string { return hex.EncodeToString(m[:]) }
func (s Sha1) String() string   { return hex.EncodeToString(s[:]) }
func (s Sha256) String() string { return hex.EncodeToString(s[:]) }

// IsNone reports whether id is the all-zero sentinel.
func (p PeerID) IsNone() bool { return p == PeerID{} }
func (g GxsGroupID) IsNone() bool { return g == GxsGroupID{} }
func (g GxsID) IsNone() bool { return g == GxsID{} }

// ParsePeerID decodes a lowercase-hex printable PeerID.
func ParsePeerID(s string) (PeerID, error) {
	var out PeerID
	if err := parseFixed(s, out[:]); err != nil {
		return PeerID{}, err
	}
	b, _ := hex.DecodeString(s)
	copy(out[:], b)
	return out, nil
}

// ParseGxsGroupID decodes a lowercase-hex printable GxsGroupID.
func ParseGxsGroupID(s string) (GxsGroupID, error) {
	var out GxsGroupID
	if err := parseFixed(s, out[:]); err != nil {
		return GxsGroupID{}, err
	}
	b, _ := hex.DecodeString(s)
	copy(out[:], b)
	return out, nil
}

// NewGxsGroupID mints a fresh group id from a random UUIDv4, the same
// random-id idiom used elsewhere for locally originated records.
func NewGxsGroupID() GxsGroupID {
	var out GxsGroupID
	u := uuid.New()
	copy(out[:], u[:])
	return out
}

// NewGxsMessageID mints a fresh message id; the trailing 4 bytes beyond
// the UUID are left zero since GxsMessageID is 20 bytes wide.
func NewGxsMessageID() GxsMessageID {
	var out GxsMessageID
	u := uuid.New()
	copy(out[:16], u[:])
	return out
}

func parseFixed(s string, want []byte) error {
	if len(s) != len(want)*2 {
		return fmt.Errorf("ids: wrong length for %d-byte id: %q", len(want), s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("ids: invalid hex: %w", err)
	}
	return nil
}
