package ids

import (
	"fmt"

	"github.com/multiformats/go-multiaddr"
)

// PeerAddr is a known address hint for a peer: a LAN or external address,
// validated and normalised through the multiaddr grammar so address
// comparisons and printing stay consistent across the peer registry.
type PeerAddr struct {
	Multiaddr multiaddr.Multiaddr
	Hidden    bool // part of a hidden-node (onion/i2p) address set
}

// ParsePeerAddr validates s (e.g. "/ip4/1.2.3.4/tcp/7812") as a multiaddr.
func ParsePeerAddr(s string, hidden bool) (PeerAddr, error) {
	ma, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return PeerAddr{}, fmt.Errorf("ids: invalid peer address %q: %w", s, err)
	}
	return PeerAddr{Multiaddr: ma, Hidden: hidden}, nil
}

func (a PeerAddr) String() string {
	if a.Multiaddr == nil {
		return ""
	}
	return a.Multiaddr.String()
}

// PeerRecord is the stable, restart-surviving identity of a known peer (§3).
type PeerRecord struct {
	PeerID          PeerID
	PgpID           PgpID
	DisplayName     string
	LocalAddresses  []PeerAddr
	ExternalAddresses []PeerAddr
	HiddenNode      bool
	LastSeen        int64 // unix seconds
}

// DialOrder returns addresses in the probing order mandated by §4.D: local
// hints first, then external, then any hidden-node address.
func (r PeerRecord) DialOrder() []PeerAddr {
	out := make([]PeerAddr, 0, len(r.LocalAddresses)+len(r.ExternalAddresses))
	var hidden []PeerAddr
	for _, list := range [][]PeerAddr{r.LocalAddresses, r.ExternalAddresses} {
		for _, a := range list {
			if a.Hidden {
				hidden = append(hidden, a)
				continue
			}
			out = append(out, a)
		}
	}
	return append(out, hidden...)
}
