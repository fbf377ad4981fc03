package rscore

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

var errNoClientCert = errors.New("rscore: peer presented no client certificate")

// ListenAndServe accepts inbound TLS connections on addr and attaches each
// as a peer session. The peer id is derived from the presented client
// certificate the same way a local identity's id is derived
// (peerIDFromCert); pairing that id with a pre-shared PGP identity belongs
// to the external keyring collaborator this package depends on (§1 scope).
// It blocks until ctx is cancelled or the listener fails.
func (c *Controller) ListenAndServe(ctx context.Context, addr string) error {
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{c.identity.Cert},
		ClientAuth:   tls.RequireAnyClientCert,
	}
	ln, err := tls.Listen("tcp", addr, tlsCfg)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				c.log.WithError(err).Warn("rscore: accept failed")
				continue
			}
		}
		tlsConn, ok := conn.(*tls.Conn)
		if !ok {
			conn.Close()
			continue
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			c.log.WithError(err).Warn("rscore: inbound handshake failed")
			conn.Close()
			continue
		}
		peer, err := peerIDFromPresentedCert(tlsConn)
		if err != nil {
			c.log.WithError(err).Warn("rscore: could not derive peer id from client cert")
			conn.Close()
			continue
		}
		c.AttachPeer(ctx, peer, tlsConn)
	}
}

func peerIDFromPresentedCert(conn *tls.Conn) (ids.PeerID, error) {
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ids.PeerID{}, errNoClientCert
	}
	return peerIDFromSubjectKeyInfo(state.PeerCertificates[0].RawSubjectPublicKeyInfo), nil
}
