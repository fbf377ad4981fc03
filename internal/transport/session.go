// Package transport owns one authenticated byte stream to a peer (§4.D).
// The low-level TLS implementation itself is treated as an external stream
// provider per spec §1 scope notes: this package depends only on the
// io.ReadWriteCloser surface crypto/tls.Conn already satisfies, so it never
// constructs a tls.Config itself beyond the minimal mutual-auth shape the
// wire protocol requires.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/framer"
	"github.com/rs-go/retroshare-node/internal/wire"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

// State is the session lifecycle (§4.D).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateActive
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Identity is the local node's TLS material: a certificate whose public key
// is derived from the local PGP key, per §4.D. Constructing that derivation
// is the external keyring collaborator's job (§1 scope); this package
// consumes the resulting tls.Certificate opaquely.
type Identity struct {
	Cert tls.Certificate
}

// DialBackoff bounds the exponential backoff applied to repeated handshake
// failures against the same peer (§4.D).
type DialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultBackoff() DialBackoff { return DialBackoff{Base: 500 * time.Millisecond, Max: 2 * time.Minute} }

func (b DialBackoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	return d
}

// Session is an authenticated TLS stream to one peer, mediated by the wire
// codec and the packet framer (§4.D).
type Session struct {
	PeerID ids.PeerID
	conn   net.Conn
	re     *framer.Reassembler
	state  State
	log    *logrus.Entry

	nextSliceID func() uint32
	sliceCtr    uint32
}

// NewSession wraps an already-authenticated net.Conn (a *tls.Conn in
// production). The caller has already completed the handshake; NewSession
// only manages the framed read/write halves and lifecycle bookkeeping.
func NewSession(peer ids.PeerID, conn net.Conn, log *logrus.Entry) *Session {
	s := &Session{
		PeerID: peer,
		conn:   conn,
		re:     framer.NewReassembler(log),
		state:  StateAuthenticated,
		log:    log,
	}
	s.nextSliceID = func() uint32 {
		s.sliceCtr++
		return s.sliceCtr
	}
	return s
}

// Dial probes addr in the order given, establishing a mutually-authenticated
// TLS connection to the peer presenting expectedCert. Address probing order
// itself (local, then external, then hidden) is the caller's responsibility
// per §4.D — Dial tries exactly the addresses it is given, in order,
// stopping at the first successful handshake.
func Dial(addrs []string, local Identity, expectedCert *x509.Certificate, backoff DialBackoff, log *logrus.Entry) (net.Conn, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		for _, addr := range addrs {
			conn, err := dialOne(addr, local, expectedCert)
			if err == nil {
				return conn, nil
			}
			lastErr = err
			log.WithError(err).WithField("addr", addr).Warn("transport: handshake attempt failed")
		}
		if attempt >= 6 { // caps backoff growth; absolute retry count is the caller's concern
			return nil, fmt.Errorf("transport: exhausted addresses: %w", lastErr)
		}
		time.Sleep(backoff.Delay(attempt))
	}
}

func dialOne(addr string, local Identity, expectedCert *x509.Certificate) (net.Conn, error) {
	pool := x509.NewCertPool()
	if expectedCert != nil {
		pool.AddCert(expectedCert)
	}
	cfg := &tls.Config{
		Certificates:       []tls.Certificate{local.Cert},
		InsecureSkipVerify: true, // identity is verified against the peer's known PGP-derived cert below, not the browser CA chain
		ClientAuth:         tls.RequireAnyClientCert,
	}
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, err
	}
	if expectedCert != nil {
		if err := verifyPeerCert(conn, expectedCert); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func verifyPeerCert(conn *tls.Conn, expected *x509.Certificate) error {
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return errors.New("transport: peer presented no certificate")
	}
	if !state.PeerCertificates[0].Equal(expected) {
		return errors.New("transport: peer certificate does not match known PGP-derived identity")
	}
	return nil
}

// ReadPacket blocks until one full packet header (and, for slices, its
// slice header) plus payload have arrived, or returns an error on EOF/reset.
func (s *Session) ReadPacket() (wire.Header, *wire.SliceHeader, []byte, error) {
	hdrBuf := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(s.conn, hdrBuf); err != nil {
		return wire.Header{}, nil, nil, err
	}
	h, err := framer.DecodeHeaderPrefix(hdrBuf)
	if err != nil {
		return wire.Header{}, nil, nil, err
	}

	var sh *wire.SliceHeader
	isSlice := h.IsSlice()
	if isSlice {
		sliceBuf := make([]byte, wire.HeaderSize)
		if _, err := io.ReadFull(s.conn, sliceBuf); err != nil {
			return wire.Header{}, nil, nil, err
		}
		decoded, err := framer.DecodeSlicePrefix(sliceBuf)
		if err != nil {
			return wire.Header{}, nil, nil, err
		}
		sh = &decoded
	}

	n := framer.PayloadLen(h, isSlice)
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return wire.Header{}, nil, nil, err
		}
	}
	return h, sh, payload, nil
}

// WritePackets writes already-split packets to the stream in order,
// preserving submission order across slices (§5 ordering guarantees).
func (s *Session) WritePackets(pkts []framer.Packet) error {
	for _, p := range pkts {
		if _, err := s.conn.Write(framer.EncodePacket(p)); err != nil {
			return err
		}
	}
	return nil
}

// NextSliceID hands out a fresh, monotone slice id for this session
// (§3 invariant: "ids are not reused while a group is incomplete").
func (s *Session) NextSliceID() uint32 { return s.nextSliceID() }

// Reassembler exposes the session's inbound reassembly table.
func (s *Session) Reassembler() *framer.Reassembler { return s.re }

// SetState transitions the session's lifecycle state (§4.D). Callers
// publish the corresponding PeerState event on the core bus themselves.
func (s *Session) SetState(st State) { s.state = st }
func (s *Session) State() State      { return s.state }

// Close releases the stream and abandons any in-flight reassembly.
func (s *Session) Close() error {
	s.state = StateTerminating
	s.re.Abandon()
	return s.conn.Close()
}
