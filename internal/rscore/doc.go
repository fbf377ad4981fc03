// Package rscore implements the core controller of the node: it owns the
// local identity, the peer registry, the shared cross-session state
// (turtle router, peer directory, lobby manager, GXS store), and the
// per-peer session lifecycle that wires a transport.Session to a
// peeractor.Actor carrying the full service set.
package rscore
