package rscore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/internal/framer"
	"github.com/rs-go/retroshare-node/internal/items"
	"github.com/rs-go/retroshare-node/internal/wire"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

func testController(t *testing.T) *Controller {
	t.Helper()
	return New(Options{
		Log:  logrus.NewEntry(logrus.New()),
		Self: ids.PeerID{1},
	})
}

// TestAttachPeerSendsBootServiceInfo verifies the actor's boot step (§4.E)
// fires once a raw conn is attached: the first bytes on the wire are a
// ServiceInfoListItem.
func TestAttachPeerSendsBootServiceInfo(t *testing.T) {
	c := testController(t)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.AttachPeer(ctx, ids.PeerID{2}, serverConn)

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	hdrBuf := make([]byte, wire.HeaderSize)
	if _, err := readFull(clientConn, hdrBuf); err != nil {
		t.Fatalf("read header: %v", err)
	}
	h, err := framer.DecodeHeaderPrefix(hdrBuf)
	if err != nil {
		t.Fatalf("DecodeHeaderPrefix: %v", err)
	}
	if h.Service != items.ServiceServiceInfo {
		t.Errorf("boot item service = 0x%04x, want ServiceServiceInfo", h.Service)
	}
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestDisconnectRemovesPeer(t *testing.T) {
	c := testController(t)
	_, serverConn := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	peer := ids.PeerID{3}
	c.AttachPeer(ctx, peer, serverConn)

	if _, ok := c.Peer(peer); !ok {
		t.Fatal("peer not attached")
	}
	c.Disconnect(peer)
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Peer(peer); ok {
		t.Error("peer still attached after Disconnect")
	}
}

func TestPeerDirectoryMergeKeepsNewest(t *testing.T) {
	d := NewMemPeerDirectory()
	peer := ids.PeerID{9}
	d.Put(ids.PeerRecord{PeerID: peer, LastSeen: 10})
	if d.Merge(ids.PeerRecord{PeerID: peer, LastSeen: 5}) {
		t.Error("Merge accepted an older record")
	}
	if !d.Merge(ids.PeerRecord{PeerID: peer, LastSeen: 20, DisplayName: "fresh"}) {
		t.Error("Merge rejected a newer record")
	}
	all := d.All()
	if len(all) != 1 || all[0].DisplayName != "fresh" {
		t.Errorf("All() = %+v, want one fresh record", all)
	}
}

func TestHashStoreAddRemove(t *testing.T) {
	s := NewMemHashStore()
	var h [20]byte
	h[0] = 0xAB
	if s.Has(h) {
		t.Fatal("unexpected hash present before Add")
	}
	s.Add(h)
	if !s.Has(h) {
		t.Fatal("hash missing after Add")
	}
	s.Remove(h)
	if s.Has(h) {
		t.Fatal("hash still present after Remove")
	}
}
