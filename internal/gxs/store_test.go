package gxs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(logrus.NewEntry(logrus.New()), OpenStoreOptions{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func signGroup(t *testing.T, priv *rsa.PrivateKey, g Group) Group {
	t.Helper()
	digest := sha1.Sum(CanonicalGroupBytes(g))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, hashAlgorithm, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	g.AdminSignature = sig
	return g
}

func TestPutGroupVerifiesAdminSignature(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := x509.MarshalPKCS1PublicKey(&priv.PublicKey)

	s := newTestStore(t)
	g := Group{GroupID: ids.GxsGroupID{1}, GroupName: "test", Keys: KeySet{PublicAdmin: pub}}
	g = signGroup(t, priv, g)

	if err := s.PutGroup(g, 100); err != nil {
		t.Fatalf("PutGroup: %v", err)
	}

	got, err := s.GetGroupMetaRaw(g.GroupID)
	if err != nil {
		t.Fatalf("GetGroupMetaRaw: %v", err)
	}
	if got.GroupName != "test" {
		t.Errorf("GroupName = %q, want %q", got.GroupName, "test")
	}
}

func TestPutGroupRejectsBadSignature(t *testing.T) {
	priv, _ := rsa.GenerateKey(rand.Reader, 1024)
	pub := x509.MarshalPKCS1PublicKey(&priv.PublicKey)

	s := newTestStore(t)
	g := Group{GroupID: ids.GxsGroupID{2}, GroupName: "tampered", Keys: KeySet{PublicAdmin: pub}}
	g = signGroup(t, priv, g)
	g.GroupName = "tampered-after-signing"

	if err := s.PutGroup(g, 100); err != ErrSignatureInvalid {
		t.Fatalf("PutGroup error = %v, want ErrSignatureInvalid", err)
	}
}

func TestPutGroupMissingKey(t *testing.T) {
	s := newTestStore(t)
	g := Group{GroupID: ids.GxsGroupID{3}, GroupName: "nokey"}
	if err := s.PutGroup(g, 1); err == nil {
		t.Fatal("expected error for missing admin key")
	}
}

func TestGroupsUpdatedSince(t *testing.T) {
	priv, _ := rsa.GenerateKey(rand.Reader, 1024)
	pub := x509.MarshalPKCS1PublicKey(&priv.PublicKey)
	s := newTestStore(t)

	g1 := signGroup(t, priv, Group{GroupID: ids.GxsGroupID{4}, Keys: KeySet{PublicAdmin: pub}})
	g2 := signGroup(t, priv, Group{GroupID: ids.GxsGroupID{5}, Keys: KeySet{PublicAdmin: pub}})

	if err := s.PutGroup(g1, 10); err != nil {
		t.Fatalf("PutGroup g1: %v", err)
	}
	if err := s.PutGroup(g2, 20); err != nil {
		t.Fatalf("PutGroup g2: %v", err)
	}

	ids2, err := s.GroupsUpdatedSince(15)
	if err != nil {
		t.Fatalf("GroupsUpdatedSince: %v", err)
	}
	if len(ids2) != 1 || ids2[0] != g2.GroupID {
		t.Errorf("GroupsUpdatedSince(15) = %v, want only g2", ids2)
	}
}
