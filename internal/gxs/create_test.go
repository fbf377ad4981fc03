package gxs

import "testing"

func TestCreateGroupProducesVerifiableAdminSignature(t *testing.T) {
	g, keys, err := CreateGroup("my-group", PolicyPublishKeySigned)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if keys.AdminPrivate == nil || keys.PublishPrivate == nil {
		t.Fatal("expected both admin and publish keys under PolicyPublishKeySigned")
	}
	ok, err := VerifyGroupAdmin(g, CanonicalGroupBytes(g))
	if err != nil {
		t.Fatalf("VerifyGroupAdmin: %v", err)
	}
	if !ok {
		t.Error("admin signature did not verify")
	}
}

func TestCreateGroupIdentitySignedHasNoPublishKey(t *testing.T) {
	_, keys, err := CreateGroup("identity-group", PolicyIdentitySigned)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if keys.PublishPrivate != nil {
		t.Error("expected no publish key under PolicyIdentitySigned")
	}
}

func TestCreateMessageVerifiesUnderPublishKey(t *testing.T) {
	g, keys, err := CreateGroup("chan", PolicyPublishKeySigned)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	var author [16]byte
	author[0] = 0x42
	m, err := CreateMessage(g, author, keys.PublishPrivate, []byte("hello"))
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	ok, err := VerifyMessageAuthor(g, m, CanonicalMessageBytes(m), nil)
	if err != nil {
		t.Fatalf("VerifyMessageAuthor: %v", err)
	}
	if !ok {
		t.Error("message signature did not verify")
	}
	if m.MessageID == ([20]byte{}) {
		t.Error("CreateMessage left MessageID zero")
	}
}
