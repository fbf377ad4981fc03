package rscore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/rs-go/retroshare-node/internal/transport"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

const identityKeyBits = 2048

// LoadOrCreateIdentity loads the node's TLS identity from keyringDir,
// generating a fresh RSA key and self-signed certificate on first run.
// The resulting PeerID is derived from the public key's SHA-256 digest,
// truncated to 16 bytes, standing in for the PGP-fingerprint-derived id
// the real protocol uses (§1 scope: PGP keyring management is an external
// collaborator's job; this node only needs a stable identifier and a
// certificate transport.Dial/ListenAndServe can present).
func LoadOrCreateIdentity(keyringDir string) (transport.Identity, ids.PeerID, error) {
	certPath := filepath.Join(keyringDir, "node.crt")
	keyPath := filepath.Join(keyringDir, "node.key")

	if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil {
		peerID, derr := peerIDFromCert(cert)
		if derr != nil {
			return transport.Identity{}, ids.PeerID{}, derr
		}
		return transport.Identity{Cert: cert}, peerID, nil
	}

	cert, der, priv, err := generateSelfSigned()
	if err != nil {
		return transport.Identity{}, ids.PeerID{}, err
	}
	if err := os.MkdirAll(keyringDir, 0700); err != nil {
		return transport.Identity{}, ids.PeerID{}, err
	}
	if err := writePEM(certPath, "CERTIFICATE", der); err != nil {
		return transport.Identity{}, ids.PeerID{}, err
	}
	if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv)); err != nil {
		return transport.Identity{}, ids.PeerID{}, err
	}

	peerID, err := peerIDFromCert(cert)
	if err != nil {
		return transport.Identity{}, ids.PeerID{}, err
	}
	return transport.Identity{Cert: cert}, peerID, nil
}

func generateSelfSigned() (tls.Certificate, []byte, *rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, identityKeyBits)
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "retroshare-node"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, nil, nil, err
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
	return cert, der, priv, nil
}

func peerIDFromCert(cert tls.Certificate) (ids.PeerID, error) {
	leaf := cert.Leaf
	if leaf == nil {
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return ids.PeerID{}, err
		}
		leaf = parsed
	}
	return peerIDFromSubjectKeyInfo(leaf.RawSubjectPublicKeyInfo), nil
}

func peerIDFromSubjectKeyInfo(raw []byte) ids.PeerID {
	digest := sha256.Sum256(raw)
	var id ids.PeerID
	copy(id[:], digest[:16])
	return id
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}
