// Package catest provides an in-memory stand-in for the external certificate
// authority. It implements ca.Client and issues real ECDSA P-256 certificates
// signed by its root key, so verification paths run unmodified in tests.
package catest

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/custodia-sh/custodia/keys"
	"github.com/custodia-sh/custodia/model"
)

// Authority is a fake CA. The zero value is not usable; construct with New.
type Authority struct {
	Key *ecdsa.PrivateKey

	// RegisterErr, when set, makes Register fail with an UPSTREAM error
	// carrying this message (simulates a CA-side rejection).
	RegisterErr string

	mu      sync.Mutex
	pubkeys map[string]string // uid -> public key PEM
	revoked map[string]bool   // fingerprint hex -> revoked
	serial  int64
}

func New() *Authority {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("catest: generate CA key: %v", err))
	}
	return &Authority{
		Key:     key,
		pubkeys: make(map[string]string),
		revoked: make(map[string]bool),
	}
}

// PublicKeyPEM returns the root public key in the PKIX PEM form the trust
// anchor loads.
func (a *Authority) PublicKeyPEM() string {
	pemText, err := keys.EncodePublicKeyPEM(&a.Key.PublicKey)
	if err != nil {
		panic(fmt.Sprintf("catest: encode CA key: %v", err))
	}
	return pemText
}

// Issue creates a certificate binding uid (the subject common name) to pub,
// signed by the root key. Returns the PEM and the SHA-256 fingerprint hex.
func (a *Authority) Issue(uid string, pub *ecdsa.PublicKey) (certPEM, fingerprintHex string) {
	a.mu.Lock()
	a.serial++
	serial := a.serial
	a.mu.Unlock()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: uid},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	parent := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "catest root"},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, a.Key)
	if err != nil {
		panic(fmt.Sprintf("catest: create certificate: %v", err))
	}
	sum := sha256.Sum256(der)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})), hex.EncodeToString(sum[:])
}

// Revoke marks a fingerprint as revoked for subsequent CheckRevoked calls.
func (a *Authority) Revoke(fingerprintHex string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[fingerprintHex] = true
}

func (a *Authority) Register(ctx context.Context, uid, pubkeyPEM, signature string, timestamp int64) (string, error) {
	_ = ctx
	_ = signature
	_ = timestamp
	if a.RegisterErr != "" {
		return "", model.NewError(model.ErrUpstream, a.RegisterErr)
	}
	pub, err := keys.ParsePublicKeyPEM(pubkeyPEM)
	if err != nil {
		return "", model.Errorf(model.ErrUpstream, "catest: %v", err)
	}

	a.mu.Lock()
	if _, ok := a.pubkeys[uid]; ok {
		a.mu.Unlock()
		return "", model.Errorf(model.ErrUpstream, "uid %s already registered", uid)
	}
	a.pubkeys[uid] = pubkeyPEM
	a.mu.Unlock()

	certPEM, _ := a.Issue(uid, pub)
	return certPEM, nil
}

func (a *Authority) LookupPublicKey(ctx context.Context, uid string) (string, error) {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()
	pubkey, ok := a.pubkeys[uid]
	if !ok {
		return "", model.Errorf(model.ErrUpstream, "no such uid %s", uid)
	}
	return pubkey, nil
}

func (a *Authority) CheckRevoked(ctx context.Context, fingerprintHex string) (bool, error) {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revoked[fingerprintHex], nil
}
