package trust

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/custodia-sh/custodia/internal/catest"
)

func subjectKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return priv
}

func anchorFor(t *testing.T, authority *catest.Authority) *Anchor {
	t.Helper()
	a := &Anchor{CAKey: &authority.Key.PublicKey}
	return a
}

func TestVerify_Valid(t *testing.T) {
	authority := catest.New()
	v := NewVerifier(anchorFor(t, authority), authority)

	subject := subjectKey(t)
	certPEM, _ := authority.Issue("BANK_alice", &subject.PublicKey)

	pub, cn, err := v.Verify(context.Background(), certPEM)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cn != "BANK_alice" {
		t.Fatalf("common name: got %q want %q", cn, "BANK_alice")
	}
	if !pub.Equal(&subject.PublicKey) {
		t.Fatalf("embedded key differs from subject key")
	}
}

func TestVerify_MalformedPEM(t *testing.T) {
	authority := catest.New()
	v := NewVerifier(anchorFor(t, authority), authority)

	for _, in := range []string{"", "garbage", "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"} {
		_, _, err := v.Verify(context.Background(), in)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("Verify(%q): got %v want ErrParse", in, err)
		}
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	authority := catest.New()
	imposter := catest.New()
	// Anchor trusts authority; the certificate comes from imposter.
	v := NewVerifier(anchorFor(t, authority), authority)

	subject := subjectKey(t)
	certPEM, _ := imposter.Issue("BANK_alice", &subject.PublicKey)

	_, _, err := v.Verify(context.Background(), certPEM)
	if !errors.Is(err, ErrCertSignature) {
		t.Fatalf("Verify: got %v want ErrCertSignature", err)
	}
}

// Revocation must be consulted on every call: a certificate that verified
// once fails as soon as its fingerprint lands on the revocation list.
func TestVerify_RevocationCheckedEveryCall(t *testing.T) {
	authority := catest.New()
	v := NewVerifier(anchorFor(t, authority), authority)

	subject := subjectKey(t)
	certPEM, fingerprint := authority.Issue("BANK_alice", &subject.PublicKey)

	if _, _, err := v.Verify(context.Background(), certPEM); err != nil {
		t.Fatalf("Verify before revocation: %v", err)
	}

	authority.Revoke(fingerprint)

	for i := 0; i < 3; i++ {
		_, _, err := v.Verify(context.Background(), certPEM)
		if !errors.Is(err, ErrRevoked) {
			t.Fatalf("Verify after revocation (call %d): got %v want ErrRevoked", i+1, err)
		}
	}
}
