package trust

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/custodia-sh/custodia/ca"
	"github.com/custodia-sh/custodia/keys"
)

var (
	ErrParse         = errors.New("trust: malformed certificate")
	ErrCertSignature = errors.New("trust: certificate not signed by trust anchor")
	ErrRevoked       = errors.New("trust: certificate revoked")
)

// Verifier validates CA-issued certificates against the trust anchor.
//
// Revocation is checked on every Verify call; there is no local cache. The
// extra round-trip buys freshness: a certificate revoked upstream fails here
// on the very next call.
type Verifier struct {
	anchor *Anchor
	ca     ca.Client
}

func NewVerifier(anchor *Anchor, caClient ca.Client) *Verifier {
	return &Verifier{anchor: anchor, ca: caClient}
}

// Verify parses certPEM, checks the certificate's signed body against the
// anchor CA key (ECDSA P-256/SHA-256), checks revocation by SHA-256
// fingerprint, and returns the embedded public key and subject common name.
func (v *Verifier) Verify(ctx context.Context, certPEM string) (*ecdsa.PublicKey, string, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, "", ErrParse
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	if !keys.Verify(cert.RawTBSCertificate, cert.Signature, v.anchor.CAKey, keys.EncodingDER) {
		return nil, "", ErrCertSignature
	}

	sum := sha256.Sum256(cert.Raw)
	revoked, err := v.ca.CheckRevoked(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return nil, "", err
	}
	if revoked {
		return nil, "", ErrRevoked
	}

	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, "", fmt.Errorf("%w: certificate key is not ECDSA P-256", ErrParse)
	}
	return pub, cert.Subject.CommonName, nil
}
