// Package envelope wraps API response payloads in a service-signed envelope,
// so clients can pin the service key and detect tampering in transit.
package envelope

import (
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/custodia-sh/custodia/keys"
)

// Envelope is the signed response wrapper. Sig is a base64 DER ECDSA
// P-256/SHA-256 signature over the canonical form of Data: object keys sorted
// lexicographically, ", " between items, ": " after each key, non-ASCII
// escaped. See canonicalJSON.
type Envelope struct {
	Data map[string]any `json:"data"`
	Sig  string         `json:"sig"`
}

// Signer produces envelopes with the service key. Now is overridable for
// tests; nil means time.Now.
type Signer struct {
	Key *ecdsa.PrivateKey
	Now func() time.Time
}

// Wrap copies data, stamps it with the current time in milliseconds under the
// "timestamp" key, and signs the canonical form.
func (s *Signer) Wrap(data map[string]any) (*Envelope, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	stamped := make(map[string]any, len(data)+1)
	for k, v := range data {
		stamped[k] = v
	}
	stamped["timestamp"] = now().UnixMilli()

	canonical, err := canonicalJSON(stamped)
	if err != nil {
		return nil, err
	}
	sig, err := keys.SignDER(canonical, s.Key)
	if err != nil {
		return nil, fmt.Errorf("envelope: sign: %w", err)
	}
	return &Envelope{
		Data: stamped,
		Sig:  base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Verify re-canonicalizes env.Data and checks the signature against pub.
func Verify(env *Envelope, pub *ecdsa.PublicKey) bool {
	if env == nil {
		return false
	}
	canonical, err := canonicalJSON(env.Data)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(env.Sig)
	if err != nil {
		return false
	}
	return keys.Verify(canonical, sig, pub, keys.EncodingDER)
}
