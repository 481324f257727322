package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"math/big"
)

// Encoding selects the wire encoding of an ECDSA signature. The two forms
// belong to different protocol generations and are never unified.
type Encoding int

const (
	// EncodingDER is the variable-length ASN.1 encoding.
	EncodingDER Encoding = iota
	// EncodingP1363 is the fixed 64-byte big-endian r||s encoding
	// (32 bytes each half).
	EncodingP1363
)

const p1363Size = 64

// Verify reports whether sig is a valid ECDSA P-256/SHA-256 signature over
// message under the given encoding.
//
// Malformed signature bytes, a wrong curve, or a wrong length report false;
// Verify never returns an error. Callers rely on the boolean.
func Verify(message, sig []byte, pub *ecdsa.PublicKey, enc Encoding) bool {
	if pub == nil || pub.Curve != elliptic.P256() {
		return false
	}
	digest := sha256.Sum256(message)
	switch enc {
	case EncodingDER:
		return ecdsa.VerifyASN1(pub, digest[:], sig)
	case EncodingP1363:
		if len(sig) != p1363Size {
			return false
		}
		r := new(big.Int).SetBytes(sig[:p1363Size/2])
		s := new(big.Int).SetBytes(sig[p1363Size/2:])
		return ecdsa.Verify(pub, digest[:], r, s)
	default:
		return false
	}
}
