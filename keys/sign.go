package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

// SignDER signs message with ECDSA P-256/SHA-256 and returns the ASN.1 DER
// encoding.
func SignDER(message []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("keys: missing private key")
	}
	digest := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, priv, digest[:])
}

// SignP1363 signs message and returns the fixed 64-byte big-endian r||s
// encoding.
func SignP1363(message []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("keys: missing private key")
	}
	digest := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, err
	}
	sig := make([]byte, p1363Size)
	r.FillBytes(sig[:p1363Size/2])
	s.FillBytes(sig[p1363Size/2:])
	return sig, nil
}
