// Package keys provides the ECDSA P-256/SHA-256 primitives the protocol is
// pinned to: PEM parsing, signing, signature verification across the two wire
// encodings (ASN.1 DER and fixed-width IEEE P1363), and the PBKDF2-derived
// keystream layer protecting the service signing key on disk.
package keys
