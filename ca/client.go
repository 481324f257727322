package ca

import "context"

// Client is the boundary to the external certificate authority.
//
// Contract:
// - Every call is a single network round-trip: no retries, no timeout policy.
// - Transport failures surface to the caller unmodified as UPSTREAM errors.
// - A non-zero CA result code becomes an UPSTREAM error carrying the CA's
//   message verbatim.
type Client interface {
	// Register submits uid, a PKIX public key PEM, and a signature proving
	// possession of the matching private key. The CA decides validity and
	// returns the issued certificate PEM. Not idempotent: registering the
	// same uid twice yields a CA-side failure or a second certificate, so
	// callers must check local existence first.
	Register(ctx context.Context, uid, pubkeyPEM, signature string, timestamp int64) (string, error)

	// LookupPublicKey returns the public key PEM the CA holds for uid.
	LookupPublicKey(ctx context.Context, uid string) (string, error)

	// CheckRevoked reports whether the certificate with the given SHA-256
	// fingerprint (lowercase hex) has been revoked.
	CheckRevoked(ctx context.Context, fingerprintHex string) (bool, error)
}
