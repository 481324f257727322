package ledger

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-sh/custodia/keys"
)

func certFingerprint(t *testing.T, certPEM string) string {
	t.Helper()
	block, _ := pem.Decode([]byte(certPEM))
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

func TestParseGeneration(t *testing.T) {
	for name, want := range map[string]Generation{"v1": GenV1, "v2": GenV2} {
		got, err := ParseGeneration(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, name, got.String())
	}
	_, err := ParseGeneration("v3")
	require.Error(t, err)
}

func TestSignatureEncoding(t *testing.T) {
	require.Equal(t, keys.EncodingDER, GenV1.signatureEncoding())
	require.Equal(t, keys.EncodingP1363, GenV2.signatureEncoding())
}

func TestCanonicalMessages(t *testing.T) {
	require.Equal(t, "alice||PEM||42||POST:/login", loginMessageV1("alice", "PEM", 42))
	require.Equal(t, "42||BANK_alice||POST:/login", loginMessageV2("BANK_alice", 42))

	// The amount string is carried verbatim; "10.50" must not collapse to
	// "10.5" in the signed bytes.
	require.Equal(t, "a||b||10.50||note", transferMessage("a", "b", "10.50", "note"))
	require.Equal(t, "a||b||1||", transferMessage("a", "b", "1", ""))
}
