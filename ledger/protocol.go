package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-sh/custodia/keys"
)

// Generation selects the wire-protocol generation. Canonical message layouts
// and signature encodings differ between generations and are never unified;
// callers pick one explicitly.
type Generation int

const (
	// GenV1 registers accounts inline with the CA, verifies DER signatures,
	// and resolves login keys by CA lookup.
	GenV1 Generation = iota + 1
	// GenV2 binds accounts to stored certificates and verifies fixed-width
	// P1363 signatures against the stored certificate's key.
	GenV2
)

func (g Generation) String() string {
	switch g {
	case GenV1:
		return "v1"
	case GenV2:
		return "v2"
	default:
		return fmt.Sprintf("Generation(%d)", int(g))
	}
}

func ParseGeneration(name string) (Generation, error) {
	switch name {
	case "v1":
		return GenV1, nil
	case "v2":
		return GenV2, nil
	default:
		return 0, fmt.Errorf("ledger: unknown protocol generation %q", name)
	}
}

// signatureEncoding is the request-signature encoding of the generation.
func (g Generation) signatureEncoding() keys.Encoding {
	if g == GenV2 {
		return keys.EncodingP1363
	}
	return keys.EncodingDER
}

const delimiter = "||"

// loginMessageV1 is id||pubkey||timestamp||POST:/login. The presented public
// key is part of the signed bytes.
func loginMessageV1(id, pubkeyPEM string, timestamp int64) string {
	return strings.Join([]string{id, pubkeyPEM, strconv.FormatInt(timestamp, 10), "POST:/login"}, delimiter)
}

// loginMessageV2 is timestamp||uid||POST:/login, where uid carries the CA
// prefix.
func loginMessageV2(uid string, timestamp int64) string {
	return strings.Join([]string{strconv.FormatInt(timestamp, 10), uid, "POST:/login"}, delimiter)
}

// transferMessage is from||to||amount||comment in both generations. The
// amount is the string exactly as presented by the client; re-rendering the
// parsed decimal could change the signed bytes.
func transferMessage(from, to, amount, comment string) string {
	return strings.Join([]string{from, to, amount, comment}, delimiter)
}
