package trust

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/custodia-sh/custodia/keys"
)

// Anchor is the process-wide trust material: the CA root public key every
// certificate must chain to, and the service's own signing key used to
// countersign outward responses.
//
// Immutable after load: constructed once at startup and passed by reference.
type Anchor struct {
	CAKey      *ecdsa.PublicKey
	ServiceKey *ecdsa.PrivateKey
}

// LoadAnchor reads the CA public key PEM and the keystream-protected service
// private key PEM from disk.
func LoadAnchor(caKeyPath, serviceKeyPath, serviceKeyPassword string) (*Anchor, error) {
	caPEM, err := os.ReadFile(caKeyPath)
	if err != nil {
		return nil, fmt.Errorf("trust: read CA key: %w", err)
	}
	caKey, err := keys.ParsePublicKeyPEM(string(caPEM))
	if err != nil {
		return nil, fmt.Errorf("trust: CA key: %w", err)
	}

	encPEM, err := os.ReadFile(serviceKeyPath)
	if err != nil {
		return nil, fmt.Errorf("trust: read service key: %w", err)
	}
	plain, err := keys.DecryptPEM(string(encPEM), serviceKeyPassword)
	if err != nil {
		return nil, fmt.Errorf("trust: service key: %w", err)
	}
	serviceKey, err := keys.ParsePrivateKeyPEM(plain)
	if err != nil {
		return nil, fmt.Errorf("trust: service key: %w", err)
	}

	return &Anchor{CAKey: caKey, ServiceKey: serviceKey}, nil
}
