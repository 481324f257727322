// Package config loads and validates the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-sh/custodia/ledger"
)

// Store backends.
const (
	BackendMem     = "mem"
	BackendLocalFS = "localfs"
	BackendGRPC    = "grpc"
)

type Config struct {
	ListenAddr string  `yaml:"listen_addr"`
	CA         CA      `yaml:"ca"`
	Service    Service `yaml:"service"`
	Ledger     Ledger  `yaml:"ledger"`
	Store      Store   `yaml:"store"`
}

// CA points at the external certificate authority.
type CA struct {
	URL        string `yaml:"url"`
	PubkeyFile string `yaml:"pubkey_file"`
}

// Service holds the service signing identity. The private key file is
// password-protected PEM.
type Service struct {
	PrivkeyFile     string `yaml:"privkey_file"`
	PrivkeyPassword string `yaml:"privkey_password"`
}

type Ledger struct {
	UIDPrefix  string `yaml:"uid_prefix"`
	Generation string `yaml:"generation"`
}

// Store selects the account store backend. Dir applies to localfs, Target to
// grpc.
type Store struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Target  string `yaml:"target"`
}

func Default() *Config {
	return &Config{
		ListenAddr: ":8000",
		Ledger:     Ledger{UIDPrefix: "BANK_", Generation: "v1"},
		Store:      Store{Backend: BackendMem},
	}
}

// Load reads path into a Config with defaults applied, then validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	if c.CA.URL == "" {
		return fmt.Errorf("config: ca.url is required")
	}
	if c.CA.PubkeyFile == "" {
		return fmt.Errorf("config: ca.pubkey_file is required")
	}
	if c.Service.PrivkeyFile == "" {
		return fmt.Errorf("config: service.privkey_file is required")
	}
	if _, err := ledger.ParseGeneration(c.Ledger.Generation); err != nil {
		return fmt.Errorf("config: ledger.generation: %w", err)
	}

	switch c.Store.Backend {
	case BackendMem:
	case BackendLocalFS:
		if c.Store.Dir == "" {
			return fmt.Errorf("config: store.dir is required for the localfs backend")
		}
	case BackendGRPC:
		if c.Store.Target == "" {
			return fmt.Errorf("config: store.target is required for the grpc backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	return nil
}
