package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custodiad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9000"
ca:
  url: http://ca.internal:8080
  pubkey_file: /etc/custodia/ca.pem
service:
  privkey_file: /etc/custodia/service.pem
  privkey_password: hunter2
ledger:
  uid_prefix: ACCT_
  generation: v2
store:
  backend: localfs
  dir: /var/lib/custodia
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Equal(t, "http://ca.internal:8080", cfg.CA.URL)
	require.Equal(t, "ACCT_", cfg.Ledger.UIDPrefix)
	require.Equal(t, "v2", cfg.Ledger.Generation)
	require.Equal(t, BackendLocalFS, cfg.Store.Backend)
	require.Equal(t, "/var/lib/custodia", cfg.Store.Dir)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
ca:
  url: http://ca.internal:8080
  pubkey_file: /etc/custodia/ca.pem
service:
  privkey_file: /etc/custodia/service.pem
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.ListenAddr)
	require.Equal(t, "BANK_", cfg.Ledger.UIDPrefix)
	require.Equal(t, "v1", cfg.Ledger.Generation)
	require.Equal(t, BackendMem, cfg.Store.Backend)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.CA.URL = "http://ca"
		cfg.CA.PubkeyFile = "/ca.pem"
		cfg.Service.PrivkeyFile = "/svc.pem"
		return cfg
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Ledger.Generation = "v9"
	require.ErrorContains(t, cfg.Validate(), "generation")

	cfg = base()
	cfg.Store.Backend = "postgres"
	require.ErrorContains(t, cfg.Validate(), "store backend")

	cfg = base()
	cfg.Store.Backend = BackendLocalFS
	require.ErrorContains(t, cfg.Validate(), "store.dir")

	cfg = base()
	cfg.Store.Backend = BackendGRPC
	require.ErrorContains(t, cfg.Validate(), "store.target")

	cfg = base()
	cfg.CA.URL = ""
	require.ErrorContains(t, cfg.Validate(), "ca.url")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
