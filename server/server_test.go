package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/custodia-sh/custodia/envelope"
	"github.com/custodia-sh/custodia/internal/catest"
	"github.com/custodia-sh/custodia/keys"
	"github.com/custodia-sh/custodia/ledger"
	"github.com/custodia-sh/custodia/store/memstore"
	"github.com/custodia-sh/custodia/trust"
)

type harness struct {
	ts   *httptest.Server
	auth *catest.Authority
	eng  *ledger.Engine
	gen  ledger.Generation
	svc  *ecdsa.PrivateKey
}

func newHarness(t *testing.T, gen ledger.Generation) *harness {
	t.Helper()
	auth := catest.New()
	anchor := &trust.Anchor{CAKey: &auth.Key.PublicKey}
	eng := ledger.NewEngine(memstore.New(), auth, trust.NewVerifier(anchor, auth), gen, "BANK_", nil)

	svc, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	srv := &Server{
		Engine: eng,
		Signer: &envelope.Signer{Key: svc},
		Gen:    gen,
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &harness{ts: ts, auth: auth, eng: eng, gen: gen, svc: svc}
}

func (h *harness) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.ts.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// newAccount registers an account directly through the engine and funds it.
func (h *harness) newAccount(t *testing.T, id, balance string) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	var proof ledger.CreateParams
	if h.gen == ledger.GenV2 {
		certPEM, _ := h.auth.Issue("BANK_"+id, &priv.PublicKey)
		proof.Certificate = certPEM
	} else {
		pubPEM, err := keys.EncodePublicKeyPEM(&priv.PublicKey)
		require.NoError(t, err)
		proof.PubkeyPEM = pubPEM
	}
	_, err = h.eng.CreateAccount(context.Background(), id, id, proof)
	require.NoError(t, err)

	if balance != "" {
		amt, err := decimal.NewFromString(balance)
		require.NoError(t, err)
		require.NoError(t, h.eng.AdjustBalance(context.Background(), id, amt))
	}
	return priv
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, ledger.GenV1)
	resp, err := http.Get(h.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister_V1(t *testing.T) {
	h := newHarness(t, ledger.GenV1)
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pubPEM, err := keys.EncodePublicKeyPEM(&priv.PublicKey)
	require.NoError(t, err)

	status, body := h.post(t, "/register", map[string]any{
		"id": "alice", "name": "Alice", "pubkey": pubPEM,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	cert, _ := body["certificate"].(string)
	require.True(t, strings.Contains(cert, "BEGIN CERTIFICATE"))

	// Duplicate registration is rejected and reported as a client error.
	status, body = h.post(t, "/register", map[string]any{
		"id": "alice", "name": "Alice", "pubkey": pubPEM,
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, body["success"])
}

func TestLogin_V1(t *testing.T) {
	h := newHarness(t, ledger.GenV1)
	priv := h.newAccount(t, "alice", "")
	pubPEM, err := keys.EncodePublicKeyPEM(&priv.PublicKey)
	require.NoError(t, err)

	ts := int64(1700000000)
	sig, err := keys.SignDER([]byte("alice||"+pubPEM+"||1700000000||POST:/login"), priv)
	require.NoError(t, err)

	status, body := h.post(t, "/login", map[string]any{
		"id": "alice", "pubkey": pubPEM,
		"signature": base64.StdEncoding.EncodeToString(sig),
		"timestamp": ts,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])

	status, _ = h.post(t, "/login", map[string]any{
		"id": "alice", "pubkey": pubPEM,
		"signature": "not base64!",
		"timestamp": ts,
	})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestBalanceUpdate(t *testing.T) {
	h := newHarness(t, ledger.GenV1)
	h.newAccount(t, "alice", "")

	status, body := h.post(t, "/balance/update", map[string]any{"id": "alice", "delta": "10.50"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "10.5", body["balance"])

	status, body = h.post(t, "/balance/update", map[string]any{"id": "alice", "delta": "abc"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, body["success"])

	status, _ = h.post(t, "/balance/update", map[string]any{"id": "ghost", "delta": "1"})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestOrder_V2_EnvelopedResponse(t *testing.T) {
	h := newHarness(t, ledger.GenV2)
	alicePriv := h.newAccount(t, "alice", "10")
	h.newAccount(t, "bob", "")

	sig, err := keys.SignP1363([]byte("alice||bob||3||dinner"), alicePriv)
	require.NoError(t, err)

	status, body := h.post(t, "/order", map[string]any{
		"from": "alice", "to": "bob", "amount": "3", "comment": "dinner",
		"signature": base64.StdEncoding.EncodeToString(sig),
	})
	require.Equal(t, http.StatusOK, status)

	// v2 success responses come wrapped in a service-signed envelope.
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.True(t, envelope.Verify(&env, &h.svc.PublicKey))
	require.Equal(t, true, env.Data["success"])
	require.Equal(t, "3", env.Data["amount"])

	acct, err := h.eng.GetAccount(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, "3", acct.Balance.String())
}

func TestOrder_ErrorPaths(t *testing.T) {
	h := newHarness(t, ledger.GenV2)
	alicePriv := h.newAccount(t, "alice", "5")
	h.newAccount(t, "bob", "")

	sign := func(from, to, amount, comment string) string {
		msg := from + "||" + to + "||" + amount + "||" + comment
		sig, err := keys.SignP1363([]byte(msg), alicePriv)
		require.NoError(t, err)
		return base64.StdEncoding.EncodeToString(sig)
	}

	// Insufficient funds.
	status, _ := h.post(t, "/order", map[string]any{
		"from": "alice", "to": "bob", "amount": "100",
		"signature": sign("alice", "bob", "100", ""),
	})
	require.Equal(t, http.StatusBadRequest, status)

	// Signature over different bytes than the order.
	status, _ = h.post(t, "/order", map[string]any{
		"from": "alice", "to": "bob", "amount": "2",
		"signature": sign("alice", "bob", "1", ""),
	})
	require.Equal(t, http.StatusBadRequest, status)

	// Malformed body.
	resp, err := http.Post(h.ts.URL+"/order", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	acct, err := h.eng.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "5", acct.Balance.String())
}
