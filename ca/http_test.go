package ca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-sh/custodia/model"
)

func caHandler(t *testing.T, result int, extra map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{"result": result}
		for k, v := range extra {
			data[k] = v
		}
		if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestHTTPClient_Register(t *testing.T) {
	var gotUID, gotPubkey, gotSig string
	var gotTS int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/user" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotUID = r.URL.Query().Get("uid")
		var req struct {
			Sig struct {
				Sig       string `json:"sig"`
				Timestamp int64  `json:"timestamp"`
			} `json:"sig"`
			Pubkey string `json:"pubkey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotPubkey, gotSig, gotTS = req.Pubkey, req.Sig.Sig, req.Sig.Timestamp
		caHandler(t, 0, map[string]any{"cert": "CERTPEM"})(w, r)
	}))
	defer srv.Close()

	cert, err := NewHTTPClient(srv.URL).Register(context.Background(), "BANK_alice", "PUBPEM", "SIGB64", 1700000000)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if cert != "CERTPEM" {
		t.Fatalf("cert: got %q want %q", cert, "CERTPEM")
	}
	if gotUID != "BANK_alice" || gotPubkey != "PUBPEM" || gotSig != "SIGB64" || gotTS != 1700000000 {
		t.Fatalf("request fields: got %q %q %q %d", gotUID, gotPubkey, gotSig, gotTS)
	}
}

func TestHTTPClient_RegisterRejected(t *testing.T) {
	srv := httptest.NewServer(caHandler(t, 1, map[string]any{"msg": "uid already registered"}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).Register(context.Background(), "BANK_alice", "PUBPEM", "SIGB64", 0)
	if !model.IsCode(err, model.ErrUpstream) {
		t.Fatalf("expected UPSTREAM error, got %v", err)
	}
	if err.Error() != "UPSTREAM: uid already registered" {
		t.Fatalf("rejection message not verbatim: %v", err)
	}
}

func TestHTTPClient_LookupPublicKey(t *testing.T) {
	srv := httptest.NewServer(caHandler(t, 0, map[string]any{
		"users": []map[string]any{{"pubkey": "PUBPEM"}},
	}))
	defer srv.Close()

	pub, err := NewHTTPClient(srv.URL).LookupPublicKey(context.Background(), "BANK_alice")
	if err != nil {
		t.Fatalf("LookupPublicKey: %v", err)
	}
	if pub != "PUBPEM" {
		t.Fatalf("pubkey: got %q want %q", pub, "PUBPEM")
	}
}

func TestHTTPClient_LookupUnknownUID(t *testing.T) {
	srv := httptest.NewServer(caHandler(t, 2, map[string]any{"msg": "no such uid"}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).LookupPublicKey(context.Background(), "BANK_ghost")
	if !model.IsCode(err, model.ErrUpstream) {
		t.Fatalf("expected UPSTREAM error, got %v", err)
	}
}

// The CA reports its success code (result 0) when the fingerprint is in the
// revocation list, so result 0 means revoked.
func TestHTTPClient_CheckRevokedResultSemantics(t *testing.T) {
	for _, tc := range []struct {
		result  int
		revoked bool
	}{
		{result: 0, revoked: true},
		{result: 1, revoked: false},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/revoke/check" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.URL.Query().Get("digest") != "deadbeef" {
				t.Errorf("digest: got %q", r.URL.Query().Get("digest"))
			}
			caHandler(t, tc.result, nil)(w, r)
		}))
		revoked, err := NewHTTPClient(srv.URL).CheckRevoked(context.Background(), "deadbeef")
		srv.Close()
		if err != nil {
			t.Fatalf("CheckRevoked (result=%d): %v", tc.result, err)
		}
		if revoked != tc.revoked {
			t.Fatalf("CheckRevoked (result=%d): got %v want %v", tc.result, revoked, tc.revoked)
		}
	}
}

func TestHTTPClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := NewHTTPClient(srv.URL).LookupPublicKey(context.Background(), "BANK_alice")
	if !model.IsCode(err, model.ErrUpstream) {
		t.Fatalf("expected UPSTREAM error, got %v", err)
	}
}

func TestHTTPClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).CheckRevoked(context.Background(), "deadbeef")
	if !model.IsCode(err, model.ErrUpstream) {
		t.Fatalf("expected UPSTREAM error, got %v", err)
	}
}
