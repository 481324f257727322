package ca

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/custodia-sh/custodia/model"
)

// HTTPClient speaks the CA's HTTP/JSON protocol.
//
// Responses arrive wrapped as {"data": {"result": <code>, ...}} where result
// zero is the CA's success code.
type HTTPClient struct {
	BaseURL string

	// Client defaults to http.DefaultClient. The protocol defines no timeout
	// policy; deployments wanting one set it here.
	Client *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{BaseURL: baseURL}
}

type caEnvelope struct {
	Data caResult `json:"data"`
}

type caResult struct {
	Result int      `json:"result"`
	Msg    string   `json:"msg"`
	Cert   string   `json:"cert"`
	Users  []caUser `json:"users"`
}

type caUser struct {
	Pubkey string `json:"pubkey"`
}

type registerRequest struct {
	Sig    registerSig `json:"sig"`
	Pubkey string      `json:"pubkey"`
}

type registerSig struct {
	Sig       string `json:"sig"`
	Timestamp int64  `json:"timestamp"`
}

func (c *HTTPClient) Register(ctx context.Context, uid, pubkeyPEM, signature string, timestamp int64) (string, error) {
	body, err := json.Marshal(registerRequest{
		Sig:    registerSig{Sig: signature, Timestamp: timestamp},
		Pubkey: pubkeyPEM,
	})
	if err != nil {
		return "", model.Errorf(model.ErrUpstream, "ca: encode register request: %v", err)
	}
	res, err := c.do(ctx, http.MethodPost, "/user", url.Values{"uid": {uid}}, body)
	if err != nil {
		return "", err
	}
	if res.Result != 0 {
		return "", model.NewError(model.ErrUpstream, res.Msg)
	}
	return res.Cert, nil
}

func (c *HTTPClient) LookupPublicKey(ctx context.Context, uid string) (string, error) {
	res, err := c.do(ctx, http.MethodGet, "/user", url.Values{"uid": {uid}}, nil)
	if err != nil {
		return "", err
	}
	if res.Result != 0 {
		return "", model.NewError(model.ErrUpstream, res.Msg)
	}
	if len(res.Users) == 0 {
		return "", model.Errorf(model.ErrUpstream, "ca: no key registered for %s", uid)
	}
	return res.Users[0].Pubkey, nil
}

// CheckRevoked queries the revocation list by fingerprint. The CA answers
// with its success code (result zero) when the fingerprint is present, so
// result zero means revoked.
func (c *HTTPClient) CheckRevoked(ctx context.Context, fingerprintHex string) (bool, error) {
	res, err := c.do(ctx, http.MethodGet, "/revoke/check", url.Values{"digest": {fingerprintHex}}, nil)
	if err != nil {
		return false, err
	}
	return res.Result == 0, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (*caResult, error) {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, model.Errorf(model.ErrUpstream, "ca: build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.Errorf(model.ErrUpstream, "ca: %v", err)
	}
	defer resp.Body.Close()

	var env caEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, model.Errorf(model.ErrUpstream, "ca: decode response: %v", err)
	}
	return &env.Data, nil
}
