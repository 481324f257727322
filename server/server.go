// Package server exposes the ledger over HTTP.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/custodia-sh/custodia/envelope"
	"github.com/custodia-sh/custodia/ledger"
	"github.com/custodia-sh/custodia/model"
)

// Server routes HTTP requests into the ledger engine. Signer is optional;
// when set and the generation is v2, response payloads are wrapped in a
// service-signed envelope.
type Server struct {
	Engine *ledger.Engine
	Signer *envelope.Signer
	Gen    ledger.Generation
	Log    *zap.Logger
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/balance/update", s.handleBalanceUpdate)
	r.Post("/order", s.handleOrder)
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

type registerRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Pubkey      string `json:"pubkey"`
	Signature   string `json:"signature"`
	Timestamp   int64  `json:"timestamp"`
	Certificate string `json:"certificate"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	cert, err := s.Engine.CreateAccount(r.Context(), req.ID, req.Name, ledger.CreateParams{
		PubkeyPEM:   req.Pubkey,
		Signature:   req.Signature,
		Timestamp:   req.Timestamp,
		Certificate: req.Certificate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, r, map[string]any{"certificate": cert})
}

type loginRequest struct {
	ID        string `json:"id"`
	Pubkey    string `json:"pubkey"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		s.writeError(w, r, model.NewError(model.ErrValidation, "signature is not valid base64"))
		return
	}
	if err := s.Engine.CheckLogin(r.Context(), req.ID, ledger.LoginParams{
		PubkeyPEM: req.Pubkey,
		Signature: sig,
		Timestamp: req.Timestamp,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, r, map[string]any{"id": req.ID})
}

type balanceUpdateRequest struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

func (s *Server) handleBalanceUpdate(w http.ResponseWriter, r *http.Request) {
	var req balanceUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		s.writeError(w, r, model.NewError(model.ErrValidation, "invalid delta"))
		return
	}
	if err := s.Engine.AdjustBalance(r.Context(), req.ID, delta); err != nil {
		s.writeError(w, r, err)
		return
	}
	acct, err := s.Engine.GetAccount(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, r, map[string]any{"id": acct.ID, "balance": acct.Balance.String()})
}

type orderRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Comment     string `json:"comment"`
	Signature   string `json:"signature"`
	Certificate string `json:"certificate"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		s.writeError(w, r, model.NewError(model.ErrValidation, "signature is not valid base64"))
		return
	}
	if err := s.Engine.Transfer(r.Context(), ledger.TransferParams{
		From:        req.From,
		To:          req.To,
		Amount:      req.Amount,
		Comment:     req.Comment,
		Signature:   sig,
		Certificate: req.Certificate,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, r, map[string]any{"from": req.From, "to": req.To, "amount": req.Amount})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, model.NewError(model.ErrValidation, "malformed request body"))
		return false
	}
	return true
}

// writeData renders a success payload. Under GenV2 with a signer configured,
// the payload goes out wrapped in a signed envelope.
func (s *Server) writeData(w http.ResponseWriter, r *http.Request, data map[string]any) {
	data["success"] = true
	if s.Gen == ledger.GenV2 && s.Signer != nil {
		env, err := s.Signer.Wrap(data)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, env)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

// writeError maps coded errors to 400 and everything else to 500. Internal
// error details never reach the client on the 500 path.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *model.CodedError
	if errors.As(err, &coded) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": coded.Error(),
		})
		return
	}
	s.logger().Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	s.writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"message": "internal error",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger().Error("write response", zap.Error(err))
	}
}
