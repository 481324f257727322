package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/custodia-sh/custodia/ca"
	"github.com/custodia-sh/custodia/keys"
	"github.com/custodia-sh/custodia/model"
	"github.com/custodia-sh/custodia/store"
	"github.com/custodia-sh/custodia/trust"
)

// Engine serializes all balance mutations through mu. The guarded regions
// are kept minimal: existence-check-and-insert for creation, and
// read-check-apply for balance changes. Everything involving the CA or
// signature verification happens before the lock is taken.
type Engine struct {
	mu sync.Mutex

	store    store.Store
	ca       ca.Client
	verifier *trust.Verifier
	gen      Generation
	prefix   string
	log      *zap.Logger
}

func NewEngine(st store.Store, caClient ca.Client, verifier *trust.Verifier, gen Generation, uidPrefix string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    st,
		ca:       caClient,
		verifier: verifier,
		gen:      gen,
		prefix:   uidPrefix,
		log:      logger,
	}
}

// CreateParams carries the identity proof for account creation. GenV1 uses
// PubkeyPEM/Signature/Timestamp, forwarded verbatim to the CA; GenV2 uses
// Certificate, a CA-issued PEM whose common name must match the account.
type CreateParams struct {
	PubkeyPEM   string
	Signature   string
	Timestamp   int64
	Certificate string
}

// CreateAccount registers an account with balance zero and returns the
// certificate PEM issued (GenV1) or accepted (GenV2).
//
// The CA round-trip runs outside the guard, so creation is not idempotent
// against the CA: if the insert loses the race, the CA may already hold a
// registration for the uid. The CA reports that on the retry; locally the
// second attempt fails with CONFLICT either way.
func (e *Engine) CreateAccount(ctx context.Context, id, name string, proof CreateParams) (string, error) {
	if id == "" {
		return "", model.NewError(model.ErrValidation, "account id is required")
	}
	if name == "" {
		return "", model.NewError(model.ErrValidation, "account name is required")
	}

	// Cheap duplicate pre-check; the authoritative one runs under the guard.
	exists, err := e.store.Exists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("ledger: check account %s: %w", id, err)
	}
	if exists {
		return "", model.NewError(model.ErrConflict, "account already exists")
	}

	var cert string
	var persistCert string
	switch e.gen {
	case GenV1:
		cert, err = e.ca.Register(ctx, e.prefix+id, proof.PubkeyPEM, proof.Signature, proof.Timestamp)
		if err != nil {
			return "", err
		}
		// V1 hands the certificate back to the client; the account record
		// stays certificate-free and keys are resolved through the CA.
	case GenV2:
		_, subject, verr := e.verifier.Verify(ctx, proof.Certificate)
		if verr != nil {
			return "", authError(verr)
		}
		if subject != e.prefix+id {
			return "", model.NewError(model.ErrAuthentication, "certificate not issued to this account")
		}
		cert = proof.Certificate
		persistCert = proof.Certificate
	default:
		return "", fmt.Errorf("ledger: unsupported generation %s", e.gen)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	exists, err = e.store.Exists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("ledger: check account %s: %w", id, err)
	}
	if exists {
		return "", model.NewError(model.ErrConflict, "account already exists")
	}
	acct := &model.Account{ID: id, Name: name, Balance: decimal.Zero, Certificate: persistCert}
	if err := e.store.Put(ctx, acct); err != nil {
		return "", fmt.Errorf("ledger: persist account %s: %w", id, err)
	}

	e.log.Info("account created",
		zap.String("id", id),
		zap.String("generation", e.gen.String()))
	return cert, nil
}

// LoginParams carries a signed login challenge. PubkeyPEM is only consulted
// by GenV1, where the presented key is part of the canonical message.
type LoginParams struct {
	PubkeyPEM string
	Signature []byte
	Timestamp int64
}

// CheckLogin verifies a signed login challenge. The timestamp is part of the
// signed bytes but is not checked for freshness; no generation of the
// protocol enforces a replay window.
func (e *Engine) CheckLogin(ctx context.Context, id string, p LoginParams) error {
	switch e.gen {
	case GenV1:
		pub, err := keys.ParsePublicKeyPEM(p.PubkeyPEM)
		if err != nil {
			return model.NewError(model.ErrAuthentication, "invalid public key")
		}
		msg := loginMessageV1(id, p.PubkeyPEM, p.Timestamp)
		if !keys.Verify([]byte(msg), p.Signature, pub, e.gen.signatureEncoding()) {
			return model.NewError(model.ErrAuthentication, "invalid signature")
		}
		// The presented key must be the one the CA bound to the identity.
		registered, err := e.ca.LookupPublicKey(ctx, e.prefix+id)
		if err != nil {
			return err
		}
		if registered != p.PubkeyPEM {
			return model.NewError(model.ErrAuthentication, "public key does not match CA record")
		}
		return nil

	case GenV2:
		acct, err := e.store.Get(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				return model.NewError(model.ErrNotFound, "account not found")
			}
			return fmt.Errorf("ledger: load account %s: %w", id, err)
		}
		if acct.Certificate == "" {
			return model.NewError(model.ErrAuthentication, "account has no certificate")
		}
		pub, _, err := e.verifier.Verify(ctx, acct.Certificate)
		if err != nil {
			return authError(err)
		}
		msg := loginMessageV2(e.prefix+id, p.Timestamp)
		if !keys.Verify([]byte(msg), p.Signature, pub, e.gen.signatureEncoding()) {
			return model.NewError(model.ErrAuthentication, "invalid signature")
		}
		return nil

	default:
		return fmt.Errorf("ledger: unsupported generation %s", e.gen)
	}
}

// AdjustBalance applies balance += delta under the guard. There is no lower
// bound here: a withdrawal delta may drive the balance negative. Only
// Transfer checks sufficiency.
func (e *Engine) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	exists, err := e.store.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("ledger: check account %s: %w", id, err)
	}
	if !exists {
		return model.NewError(model.ErrNotFound, "account not found")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.store.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return model.NewError(model.ErrNotFound, "account not found")
		}
		return fmt.Errorf("ledger: load account %s: %w", id, err)
	}
	acct.Balance = acct.Balance.Add(delta)
	if err := e.store.Put(ctx, acct); err != nil {
		return fmt.Errorf("ledger: persist account %s: %w", id, err)
	}

	e.log.Info("balance adjusted",
		zap.String("id", id),
		zap.String("delta", delta.String()),
		zap.String("balance", acct.Balance.String()))
	return nil
}

// GetAccount returns a snapshot of the account.
func (e *Engine) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	acct, err := e.store.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, model.NewError(model.ErrNotFound, "account not found")
		}
		return nil, fmt.Errorf("ledger: load account %s: %w", id, err)
	}
	return acct, nil
}

// TransferParams is a signed transfer order. Certificate is the payer's
// certificate as presented with the request (GenV1); GenV2 ignores it and
// uses the certificate stored on the payer's account.
type TransferParams struct {
	From        string
	To          string
	Amount      string
	Comment     string
	Signature   []byte
	Certificate string
}

// Transfer moves amount from payer to receiver. The debit and credit are
// committed through a single store.Apply batch, so a crash can never retire
// the debit without the credit.
func (e *Engine) Transfer(ctx context.Context, p TransferParams) error {
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return model.NewError(model.ErrValidation, "invalid amount")
	}
	if !amount.IsPositive() {
		return model.NewError(model.ErrValidation, "amount must be positive")
	}

	for _, id := range []string{p.From, p.To} {
		exists, err := e.store.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("ledger: check account %s: %w", id, err)
		}
		if !exists {
			return model.NewError(model.ErrNotFound, "account not found")
		}
	}
	if p.From == p.To {
		return model.NewError(model.ErrConflict, "cannot transfer to self")
	}

	payerKey, err := e.payerKey(ctx, p)
	if err != nil {
		return err
	}
	msg := transferMessage(p.From, p.To, p.Amount, p.Comment)
	if !keys.Verify([]byte(msg), p.Signature, payerKey, e.gen.signatureEncoding()) {
		return model.NewError(model.ErrAuthentication, "invalid signature")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	payer, err := e.store.Get(ctx, p.From)
	if err != nil {
		if store.IsNotFound(err) {
			return model.NewError(model.ErrNotFound, "account not found")
		}
		return fmt.Errorf("ledger: load account %s: %w", p.From, err)
	}
	receiver, err := e.store.Get(ctx, p.To)
	if err != nil {
		if store.IsNotFound(err) {
			return model.NewError(model.ErrNotFound, "account not found")
		}
		return fmt.Errorf("ledger: load account %s: %w", p.To, err)
	}
	if payer.Balance.LessThan(amount) {
		return model.NewError(model.ErrInsufficientFunds, "payer balance insufficient")
	}

	payer.Balance = payer.Balance.Sub(amount)
	receiver.Balance = receiver.Balance.Add(amount)
	if err := e.store.Apply(ctx, []*model.Account{payer, receiver}); err != nil {
		return fmt.Errorf("ledger: apply transfer %s -> %s: %w", p.From, p.To, err)
	}

	e.log.Info("transfer applied",
		zap.String("from", p.From),
		zap.String("to", p.To),
		zap.String("amount", amount.String()))
	return nil
}

// payerKey resolves the key the transfer signature must verify against.
func (e *Engine) payerKey(ctx context.Context, p TransferParams) (*ecdsa.PublicKey, error) {
	switch e.gen {
	case GenV1:
		pub, subject, err := e.verifier.Verify(ctx, p.Certificate)
		if err != nil {
			return nil, authError(err)
		}
		if subject != e.prefix+p.From {
			return nil, model.NewError(model.ErrAuthentication, "certificate not issued to payer")
		}
		return pub, nil
	case GenV2:
		acct, err := e.store.Get(ctx, p.From)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, model.NewError(model.ErrNotFound, "account not found")
			}
			return nil, fmt.Errorf("ledger: load account %s: %w", p.From, err)
		}
		if acct.Certificate == "" {
			return nil, model.NewError(model.ErrAuthentication, "account has no certificate")
		}
		pub, _, err := e.verifier.Verify(ctx, acct.Certificate)
		if err != nil {
			return nil, authError(err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("ledger: unsupported generation %s", e.gen)
	}
}

// authError maps trust verifier failures to AUTHENTICATION, passing already
// coded errors (a CA transport failure during the revocation check stays
// UPSTREAM) through unchanged.
func authError(err error) error {
	var coded *model.CodedError
	if errors.As(err, &coded) {
		return err
	}
	return model.NewError(model.ErrAuthentication, err.Error())
}
