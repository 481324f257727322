package model

import "github.com/shopspring/decimal"

// Account is the persisted ledger record.
//
// Balance is an arbitrary-precision decimal and serializes as a JSON string,
// never a binary float. Certificate holds the CA-issued PEM once registration
// completes; empty until then (and for accounts created under the protocol
// generation that returns the certificate to the client instead of storing it).
//
// Accounts are created once by registration and never deleted. The balance is
// mutated only by the ledger engine inside its mutual-exclusion section.
type Account struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	Certificate string          `json:"cert,omitempty"`
}

// Clone returns a copy safe to hand across the store boundary.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
