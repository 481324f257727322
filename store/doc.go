// Package store defines the minimal persistent account store the ledger
// engine mutates, and its sentinel errors. Backends live in subpackages.
package store
