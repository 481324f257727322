// Package ledger is the mutation engine: account creation, login-challenge
// verification, balance adjustment, and inter-account transfer.
//
// Every balance-affecting operation runs its mutation section inside one
// engine-owned mutex, at most one at a time system-wide. Network calls to the
// CA and signature verification run outside that guard, so a hung CA call
// blocks only its own request.
package ledger
