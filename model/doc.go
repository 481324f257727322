// Package model defines stable boundary types for the ledger: the persisted
// account record and the error taxonomy every API layer surfaces.
//
// These structs are the only types intended for direct JSON serialization by
// consumers.
package model
