// Package ca is the network boundary to the external certificate authority:
// identity registration, public key lookup, and revocation checks.
package ca
