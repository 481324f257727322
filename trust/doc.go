// Package trust holds the process-wide trust anchor and validates CA-issued
// certificates against it.
package trust
