// Package sentinel holds the facts stores report about ledger rows. Services
// translate them into coded domain errors; handlers never see them directly.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the key (subject, policy, claim token).
	ErrNotFound = errors.New("not found")
	// ErrConflict: a row with the key already exists.
	ErrConflict = errors.New("conflict")
	// ErrInsufficient: a balance, allowance or insured total would go negative.
	ErrInsufficient = errors.New("insufficient")
)
