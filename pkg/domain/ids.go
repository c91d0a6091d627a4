// Package domain defines typed identifiers shared across bounded contexts.
//
// Identifiers are distinct named types so a SubjectID can never be passed where
// an AccountID is expected. Parse* functions are the trust boundary: they
// normalize input and reject malformed values with CodeInvalidInput-style errors.
package domain

import (
	"strconv"
	"strings"

	dErrors "derisk/pkg/domain-errors"
)

const maxIdentifierLength = 128

// SubjectID identifies an insured subject (for example a lending protocol).
type SubjectID string

// AccountID identifies a holder of currency and claim tokens.
type AccountID string

// AssetID identifies a currency held in the asset ledger.
type AssetID string

// PolicyID is the monotonically assigned identifier of a policy. Zero is never issued.
type PolicyID uint64

func (s SubjectID) String() string { return string(s) }
func (s SubjectID) IsZero() bool   { return s == "" }

func (a AccountID) String() string { return string(a) }
func (a AccountID) IsZero() bool   { return a == "" }

func (a AssetID) String() string { return string(a) }
func (a AssetID) IsZero() bool   { return a == "" }

func (p PolicyID) String() string { return strconv.FormatUint(uint64(p), 10) }
func (p PolicyID) IsZero() bool   { return p == 0 }

// ParseSubjectID normalizes and validates a subject identifier.
func ParseSubjectID(s string) (SubjectID, error) {
	v, err := parseIdentifier("subject_id", s)
	return SubjectID(v), err
}

// ParseAccountID normalizes and validates an account identifier.
func ParseAccountID(s string) (AccountID, error) {
	v, err := parseIdentifier("account", s)
	return AccountID(v), err
}

// ParseAssetID normalizes and validates an asset identifier.
func ParseAssetID(s string) (AssetID, error) {
	v, err := parseIdentifier("asset_id", s)
	return AssetID(v), err
}

// ParsePolicyID parses a decimal policy id. Zero is rejected.
func ParsePolicyID(s string) (PolicyID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "policy_id is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "policy_id must be a positive integer")
	}
	return PolicyID(v), nil
}

func parseIdentifier(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
	}
	if len(s) > maxIdentifierLength {
		return "", dErrors.Newf(dErrors.CodeValidation, "%s must be at most %d characters", field, maxIdentifierLength)
	}
	for i := 0; i < len(s); i++ {
		if !isIdentifierByte(s[i]) {
			return "", dErrors.Newf(dErrors.CodeValidation, "%s contains invalid characters", field)
		}
	}
	// Hex addresses are case-insensitive.
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = "0x" + strings.ToLower(s[2:])
	}
	return s, nil
}

func isIdentifierByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == ':':
		return true
	default:
		return false
	}
}
