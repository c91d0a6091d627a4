package domain

import (
	"strconv"
	"strings"

	dErrors "derisk/pkg/domain-errors"
)

// ParseAmount parses a decimal amount in the smallest currency unit. Amounts
// travel as strings on the wire because JSON numbers lose precision above 2^53.
func ParseAmount(field, s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s must be a non-negative integer below 2^64", field)
	}
	return v, nil
}

// FormatAmount is the inverse of ParseAmount.
func FormatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
