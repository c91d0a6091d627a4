package attestation

import (
	"encoding/hex"
	"strings"

	dErrors "derisk/pkg/domain-errors"
)

// ProgramID identifies the exact off-chain program whose execution produced a
// journal. It is 32 bytes, hex encoded on the wire.
type ProgramID [32]byte

// ParseProgramID decodes 64 hex characters, with or without a 0x prefix.
func ParseProgramID(s string) (ProgramID, error) {
	var p ProgramID
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(p) {
		return p, dErrors.New(dErrors.CodeValidation, "program_id must be 32 bytes of hex")
	}
	copy(p[:], raw)
	if p.IsZero() {
		return p, dErrors.New(dErrors.CodeValidation, "program_id must not be zero")
	}
	return p, nil
}

func (p ProgramID) IsZero() bool { return p == ProgramID{} }

func (p ProgramID) String() string { return "0x" + hex.EncodeToString(p[:]) }

// DecodeHex decodes an optionally 0x-prefixed hex payload (journals and seals).
func DecodeHex(field, s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be hex encoded", field)
	}
	return b, nil
}
