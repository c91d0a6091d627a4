package attestation

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "derisk/pkg/domain-errors"
)

// Uint128 is an unsigned 128-bit integer as carried in attestation journals.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Uint128FromUint64 widens v.
func Uint128FromUint64(v uint64) Uint128 { return Uint128{Lo: v} }

// Uint128FromBig narrows b, rejecting negative or oversized values.
func Uint128FromBig(b *big.Int) (Uint128, error) {
	if b.Sign() < 0 || b.Cmp(maxUint128) > 0 {
		return Uint128{}, dErrors.New(dErrors.CodeValidation, "value does not fit in 128 bits")
	}
	lo := new(big.Int).And(b, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(b, 64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

// ParseUint128 parses a base-10 string.
func ParseUint128(s string) (Uint128, error) {
	b, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Uint128{}, dErrors.Newf(dErrors.CodeValidation, "invalid 128-bit integer %q", s)
	}
	return Uint128FromBig(b)
}

func (u Uint128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

// Big returns the value as a new big.Int.
func (u Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string { return u.Big().String() }

// Decimal renders a fixed-point value with scale fractional digits, e.g. a
// 1e8-scaled USD amount with Decimal(8).
func (u Uint128) Decimal(scale int32) decimal.Decimal {
	return decimal.NewFromBigInt(u.Big(), -scale)
}

// MarshalJSON encodes as a decimal string; JSON numbers cannot carry 128 bits.
func (u Uint128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (u *Uint128) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := ParseUint128(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
