package attestation

import (
	"math/big"

	dErrors "derisk/pkg/domain-errors"
)

// Reserve is one asset of a lending protocol as read from chain state.
type Reserve struct {
	TokenAddress string `json:"token_address"`
	// Amounts are in the token's native decimals.
	Supplied     Uint128 `json:"total_atoken"`
	StableDebt   Uint128 `json:"total_stable_debt"`
	VariableDebt Uint128 `json:"total_variable_debt"`
	// PriceUSD is scaled by 1e8.
	PriceUSD Uint128 `json:"price_usd"`
	Decimals uint8   `json:"decimals"`
}

// normalizedDecimals is the intermediate precision used before pricing.
const normalizedDecimals = 18

var tenPow18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(normalizedDecimals), nil)

// NormalizeUSD converts a native token amount to USD scaled by 1e8: the amount
// is rescaled to 18 decimals, multiplied by the 1e8 price and divided by 1e18.
func NormalizeUSD(amount Uint128, decimals uint8, priceUSD Uint128) *big.Int {
	v := amount.Big()
	switch {
	case decimals < normalizedDecimals:
		v.Mul(v, pow10(normalizedDecimals-decimals))
	case decimals > normalizedDecimals:
		v.Quo(v, pow10(decimals-normalizedDecimals))
	}
	v.Mul(v, priceUSD.Big())
	return v.Quo(v, tenPow18)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ComputeSafetyScore derives the journal for a protocol snapshot. Assets are
// supplied balances; liabilities are stable plus variable debt. The score is
// the solvency buffer as a share of assets in basis points, and 0 when there
// are no assets or liabilities meet or exceed them.
func ComputeSafetyScore(reserves []Reserve, timestamp uint64) (Journal, error) {
	assets := new(big.Int)
	liabilities := new(big.Int)
	for _, r := range reserves {
		assets.Add(assets, NormalizeUSD(r.Supplied, r.Decimals, r.PriceUSD))
		liabilities.Add(liabilities, NormalizeUSD(r.StableDebt, r.Decimals, r.PriceUSD))
		liabilities.Add(liabilities, NormalizeUSD(r.VariableDebt, r.Decimals, r.PriceUSD))
	}

	totalAssets, err := Uint128FromBig(assets)
	if err != nil {
		return Journal{}, dErrors.New(dErrors.CodeValidation, "total assets overflow 128 bits")
	}
	totalLiabilities, err := Uint128FromBig(liabilities)
	if err != nil {
		return Journal{}, dErrors.New(dErrors.CodeValidation, "total liabilities overflow 128 bits")
	}

	var bp uint64
	if assets.Sign() > 0 && liabilities.Cmp(assets) < 0 {
		buffer := new(big.Int).Sub(assets, liabilities)
		buffer.Mul(buffer, big.NewInt(MaxBasisPoints))
		buffer.Quo(buffer, assets)
		bp = min(buffer.Uint64(), MaxBasisPoints)
	}

	return Journal{
		ScoreBasisPoints: bp,
		TotalAssets:      totalAssets,
		TotalLiabilities: totalLiabilities,
		Timestamp:        timestamp,
	}, nil
}
