package market

import "math/big"

// MaxFeeDenominator is the fixed basis-point denominator for fee rates. A fee
// rate of MaxFeeDenominator takes the entire price.
const MaxFeeDenominator = 10_000

var maxFeeDenominator = big.NewInt(MaxFeeDenominator)

// Fee computes floor(price * feeBps / MaxFeeDenominator). The computation is
// pure and never rounds up; big.Int arithmetic keeps it exact for the full
// range of prices.
func Fee(price *big.Int, feeBps uint32) *big.Int {
	if price == nil || price.Sign() <= 0 || feeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(feeBps)))
	return fee.Div(fee, maxFeeDenominator)
}

// ExpiresAt derives an order deadline from its creation time and the
// caller-supplied duration. Durations outside [min, max] fail with
// ErrInvalidDuration before any custody transfer takes place.
func ExpiresAt(now, duration, min, max int64) (int64, error) {
	if duration < min || duration > max {
		return 0, ErrInvalidDuration
	}
	return now + duration, nil
}
