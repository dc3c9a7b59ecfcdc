package classifier

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUnits scales an integer amount by 10^decimals without any float
// intermediate. Output keeps at least one fractional digit: 1.0, 2.5, 0.0.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil || value.Sign() < 0 {
		value = new(big.Int)
	}
	s := decimal.NewFromBigInt(value, -int32(decimals)).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
