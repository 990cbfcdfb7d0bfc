package fingerprint

import "github.com/shopspring/decimal"

// parseDecimal renders qty to exactly two decimal places using exact
// decimal arithmetic, never float64, so the fingerprint cannot drift with
// binary floating-point rounding.
func parseDecimal(qty string) (string, error) {
	d, err := decimal.NewFromString(qty)
	if err != nil {
		return "", err
	}
	return d.StringFixed(2), nil
}
