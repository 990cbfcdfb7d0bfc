package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	currencySymbolPattern = regexp.MustCompile(`[$€£¥﷼]`)
	isoCurrencyPattern    = regexp.MustCompile(`\b[A-Z]{3}\b`)
	nonDigitPattern       = regexp.MustCompile(`[^0-9]`)
)

// persianArabicDigits maps Persian (۰-۹) and Arabic-Indic (٠-٩) digits to
// their ASCII equivalents (§4.3 stage 8).
var persianArabicDigits = map[rune]rune{
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4', '۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4', '٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
}

// translateDigits converts any Persian or Arabic-Indic digits in s to ASCII.
func translateDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if ascii, ok := persianArabicDigits[r]; ok {
			b.WriteRune(ascii)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeNumber strips currency symbols, translates non-ASCII digits,
// reconciles the decimal separator by the last-separator heuristic, and
// strips thousands separators, returning a plain ASCII decimal string
// suitable for shopspring/decimal parsing.
func normalizeNumber(raw string) string {
	s := translateDigits(raw)
	s = currencySymbolPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = isoCurrencyPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma == -1 && lastDot == -1:
		// no separators
	case lastComma > lastDot:
		// European: comma is the decimal separator, dots are thousands.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	default:
		// US: dot is the decimal separator, commas are thousands.
		s = strings.ReplaceAll(s, ",", "")
	}

	return strings.TrimSpace(s)
}

// normalizeSKU trims, uppercases, and collapses internal whitespace.
func normalizeSKU(raw string) string {
	fields := strings.Fields(raw)
	return strings.ToUpper(strings.Join(fields, " "))
}

// normalizeGTIN strips non-digit characters. Validity (length and GS1 check
// digit) is reported separately by validateGTIN so the raw value is
// retained even when invalid (§4.3 stage 8).
func normalizeGTIN(raw string) string {
	return nonDigitPattern.ReplaceAllString(raw, "")
}

// validateGTIN reports whether digits forms a valid GTIN-8/12/13/14 per the
// GS1 check-digit algorithm (I7): digits at positions 1..L-1, counted from
// the right excluding the check digit, are weighted alternately 3 and 1
// starting with weight 3 on the rightmost of those digits; the weighted sum
// plus the check digit must be a multiple of 10.
func validateGTIN(digits string) bool {
	switch len(digits) {
	case 8, 12, 13, 14:
	default:
		return false
	}

	sum := 0
	checkDigit, err := strconv.Atoi(string(digits[len(digits)-1]))
	if err != nil {
		return false
	}

	body := digits[:len(digits)-1]
	weight := 3
	for i := len(body) - 1; i >= 0; i-- {
		d, err := strconv.Atoi(string(body[i]))
		if err != nil {
			return false
		}
		sum += d * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}

	return (sum+checkDigit)%10 == 0
}

// detectCurrency returns the ISO 4217 code implied by a cell's symbol or
// explicit 3-letter code, or "" if none is recognized.
func detectCurrency(raw string) string {
	if m := isoCurrencyPattern.FindString(raw); m != "" {
		return m
	}
	switch {
	case strings.Contains(raw, "$"):
		return "USD"
	case strings.Contains(raw, "€"):
		return "EUR"
	case strings.Contains(raw, "£"):
		return "GBP"
	case strings.Contains(raw, "﷼"):
		return "IRR"
	}
	return ""
}
