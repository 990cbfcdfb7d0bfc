package parser

import (
	"fmt"
	"math"
	"strconv"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
)

// validateArithmetic checks qty*unit ≈ lineTotal per line, and
// subtotal ≈ Σ line totals and grandTotal ≈ subtotal + tax when those
// totals are present. Mismatches are warnings, not blockers — reconciling
// the data is left to the human reviewer (§4.3 stage 9).
func validateArithmetic(items []contracts.LineItem, totals *contracts.OrderTotals) []contracts.Issue {
	var issues []contracts.Issue
	var sumLineTotals float64
	haveAllLineTotals := true

	for _, li := range items {
		qty, qErr := strconv.ParseFloat(li.Quantity, 64)
		unit, uErr := strconv.ParseFloat(li.UnitPrice, 64)
		lineTotal, lErr := strconv.ParseFloat(li.LineTotal, 64)
		if lErr == nil {
			sumLineTotals += lineTotal
		} else {
			haveAllLineTotals = false
		}
		if qErr != nil || uErr != nil || lErr != nil {
			continue
		}
		calc := qty * unit
		tolerance := math.Max(0.02, 0.01*math.Max(math.Abs(calc), math.Abs(lineTotal)))
		if math.Abs(calc-lineTotal) > tolerance {
			issues = append(issues, contracts.Issue{
				Code:     "ARITHMETIC_MISMATCH",
				Severity: contracts.SeverityWarning,
				Message:  fmt.Sprintf("row %d: qty*unit=%.2f does not match line total %.2f", li.RowIndex, calc, lineTotal),
				Fields:   []string{"line_total"},
				Evidence: li.Evidence["total"],
			})
		}
	}

	if totals == nil || !haveAllLineTotals {
		return issues
	}

	if totals.Subtotal != nil {
		if sub, err := strconv.ParseFloat(totals.Subtotal.Amount, 64); err == nil {
			tolerance := math.Max(0.02, 0.01*math.Max(math.Abs(sub), math.Abs(sumLineTotals)))
			if math.Abs(sub-sumLineTotals) > tolerance {
				issues = append(issues, contracts.Issue{
					Code:     "ARITHMETIC_MISMATCH",
					Severity: contracts.SeverityWarning,
					Message:  fmt.Sprintf("subtotal %.2f does not match sum of line totals %.2f", sub, sumLineTotals),
					Evidence: totals.Subtotal.Evidence,
				})
			}
		}
	}

	if totals.GrandTotal != nil {
		subtotal := sumLineTotals
		if totals.Subtotal != nil {
			if sub, err := strconv.ParseFloat(totals.Subtotal.Amount, 64); err == nil {
				subtotal = sub
			}
		}
		tax := 0.0
		if totals.Tax != nil {
			if t, err := strconv.ParseFloat(totals.Tax.Amount, 64); err == nil {
				tax = t
			}
		}
		if grand, err := strconv.ParseFloat(totals.GrandTotal.Amount, 64); err == nil {
			expected := subtotal + tax
			tolerance := math.Max(0.02, 0.01*math.Max(math.Abs(expected), math.Abs(grand)))
			if math.Abs(expected-grand) > tolerance {
				issues = append(issues, contracts.Issue{
					Code:     "ARITHMETIC_MISMATCH",
					Severity: contracts.SeverityWarning,
					Message:  fmt.Sprintf("grand total %.2f does not match subtotal+tax %.2f", grand, expected),
					Evidence: totals.GrandTotal.Evidence,
				})
			}
		}
	}

	return issues
}
