package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/xuri/excelize/v2"
)

// extractRows walks the body rows below the header, skips blanks, detects
// total rows, applies merged-cell resolution, and normalizes every value
// (§4.3 stages 7-8).
func extractRows(f *excelize.File, sheet string, rows [][]string, headerRow int, mapping []contracts.ColumnMapping, lang string) (contracts.CustomerRef, []contracts.LineItem, *contracts.OrderTotals, []contracts.Issue) {
	colOf := map[string]int{}
	for _, m := range mapping {
		var col int
		fmt.Sscanf(m.ColumnID, "col-%d", &col)
		colOf[m.CanonicalField] = col
	}

	merges, _ := f.GetMergeCells(sheet)

	var issues []contracts.Issue
	var lineItems []contracts.LineItem
	var totals contracts.OrderTotals
	haveTotals := false
	var customer contracts.CustomerRef

	body := rows[headerRow+1:]
	for i, row := range body {
		rowIndex := headerRow + 1 + i + 1 // 1-based sheet row number

		if isBlankRow(row) {
			continue
		}

		if looksLikeTotalRow(row) {
			if col, ok := colOf[FieldTotal]; ok && col < len(row) {
				addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
				val := normalizeNumber(row[col])
				if _, err := strconv.ParseFloat(val, 64); err == nil {
					totals.GrandTotal = &contracts.MoneyField{
						Amount:   val,
						Evidence: []contracts.EvidenceCell{{Sheet: sheet, CellAddress: addr, RawValue: row[col], DisplayValue: row[col]}},
					}
					haveTotals = true
				}
			}
			continue
		}

		li := contracts.LineItem{RowIndex: rowIndex, Evidence: map[string][]contracts.EvidenceCell{}}

		if col, ok := colOf[FieldCustomer]; ok && col < len(row) && customer.RawName == "" {
			addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			customer.RawName = strings.TrimSpace(row[col])
			customer.Evidence = append(customer.Evidence, evidenceCell(sheet, addr, row[col]))
		}

		if col, ok := colOf[FieldSKU]; ok && col < len(row) {
			addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			li.SKU = normalizeSKU(row[col])
			li.Evidence[FieldSKU] = []contracts.EvidenceCell{evidenceCell(sheet, addr, row[col])}
		}

		if col, ok := colOf[FieldGTIN]; ok && col < len(row) {
			addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			digits := normalizeGTIN(row[col])
			li.GTIN = digits
			li.Evidence[FieldGTIN] = []contracts.EvidenceCell{evidenceCell(sheet, addr, row[col])}
			if digits != "" && !validateGTIN(digits) {
				issues = append(issues, contracts.Issue{
					Code:     "GTIN_INVALID",
					Severity: contracts.SeverityError,
					Message:  fmt.Sprintf("row %d: GTIN %q fails the GS1 check digit", rowIndex, digits),
					Evidence: []contracts.EvidenceCell{evidenceCell(sheet, addr, row[col])},
				})
			}
		}

		if col, ok := colOf[FieldProduct]; ok && col < len(row) {
			addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			li.ProductName = strings.TrimSpace(row[col])
			li.Evidence[FieldProduct] = []contracts.EvidenceCell{evidenceCell(sheet, addr, row[col])}
		}

		if col, ok := colOf[FieldQty]; ok && col < len(row) {
			addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			raw := row[col]
			norm := normalizeNumber(raw)
			li.Quantity = norm
			li.Evidence[FieldQty] = []contracts.EvidenceCell{evidenceCell(sheet, addr, raw)}
			if qty, err := strconv.ParseFloat(norm, 64); err == nil && qty < 0 {
				issues = append(issues, contracts.Issue{
					Code:     "NEGATIVE_QUANTITY",
					Severity: contracts.SeverityWarning,
					Message:  fmt.Sprintf("row %d: negative quantity %s", rowIndex, norm),
					Evidence: li.Evidence[FieldQty],
				})
			}
		}

		if col, ok := colOf[FieldPrice]; ok && col < len(row) {
			addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			li.UnitPrice = normalizeNumber(row[col])
			li.Evidence[FieldPrice] = []contracts.EvidenceCell{evidenceCell(sheet, addr, row[col])}
			if cur := detectCurrency(row[col]); cur != "" {
				li.Currency = cur
			}
		}

		if col, ok := colOf[FieldTotal]; ok && col < len(row) {
			addr, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			li.LineTotal = normalizeNumber(row[col])
			li.Evidence[FieldTotal] = []contracts.EvidenceCell{evidenceCell(sheet, addr, row[col])}
		}

		if col, ok := colOf[FieldCurrency]; ok && col < len(row) {
			li.Currency = strings.TrimSpace(row[col])
		}

		if isMultiRowMerge(rowIndex, merges) {
			issues = append(issues, contracts.Issue{
				Code:     "MULTI_ROW_MERGE",
				Severity: contracts.SeverityWarning,
				Message:  fmt.Sprintf("row %d: part of a multi-row merge", rowIndex),
			})
		}

		lineItems = append(lineItems, li)
	}

	var totalsResult *contracts.OrderTotals
	if haveTotals {
		totalsResult = &totals
	}

	return customer, lineItems, totalsResult, issues
}

func evidenceCell(sheet, addr, raw string) contracts.EvidenceCell {
	return contracts.EvidenceCell{Sheet: sheet, CellAddress: addr, RawValue: raw, DisplayValue: raw}
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// isMultiRowMerge reports whether rowIndex (1-based sheet row) falls inside
// a merge range spanning more than one row, other than the range's own
// first row — i.e. a body row whose value was inherited from a merged
// master cell above it (§4.3 stage 7, MULTI_ROW_MERGE).
func isMultiRowMerge(rowIndex int, merges []excelize.MergeCell) bool {
	for _, mc := range merges {
		_, startRow, err1 := excelize.CellNameToCoordinates(mc.GetStartAxis())
		_, endRow, err2 := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err1 != nil || err2 != nil || endRow <= startRow {
			continue
		}
		if rowIndex > startRow && rowIndex <= endRow {
			return true
		}
	}
	return false
}
