package parser

import (
	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/xuri/excelize/v2"
)

// scanFormulas walks every cell of every sheet. A live formula hides the
// actual value from human verification and violates the audit requirement,
// so its presence is a blocker, not a warning (§4.3 stage 1).
func scanFormulas(f *excelize.File) (contracts.Issue, bool) {
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for r := range rows {
			for c := range rows[r] {
				addr, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					continue
				}
				formula, err := f.GetCellFormula(sheet, addr)
				if err == nil && formula != "" {
					return contracts.Issue{
						Code:     "FORMULAS_BLOCKED",
						Severity: contracts.SeverityBlocker,
						Message:  "workbook contains a live formula at " + sheet + "!" + addr,
						Fields:   []string{sheet + "!" + addr},
						SuggestedUserAction: "re-upload a values-only copy of the workbook (paste special -> values)",
					}, true
				}
			}
		}
	}
	return contracts.Issue{}, false
}
