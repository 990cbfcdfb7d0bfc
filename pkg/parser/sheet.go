package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/xuri/excelize/v2"
)

var productIdentifierPattern = regexp.MustCompile(`(?i)^(sku|gtin|item|product|part)`)

// selectSheet scores every sheet in the workbook by numeric-column
// presence, product-identifier-like columns, and row count, then picks the
// top score. Ambiguity within 10% is a blocker demanding user choice
// (§4.3 stage 2).
func selectSheet(f *excelize.File) (string, float64, []contracts.Issue) {
	sheets := f.GetSheetList()
	if len(sheets) == 1 {
		return sheets[0], 1.0, nil
	}

	type scored struct {
		name  string
		score float64
	}
	var results []scored
	for _, s := range sheets {
		rows, err := f.GetRows(s)
		if err != nil || len(rows) == 0 {
			results = append(results, scored{s, 0})
			continue
		}
		results = append(results, scored{s, scoreSheet(rows)})
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.score > best.score {
			best = r
		}
	}

	for _, r := range results {
		if r.name == best.name {
			continue
		}
		if best.score == 0 || (best.score-r.score)/best.score < 0.10 {
			return "", 0, []contracts.Issue{{
				Code:                "MULTIPLE_CANDIDATE_SHEETS",
				Severity:            contracts.SeverityBlocker,
				Message:             "multiple sheets score within 10% of each other: " + best.name + " and " + r.name,
				SuggestedUserAction: "specify which sheet contains the order",
			}}
		}
	}

	return best.name, best.score, nil
}

func scoreSheet(rows [][]string) float64 {
	numericCols := 0
	identifierCols := 0
	if len(rows) > 0 {
		for _, cell := range rows[0] {
			if productIdentifierPattern.MatchString(strings.TrimSpace(cell)) {
				identifierCols++
			}
		}
	}
	for _, row := range rows {
		for _, cell := range row {
			if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
				numericCols++
			}
		}
	}
	rowScore := float64(len(rows))
	return float64(numericCols)*0.4 + float64(identifierCols)*10.0 + rowScore*0.1
}
