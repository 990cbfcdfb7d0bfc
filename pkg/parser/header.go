package parser

import (
	"regexp"
	"strings"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
)

var identifierLikePattern = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)

// detectHeaderRow scans from the top for the first row where at least 3
// cells match a known header synonym, or the row below begins
// numeric/identifier patterns (§4.3 stage 4).
func detectHeaderRow(rows [][]string, lang string) (int, float64, *contracts.Issue) {
	for i, row := range rows {
		matches := 0
		for _, cell := range row {
			if _, ok := matchHeaderField(cell); ok {
				matches++
			}
		}
		if matches >= 3 {
			conf := float64(matches) / float64(max(len(row), 1))
			if conf > 1.0 {
				conf = 1.0
			}
			return i, conf, nil
		}
		if i+1 < len(rows) && rowLooksLikeData(rows[i+1]) && rowLooksLikeLabels(row) {
			return i, 0.6, nil
		}
	}
	return 0, 0.2, &contracts.Issue{
		Code:                "HEADER_ROW_UNCERTAIN",
		Severity:            contracts.SeverityWarning,
		Message:             "could not confidently locate a header row; defaulting to row 1",
		SuggestedUserAction: "confirm the header row via corrections",
	}
}

func rowLooksLikeData(row []string) bool {
	numeric := 0
	for _, c := range row {
		trimmed := strings.TrimSpace(c)
		if trimmed == "" {
			continue
		}
		if identifierLikePattern.MatchString(trimmed) {
			numeric++
		}
	}
	return numeric >= 2
}

func rowLooksLikeLabels(row []string) bool {
	nonEmpty := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			nonEmpty++
		}
	}
	return nonEmpty >= 3
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
