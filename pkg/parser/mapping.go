package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
)

var skuPattern = regexp.MustCompile(`^[A-Za-z0-9]+-[A-Za-z0-9-]+$`)

// mapColumnsDeterministic scores each candidate header column for each
// canonical field by dictionary synonym match and value-pattern match
// (§4.3 stage 5). It returns the chosen mapping, a mean confidence, and
// whether any field needs committee adjudication (ambiguous top-3, or top
// score below 0.80).
func mapColumnsDeterministic(rows [][]string, headerRow int, lang string) ([]contracts.ColumnMapping, float64, bool) {
	if headerRow >= len(rows) {
		return nil, 0, true
	}
	header := rows[headerRow]
	sample := rows[headerRow+1:]
	if len(sample) > 20 {
		sample = sample[:20]
	}

	var mappings []contracts.ColumnMapping
	totalConf := 0.0
	ambiguous := false

	for field := range headerSynonyms {
		best := -1
		bestScore := 0.0
		secondScore := 0.0
		for col, h := range header {
			score := columnScore(field, h, sample, col)
			if score > bestScore {
				secondScore = bestScore
				bestScore = score
				best = col
			} else if score > secondScore {
				secondScore = score
			}
		}
		if best == -1 {
			continue
		}
		method := "header_match"
		if bestScore < 0.80 {
			method = "pattern_heuristic"
		}
		mappings = append(mappings, contracts.ColumnMapping{
			CanonicalField: field,
			ColumnID:       fmt.Sprintf("col-%d", best),
			Confidence:     bestScore,
			Method:         method,
		})
		totalConf += bestScore
		if bestScore < 0.80 || (bestScore-secondScore) < 0.15 {
			ambiguous = true
		}
	}

	meanConf := 0.0
	if len(mappings) > 0 {
		meanConf = totalConf / float64(len(mappings))
	}
	return mappings, meanConf, ambiguous
}

func columnScore(field string, header string, sample [][]string, col int) float64 {
	score := 0.0
	if matched, ok := matchHeaderField(header); ok && matched == field {
		score += 0.7
	}

	values := columnValues(sample, col)
	switch field {
	case FieldGTIN:
		for _, v := range values {
			if validateGTIN(normalizeGTIN(v)) {
				score += 0.3 / float64(max(len(values), 1))
			}
		}
	case FieldSKU:
		for _, v := range values {
			if skuPattern.MatchString(strings.TrimSpace(v)) {
				score += 0.3 / float64(max(len(values), 1))
			}
		}
	case FieldQty, FieldPrice, FieldTotal:
		numeric := 0
		for _, v := range values {
			if v == "" {
				continue
			}
			if _, err := strconv.ParseFloat(normalizeNumber(v), 64); err == nil {
				numeric++
			}
		}
		if len(values) > 0 {
			score += 0.3 * float64(numeric) / float64(len(values))
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func columnValues(rows [][]string, col int) []string {
	var out []string
	for _, r := range rows {
		if col < len(r) && strings.TrimSpace(r[col]) != "" {
			out = append(out, r[col])
		}
	}
	return out
}

// buildEvidencePack assembles the bounded committee input: candidate
// headers, up to 5 sample values per column, and column statistics. It
// never includes full rows, PII beyond samples, or the full workbook
// (§4.4 Evidence bounding).
func buildEvidencePack(caseID string, rows [][]string, headerRow int, lang string) contracts.EvidencePack {
	pack := contracts.EvidencePack{
		CaseID:           caseID,
		DetectedLanguage: lang,
		Timestamp:        time.Now().UTC(),
		Constraints:      []string{"selectedColumnId must reference a candidate header id or be null"},
	}
	if headerRow >= len(rows) {
		return pack
	}
	header := rows[headerRow]
	body := rows[headerRow+1:]

	for col, h := range header {
		id := fmt.Sprintf("col-%d", col)
		pack.CandidateHeaders = append(pack.CandidateHeaders, id)

		values := columnValues(body, col)
		limit := 5
		if len(values) < limit {
			limit = len(values)
		}
		if pack.SampleValues == nil {
			pack.SampleValues = make(map[string][]string)
		}
		pack.SampleValues[id] = values[:limit]

		numeric := 0
		distinct := map[string]struct{}{}
		blank := 0
		for _, r := range body {
			if col >= len(r) {
				continue
			}
			v := strings.TrimSpace(r[col])
			if v == "" {
				blank++
				continue
			}
			distinct[v] = struct{}{}
			if _, err := strconv.ParseFloat(normalizeNumber(v), 64); err == nil {
				numeric++
			}
		}
		n := float64(max(len(body), 1))
		pack.ColumnStats = append(pack.ColumnStats, contracts.ColumnStat{
			ColumnID:      id,
			Header:        h,
			NumericRatio:  float64(numeric) / n,
			DistinctRatio: float64(len(distinct)) / n,
			BlankRatio:    float64(blank) / n,
		})
	}
	return pack
}
