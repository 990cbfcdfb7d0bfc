// Package parser converts a spreadsheet-borne purchase order into a
// Canonical Order with cell-level evidence (§4.3). The pipeline runs in
// fixed stages, each producing diagnostics that are carried through to the
// final Issues list rather than swallowed.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
	"github.com/xuri/excelize/v2"
)

// Version identifies the parser implementation recorded on every
// CanonicalOrder it produces, so a replayed workflow can tell which
// normalization rules ran.
const Version = "order-parser/1"

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ColumnMapper resolves ambiguous column assignments that the deterministic
// stage could not settle alone. The Committee implements this interface;
// tests may supply a stub.
type ColumnMapper interface {
	MapColumns(ctx context.Context, pack contracts.EvidencePack) (contracts.CommitteeResult, error)
}

// Parser runs the full pipeline over one workbook.
type Parser struct {
	mapper ColumnMapper
	blobs  kernel.BlobStore
}

// New builds a Parser. mapper may be nil if the caller only needs the
// deterministic stages (e.g. unit tests). blobs may be nil, in which case
// Parse skips archiving the raw workbook bytes.
func New(mapper ColumnMapper, blobs kernel.BlobStore) *Parser {
	return &Parser{mapper: mapper, blobs: blobs}
}

// Parse runs all ten pipeline stages over the workbook at path and returns
// the Canonical Order. A blocker-severity issue in the returned order means
// the caller must stop and wait for a corrected upload; Parse itself never
// returns an error for a well-formed-but-blocked workbook — blockers are
// data, not Go errors. Parse returns a non-nil error only for I/O or
// workbook-format failures that make parsing impossible to attempt.
func (p *Parser) Parse(ctx context.Context, caseID string, path string, fileSHA256 string) (*contracts.CanonicalOrder, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: open workbook: %w", err)
	}
	defer f.Close()

	order := &contracts.CanonicalOrder{
		Meta: contracts.OrderMeta{
			CaseID:         caseID,
			ReceivedAt:     time.Now().UTC(),
			SourceFilename: path,
			FileSHA256:     fileSHA256,
			ParserVersion:  Version,
		},
	}

	// Archive the raw workbook bytes content-addressably, independent of
	// whatever external store SourceFilename points at, so the exact bytes
	// this order was parsed from remain retrievable for audit or replay.
	if p.blobs != nil {
		if raw, readErr := os.ReadFile(path); readErr == nil {
			if addr, storeErr := p.blobs.Store(ctx, raw, xlsxMimeType); storeErr == nil {
				order.Meta.ArchiveBlobAddress = string(addr)
			}
		}
	}

	// Stage 1: formula scan. A blocker here stops the pipeline immediately —
	// nothing downstream can be trusted if the sheet hides live formulas.
	if issue, blocked := scanFormulas(f); blocked {
		order.Issues = append(order.Issues, issue)
		return order, nil
	}

	// Stage 2: sheet selection.
	sheet, sheetConf, issues := selectSheet(f)
	order.Issues = append(order.Issues, issues...)
	order.Meta.SheetsProcessed = f.GetSheetList()
	if hasBlocker(issues) {
		return order, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("parser: read sheet %q: %w", sheet, err)
	}

	// Stage 3: language detection.
	lang := detectLanguage(rows)
	order.Meta.DetectedLang = lang

	// Stage 4: header detection.
	headerRow, headerConf, issue := detectHeaderRow(rows, lang)
	if issue != nil {
		order.Issues = append(order.Issues, *issue)
	}

	// Stage 5: deterministic column mapping.
	mapping, mapConf, ambiguous := mapColumnsDeterministic(rows, headerRow, lang)
	order.SchemaInference = contracts.SchemaInference{
		ChosenSheet:   sheet,
		HeaderRow:     headerRow,
		ColumnMapping: mapping,
	}

	// Stage 6: committee invocation, only when deterministic mapping left a
	// field ambiguous or under-confident.
	if ambiguous && p.mapper != nil {
		pack := buildEvidencePack(caseID, rows, headerRow, lang)
		if secretErr := scanEvidencePackForSecrets(pack); secretErr != nil {
			order.Issues = append(order.Issues, contracts.Issue{
				Code:     "SECRET_IN_EVIDENCE_PACK",
				Severity: contracts.SeverityBlocker,
				Message:  secretErr.Error(),
			})
			return order, nil
		}
		result, err := p.mapper.MapColumns(ctx, pack)
		if err != nil {
			order.Issues = append(order.Issues, contracts.Issue{
				Code:     "COMMITTEE_FAILED",
				Severity: contracts.SeverityWarning,
				Message:  err.Error(),
			})
		} else {
			order.SchemaInference.ColumnMapping = result.FinalMappings
			if result.RequiresHumanReview {
				order.Issues = append(order.Issues, contracts.Issue{
					Code:     "MAPPING_CONFIDENCE_LOW",
					Severity: contracts.SeverityWarning,
					Message:  "committee did not reach auto-accept consensus on one or more fields",
				})
			}
		}
	}

	// Stage 7: row extraction.
	customer, lineItems, totals, rowIssues := extractRows(f, sheet, rows, headerRow, order.SchemaInference.ColumnMapping, lang)
	order.Customer = customer
	order.Issues = append(order.Issues, rowIssues...)

	// Stage 8: value normalization (applied in-place during extraction, see
	// rows.go / normalize.go); nothing further to do here.
	order.LineItems = lineItems
	order.Totals = totals

	// Stage 9: arithmetic validation.
	order.Issues = append(order.Issues, validateArithmetic(order.LineItems, order.Totals)...)

	// Stage 10: confidence scoring.
	order.Confidence = contracts.Confidence{
		SheetSelection:     sheetConf,
		HeaderDetection:    headerConf,
		ColumnMapping:      mapConf,
		ValueNormalization: 1.0,
		Overall:            overallConfidence(sheetConf, headerConf, mapConf),
	}

	return order, nil
}

// scanEvidencePackForSecrets decodes pack through JSON into a generic tree
// and runs kernel.ScanForPlaintextSecrets over it — the committee sends this
// pack to external LLM providers, so nothing resembling a credential may
// leak through it (Addendum 8.X.7).
func scanEvidencePackForSecrets(pack contracts.EvidencePack) error {
	raw, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("parser: marshal evidence pack: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("parser: decode evidence pack: %w", err)
	}
	return kernel.ScanForPlaintextSecrets(generic)
}

func hasBlocker(issues []contracts.Issue) bool {
	for _, i := range issues {
		if i.Severity == contracts.SeverityBlocker {
			return true
		}
	}
	return false
}

func overallConfidence(sheet, header, mapping float64) float64 {
	return 0.2*sheet + 0.3*header + 0.5*mapping
}
