package contracts

import "time"

// EvidenceCell anchors an extracted value to the exact spreadsheet cell it
// came from. Every value the Parser emits carries at least one. Merged cells
// record the address of the master cell.
type EvidenceCell struct {
	Sheet         string `json:"sheet"`
	CellAddress   string `json:"cell_address"`
	RawValue      string `json:"raw_value"`
	DisplayValue  string `json:"display_value"`
	NumberFormat  string `json:"number_format,omitempty"`
}

// IssueSeverity ranks how much an Issue should impede progression.
type IssueSeverity string

const (
	SeverityBlocker IssueSeverity = "blocker"
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
	SeverityInfo    IssueSeverity = "info"
)

// Issue is one parser- or resolver-raised defect against the input. A
// blocker halts the Case in the Blocked state until a corrected file
// arrives.
type Issue struct {
	Code                string         `json:"code"`
	Severity            IssueSeverity  `json:"severity"`
	Message             string         `json:"message"`
	Fields              []string       `json:"fields,omitempty"`
	Evidence            []EvidenceCell `json:"evidence,omitempty"`
	SuggestedUserAction string         `json:"suggested_user_action,omitempty"`
}

// OrderMeta carries the provenance of a CanonicalOrder.
type OrderMeta struct {
	CaseID          string    `json:"case_id"`
	ReceivedAt      time.Time `json:"received_at"`
	SourceFilename  string    `json:"source_filename"`
	FileSHA256      string    `json:"file_sha256"`
	DetectedLang    string    `json:"detected_language"`
	ParserVersion   string    `json:"parser_version"`
	FormulaPresent  bool      `json:"formula_present"`
	SheetsProcessed []string  `json:"sheets_processed"`

	// ArchiveBlobAddress is the content address the raw workbook bytes were
	// archived under at parse time, independent of SourceFilename's external
	// blob reference, so the exact bytes that produced this order can be
	// retrieved later even if the external blob expires.
	ArchiveBlobAddress string `json:"archive_blob_address,omitempty"`

	// Corrections holds the human-supplied column reassignments from
	// signal-corrections (§4.1), keyed by canonical field name.
	Corrections map[string]string `json:"corrections,omitempty"`
}

// CustomerRef is the raw customer reference extracted from the order,
// before resolution against the external catalog.
type CustomerRef struct {
	RawName    string           `json:"raw_name"`
	Status     ResolutionStatus `json:"resolution_status"`
	Evidence   []EvidenceCell   `json:"evidence"`
}

// LineItem is one order row, carrying per-field evidence so any value can be
// traced back to the originating cell.
type LineItem struct {
	RowIndex     int            `json:"row_index"`
	SKU          string         `json:"sku,omitempty"`
	GTIN         string         `json:"gtin,omitempty"`
	ProductName  string         `json:"product_name"`
	Quantity     string         `json:"quantity"` // decimal string, see shopspring/decimal
	UnitPrice    string         `json:"unit_price,omitempty"`
	LineTotal    string         `json:"line_total,omitempty"`
	Currency     string         `json:"currency,omitempty"`
	Evidence     map[string][]EvidenceCell `json:"evidence"` // field name -> cells
}

// OrderTotals is the optional order-level total block.
type OrderTotals struct {
	Subtotal     *MoneyField `json:"subtotal,omitempty"`
	Tax          *MoneyField `json:"tax,omitempty"`
	GrandTotal   *MoneyField `json:"grand_total,omitempty"`
}

// MoneyField is a monetary amount with its supporting evidence.
type MoneyField struct {
	Amount   string         `json:"amount"`
	Evidence []EvidenceCell `json:"evidence"`
}

// ColumnMapping records which input column the parser chose for a
// canonical field, and how sure it was.
type ColumnMapping struct {
	CanonicalField string  `json:"canonical_field"`
	ColumnID       string  `json:"column_id"`
	Confidence     float64 `json:"confidence"`
	Method         string  `json:"method"` // header_match, fuzzy_header, position_heuristic, committee
}

// SchemaInference is the parser's record of how it decided which sheet and
// columns held the order data.
type SchemaInference struct {
	ChosenSheet   string          `json:"chosen_sheet"`
	HeaderRow     int             `json:"header_row"`
	ColumnMapping []ColumnMapping `json:"column_mapping"`
}

// Confidence scores the parse at each pipeline stage plus an overall figure.
type Confidence struct {
	SheetSelection   float64 `json:"sheet_selection"`
	HeaderDetection  float64 `json:"header_detection"`
	ColumnMapping    float64 `json:"column_mapping"`
	ValueNormalization float64 `json:"value_normalization"`
	Overall          float64 `json:"overall"`
}

// CanonicalOrder is the Parser's output: a normalized, evidence-carrying
// representation of the spreadsheet order (§3, §4.3).
type CanonicalOrder struct {
	Meta            OrderMeta        `json:"meta"`
	Customer        CustomerRef      `json:"customer"`
	LineItems       []LineItem       `json:"line_items"`
	Totals          *OrderTotals     `json:"totals,omitempty"`
	SchemaInference SchemaInference  `json:"schema_inference"`
	Confidence      Confidence       `json:"confidence"`
	Issues          []Issue          `json:"issues"`
}

// HasBlocker reports whether any issue is severe enough to halt the case.
func (o *CanonicalOrder) HasBlocker() bool {
	for _, iss := range o.Issues {
		if iss.Severity == SeverityBlocker {
			return true
		}
	}
	return false
}
