package contracts

import "time"

// ColumnStat summarizes one candidate column's value distribution, handed
// to committee providers as part of the Evidence Pack so they can reason
// about type purity without seeing full rows.
type ColumnStat struct {
	ColumnID       string  `json:"column_id"`
	Header         string  `json:"header"`
	NumericRatio   float64 `json:"numeric_ratio"`
	DistinctRatio  float64 `json:"distinct_ratio"`
	BlankRatio     float64 `json:"blank_ratio"`
}

// EvidencePack is the bounded input handed to each committee provider
// (§4.4). It never contains full workbook content, full rows, the customer
// database, or the catalog — only header candidates, up to 5 sample values
// per column, and column statistics.
type EvidencePack struct {
	CaseID           string              `json:"case_id"`
	CandidateHeaders []string            `json:"candidate_headers"`
	SampleValues     map[string][]string `json:"sample_values"` // header id -> up to 5 strings
	ColumnStats      []ColumnStat        `json:"column_stats"`
	DetectedLanguage string              `json:"detected_language"`
	Constraints      []string            `json:"constraints"`
	Timestamp        time.Time           `json:"timestamp"`
}

// FieldMapping is one provider's choice of column for one canonical field.
type FieldMapping struct {
	Field            string  `json:"field"`
	SelectedColumnID string  `json:"selectedColumnId,omitempty"` // empty means "no mapping"
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// ProviderOutput is the strict-schema response from one committee member
// (§4.4). Every SelectedColumnID must appear in the EvidencePack it was
// given — violations are rejected at the schema-validation boundary, not
// trusted.
type ProviderOutput struct {
	ProviderID        string         `json:"provider_id"`
	Mappings          []FieldMapping `json:"mappings"`
	Issues            []Issue        `json:"issues,omitempty"`
	OverallConfidence float64        `json:"overallConfidence"`
	ProcessingTimeMs  int64          `json:"processingTimeMs"`
	Failed            bool           `json:"failed,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
}

// ConsensusLevel classifies how much the committee agreed on one field.
type ConsensusLevel string

const (
	ConsensusUnanimous   ConsensusLevel = "unanimous"
	ConsensusMajority    ConsensusLevel = "majority"
	ConsensusSplit       ConsensusLevel = "split"
	ConsensusNoConsensus ConsensusLevel = "no_consensus"
)

// FieldVote is the tallied outcome for one canonical field.
type FieldVote struct {
	Field        string         `json:"field"`
	Winner       string         `json:"winner"` // column id, or "" for null
	Tally        map[string]float64 `json:"tally"`
	Margin       float64        `json:"margin"`
	Consensus    ConsensusLevel `json:"consensus"`
	AutoAccepted bool           `json:"auto_accepted"`
}

// Disagreement records a field where providers diverged enough to be worth
// surfacing in the audit trail even if a winner was still chosen.
type Disagreement struct {
	Field     string   `json:"field"`
	Providers []string `json:"providers"`
	Choices   []string `json:"choices"`
}

// AggregatedResult is the committee's weighted-vote aggregation across all
// canonical fields.
type AggregatedResult struct {
	Consensus        ConsensusLevel  `json:"consensus"` // worst-case across fields
	FieldVotes       []FieldVote     `json:"field_votes"`
	OverallConfidence float64        `json:"overall_confidence"`
	Disagreements    []Disagreement  `json:"disagreements,omitempty"`
}

// CommitteeResult is the full record of one committee invocation (§3,
// §4.4). Committee.MapColumns returns it and it is kept on the case record
// (Case.CommitteeResult); no separate Evidence Store object is written for it.
type CommitteeResult struct {
	TaskID             string           `json:"task_id"`
	CaseID             string           `json:"case_id"`
	SelectedProviderIDs []string        `json:"selected_provider_ids"`
	DiversityDowngraded bool            `json:"diversity_downgraded,omitempty"`
	ProviderOutputs    []ProviderOutput `json:"provider_outputs"`
	Aggregated         AggregatedResult `json:"aggregated"`
	FinalMappings      []ColumnMapping  `json:"final_mappings"`
	RequiresHumanReview bool            `json:"requires_human_review"`
	AuditTrail         []string         `json:"audit_trail"` // evidence store object refs
	CreatedAt          time.Time        `json:"created_at"`

	// ConcurrencyTraceHash is the finalized hash of the kernel.ExecutionTrace
	// captured over this invocation's fan-out, letting a replay confirm the
	// same providers answered in the same per-provider input/output order
	// (§4.2 I5) without this package importing pkg/kernel's trace type.
	ConcurrencyTraceHash string `json:"concurrency_trace_hash,omitempty"`
}

// ProviderWeight is a calibrated, configuration-only committee member
// weight (§4.4 Weight calibration). Never mutated in the critical path.
type ProviderWeight struct {
	ProviderID string  `json:"provider_id"`
	Family     string  `json:"family"` // openai, anthropic, deepseek, google, xai
	Weight     float64 `json:"weight"`
}
