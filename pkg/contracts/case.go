package contracts

import "time"

// CaseState is a state of the Case lifecycle state machine (§4.2).
type CaseState string

const (
	CaseStatePending           CaseState = "Pending"
	CaseStateParsing           CaseState = "Parsing"
	CaseStateBlocked           CaseState = "Blocked"
	CaseStateValidating        CaseState = "Validating"
	CaseStateResolvingCustomer CaseState = "ResolvingCustomer"
	CaseStateResolvingItems    CaseState = "ResolvingItems"
	CaseStateAwaitingApproval  CaseState = "AwaitingApproval"
	CaseStateDrafting          CaseState = "Drafting"
	CaseStateCompleted         CaseState = "Completed"
	CaseStateQueuedForWriter   CaseState = "QueuedForWriter"
	CaseStateCancelled         CaseState = "Cancelled"
	CaseStateFailed            CaseState = "Failed"
)

// Case is the central, long-lived entity of the pipeline (§3). It is created
// by the Ingress API on file receipt and mutated only by the workflow engine
// through named activity outcomes; it is never destroyed — terminal states
// remain queryable.
type Case struct {
	CaseID             string    `json:"case_id"`
	TenantID           string    `json:"tenant_id"`
	SubmitterID        string    `json:"submitter_id"`
	CorrelationID      string    `json:"correlation_id"`
	SourceBlobRef      string    `json:"source_blob_ref"`
	FileSHA256         string    `json:"file_sha256"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	State              CaseState `json:"state"`
	WorkflowInstanceID string    `json:"workflow_instance_id"`

	CanonicalOrder  *CanonicalOrder  `json:"canonical_order,omitempty"`
	CommitteeResult *CommitteeResult `json:"committee_result,omitempty"`
	Resolution      *CaseResolution  `json:"resolution,omitempty"`
	Approval        *ApprovalReceipt `json:"approval,omitempty"`
	DraftReference  string           `json:"draft_reference,omitempty"`

	// ApprovalExpiresAt is the sweeper horizon set when the case enters
	// AwaitingApproval; cmd/worker compares it against wall-clock time to
	// decide expiry (§4.2). The engine's own dispatch loop never reads the
	// clock to make this decision.
	ApprovalExpiresAt time.Time `json:"approval_expires_at,omitempty"`

	Errors     []CaseError    `json:"errors,omitempty"`
	AuditTrail []CaseAuditEvt `json:"audit_trail,omitempty"`
}

// CaseError is a terminal or retried activity error recorded on the case.
type CaseError struct {
	Activity       string    `json:"activity"`
	Code           string    `json:"code"`
	Message        string    `json:"message"`
	Classification string    `json:"classification"` // RETRYABLE, NON_RETRYABLE, IDEMPOTENT_SAFE, COMPENSATION_REQUIRED
	AttemptNumber  int       `json:"attempt_number"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// CaseAuditEvt is one ordered entry in the case's audit trail, carrying the
// acting party and the payload of the state transition.
type CaseAuditEvt struct {
	SequenceNumber int            `json:"sequence_number"`
	EventType      string         `json:"event_type"`
	Actor          string         `json:"actor"`
	FromState      CaseState      `json:"from_state,omitempty"`
	ToState        CaseState      `json:"to_state,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// CaseResolution holds the customer and item resolutions surfaced to
// ResolvingCustomer / ResolvingItems (§4.5).
type CaseResolution struct {
	Customer ResolutionResult   `json:"customer"`
	Items    []ResolutionResult `json:"items"`
}

// ResolutionStatus is the outcome of matching a parsed name against the
// external catalog.
type ResolutionStatus string

const (
	ResolutionResolved   ResolutionStatus = "resolved"
	ResolutionNeedsHuman ResolutionStatus = "needs-human"
	ResolutionUnresolved ResolutionStatus = "unresolved"
)

// ResolutionResult is the per-entity (customer or line item) outcome of
// resolver matching.
type ResolutionResult struct {
	LineIndex     int                `json:"line_index,omitempty"` // -1 for the customer
	Status        ResolutionStatus   `json:"status"`
	MatchedID     string             `json:"matched_id,omitempty"`
	Candidates    []ResolutionMatch  `json:"candidates,omitempty"`
	SelectedBy    string             `json:"selected_by,omitempty"` // "resolver" or a human actor
	SelectedAt    time.Time          `json:"selected_at,omitempty"`
	MatchStrategy string             `json:"match_strategy,omitempty"` // exact_name, fuzzy_name, tax_id, gtin, sku
	Evidence      []EvidenceCell     `json:"evidence,omitempty"`
}

// ResolutionMatch is one external-catalog candidate with its similarity score.
type ResolutionMatch struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}
