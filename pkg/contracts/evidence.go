package contracts

import "time"

// CaseEvidenceRecord is an audit-export record shape for one activity
// outcome of a case. No code in this module builds or writes it; nothing
// writes audit/{case_id}/events.ndjson to the Evidence Store.
type CaseEvidenceRecord struct {
	PackID        string    `json:"pack_id"`
	FormatVersion string    `json:"format_version"`
	CreatedAt     time.Time `json:"created_at"`

	Identity CaseRecordIdentity `json:"identity"`
	Effect   CaseRecordEffect   `json:"effect"`
	Context  CaseRecordContext  `json:"context"`

	Execution      CaseRecordExecution      `json:"execution"`
	Receipts       CaseRecordReceipts       `json:"receipts"`
	Reconciliation CaseRecordReconciliation `json:"reconciliation"`

	ReplayScript     *ReplayScriptRef   `json:"replay_script,omitempty"`
	Provenance       *ReceiptProvenance `json:"provenance,omitempty"`
	BundledArtifacts []ParsedArtifact   `json:"bundled_artifacts,omitempty"`

	Attestation CaseRecordAttestation `json:"attestation"`
}

// CaseRecordIdentity tracks who submitted and who is acting on the case.
type CaseRecordIdentity struct {
	TenantID      string `json:"tenant_id"`
	SubmitterID   string `json:"submitter_id"`
	CorrelationID string `json:"correlation_id"`
	ActorID       string `json:"actor_id,omitempty"` // actor of the specific activity this record covers
	ActorType     string `json:"actor_type,omitempty"`
}

// CaseRecordEffect describes the activity outcome this record captures.
type CaseRecordEffect struct {
	ActivityName      string `json:"activity_name"`
	EffectPayloadHash string `json:"effect_payload_hash"`
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
	Classification    string `json:"classification,omitempty"` // retryable, non_retryable, idempotent_safe, compensation_required
}

// CaseRecordContext carries the workflow coordinates of this record.
type CaseRecordContext struct {
	CaseID             string `json:"case_id"`
	State              string `json:"state"`
	OrchestrationRunID string `json:"orchestration_run_id,omitempty"`
	AttemptNumber      int    `json:"attempt_number,omitempty"`
}

// CaseRecordExecution captures activity execution details.
type CaseRecordExecution struct {
	ExecutionID   string    `json:"execution_id"`
	Status        string    `json:"status"` // success, failure, timeout, compensated
	ResultHash    string    `json:"result_hash,omitempty"`
	RetryCount    int       `json:"retry_count"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	DurationMs    int64     `json:"duration_ms,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// CaseRecordReceipts holds committee and external-system receipts attached to this record.
type CaseRecordReceipts struct {
	ProviderReceipts []PALReceiptRef      `json:"provider_receipts,omitempty"`
	ExternalReceipts []ExternalReceiptRef `json:"external_receipts,omitempty"`
}

// PALReceiptRef references a single committee provider call.
type PALReceiptRef struct {
	ReceiptID   string    `json:"receipt_id"`
	ProviderID  string    `json:"provider_id"`
	ModelID     string    `json:"model_id,omitempty"`
	InputHash   string    `json:"input_hash"`
	OutputHash  string    `json:"output_hash"`
	TokensIn    int       `json:"tokens_in,omitempty"`
	TokensOut   int       `json:"tokens_out,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// ExternalReceiptRef references a call to the external accounting API.
type ExternalReceiptRef struct {
	ReceiptID    string    `json:"receipt_id"`
	ExternalID   string    `json:"external_id,omitempty"` // e.g. the draft sales order reference
	SystemName   string    `json:"system_name"`
	RequestHash  string    `json:"request_hash"`
	ResponseHash string    `json:"response_hash"`
	HTTPStatus   int       `json:"http_status,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// CaseRecordReconciliation tracks denied and failed attempts for this record.
type CaseRecordReconciliation struct {
	CompensationRef string                `json:"compensation_ref,omitempty"`
	DeniedAttempts  []DeniedAttemptRecord `json:"denied_attempts,omitempty"`
	FailedAttempts  []FailedAttemptRecord `json:"failed_attempts,omitempty"`
}

// DeniedAttemptRecord records an approval or policy denial.
type DeniedAttemptRecord struct {
	AttemptID  string    `json:"attempt_id"`
	DecisionID string    `json:"decision_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FailedAttemptRecord records a failed activity attempt, e.g. a writer retry.
type FailedAttemptRecord struct {
	AttemptID   string    `json:"attempt_id"`
	Reason      string    `json:"reason"`
	RetryNumber int       `json:"retry_number"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CaseRecordAttestation provides cryptographic attestation over the record.
type CaseRecordAttestation struct {
	PackHash  string `json:"pack_hash"`
	Signature string `json:"signature,omitempty"`
	SignerID  string `json:"signer_id,omitempty"`
}
