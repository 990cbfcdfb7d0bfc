package contracts

import "time"

// DecisionRecord is the signed authorization backing a side-effecting
// activity. The Draft Writer activity (§4.5) requires one before it is
// allowed to call CreateDraft: either the Approval Gate's auto-accept
// verdict on a Committee Result, or a human ApprovalReceipt.
type DecisionRecord struct {
	ID     string `json:"id"`
	CaseID string `json:"case_id"`
	TaskID string `json:"task_id,omitempty"` // committee task this decision evaluates, if any

	SubjectID string `json:"subject_id"` // approver or "approval-gate"
	Action    string `json:"action"`     // e.g. "create-draft"
	Resource  string `json:"resource"`   // e.g. the case id

	PolicyVersion      string `json:"policy_version"`
	PolicyBackend      string `json:"policy_backend,omitempty"` // "cel"
	PolicyContentHash  string `json:"policy_content_hash,omitempty"`
	PolicyDecisionHash string `json:"policy_decision_hash,omitempty"` // SHA-256 of the canonical decision

	Verdict string         `json:"verdict"` // PASS, FAIL, AUTO_ACCEPT, NEEDS_HUMAN
	Reason  string         `json:"reason"`
	Input   map[string]any `json:"input_context,omitempty"` // for explainability

	// FieldVerdicts holds the per-field auto-accept outcome of a Committee
	// Result evaluation, keyed by canonical field name.
	FieldVerdicts map[string]string `json:"field_verdicts,omitempty"`

	Signature     string    `json:"signature"`
	SignatureType string    `json:"signature_type"`
	Timestamp     time.Time `json:"timestamp"`
}

// Verdict constants.
const (
	VerdictPass       = "PASS"
	VerdictFail       = "FAIL"
	VerdictAutoAccept = "AUTO_ACCEPT"
	VerdictNeedsHuman = "NEEDS_HUMAN"
)

// AuthorizedExecutionIntent is a derived, signed intent to execute a specific
// effect, decoupling "permission" (DecisionRecord) from "action" (execution).
// Binds the writer's idempotency key to the order fingerprint (§3, I4).
type AuthorizedExecutionIntent struct {
	ID               string    `json:"id"` // derived hash
	DecisionID       string    `json:"decision_id"`
	EffectDigestHash string    `json:"effect_digest_hash"`
	IdempotencyKey   string    `json:"idempotency_key"` // == order fingerprint for create-draft
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Signer           string    `json:"signer"`
	Signature        string    `json:"signature"`
	AllowedTool      string    `json:"allowed_tool"` // "create-draft"
}

// PolicyRef is a content-addressed reference to a policy artifact (e.g. the
// CEL expression set used for a given PolicyVersion).
type PolicyRef struct {
	URI  string `json:"uri"`
	Hash string `json:"hash"`
}
