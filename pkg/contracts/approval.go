package contracts

import "time"

// ApprovalReceipt records a human operator's decision on a case awaiting
// approval — the durable record of the ApprovalReceived event (§6).
type ApprovalReceipt struct {
	CaseID    string         `json:"case_id"`
	Approved  bool           `json:"approved"`
	Actor     string         `json:"actor"`
	Comments  string         `json:"comments,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Status    ApprovalStatus `json:"status"`

	// IntentHash, PublicKey and Signature back the cryptographic approval
	// ceremony: the operator UI signs IntentHash with an Ed25519 key over
	// WebCrypto, and the API verifies it before the receipt is honored.
	IntentHash string `json:"intent_hash,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	Signature  string `json:"signature,omitempty"`
}

// ApprovalStatus represents the current state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalExpired  ApprovalStatus = "EXPIRED"
)

// ApprovalRequest is the pending approval surfaced to the user once a case
// reaches AwaitingApproval.
type ApprovalRequest struct {
	RequestID  string         `json:"request_id"`
	CaseID     string         `json:"case_id"`
	IntentHash string         `json:"intent_hash"` // keyed lookup for the signed approval ceremony
	Status     ApprovalStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"` // approval.max-age-days sweeper horizon

	Receipt *ApprovalReceipt `json:"receipt,omitempty"`
}
