// Package kernel provides PDP integration for the effect boundary.
// Per Section 1.4 - Effect Interception Boundary
package kernel

import (
	"context"
	"fmt"
)

// ApprovalDecisionSource resolves the human approval decision already
// recorded for the case an effect belongs to (§4.2's AwaitingApproval /
// ApprovalReceived). The effect's EffectContext.LoopID field carries the
// case ID — a control-loop identifier in the boundary's original design,
// repurposed here since a case is this system's only "loop".
type ApprovalDecisionSource interface {
	ApprovalFor(ctx context.Context, caseID string) (approved bool, recorded bool, err error)
}

// CaseApprovalPDPAdapter adapts a case's recorded approval decision to the
// kernel's generic PDPEvaluator interface: an effect submitted before the
// case has an approval on file comes back REQUIRE_APPROVAL, a rejected case
// comes back DENY, and an approved case comes back ALLOW.
type CaseApprovalPDPAdapter struct {
	source ApprovalDecisionSource
}

// NewCaseApprovalPDPAdapter builds an adapter over source.
func NewCaseApprovalPDPAdapter(source ApprovalDecisionSource) *CaseApprovalPDPAdapter {
	return &CaseApprovalPDPAdapter{source: source}
}

// Evaluate implements PDPEvaluator for the effect boundary.
func (a *CaseApprovalPDPAdapter) Evaluate(ctx context.Context, req *EffectRequest) (string, string, error) {
	caseID := ""
	if req.Context != nil {
		caseID = req.Context.LoopID
	}
	if caseID == "" {
		return "DENY", "", fmt.Errorf("kernel: effect %s carries no case id", req.EffectID)
	}

	approved, recorded, err := a.source.ApprovalFor(ctx, caseID)
	if err != nil {
		return "DENY", "", err
	}
	if !recorded {
		return "REQUIRE_APPROVAL", "", nil
	}
	if !approved {
		return "DENY", req.EffectID, nil
	}
	return "ALLOW", req.EffectID, nil
}

// WiredEffectBoundary is an effect boundary wired to a case's approval
// history instead of a standalone policy engine: every side-effecting
// Draft Writer call passes through it so a case that has not yet been
// approved (or was rejected) cannot reach the accounting API.
type WiredEffectBoundary struct {
	*InMemoryEffectBoundary
	pdpAdapter *CaseApprovalPDPAdapter
}

// NewWiredEffectBoundary creates an effect boundary wired to case approval
// history.
func NewWiredEffectBoundary(source ApprovalDecisionSource, log EventLog) *WiredEffectBoundary {
	adapter := NewCaseApprovalPDPAdapter(source)
	boundary := NewInMemoryEffectBoundary(adapter, log)

	return &WiredEffectBoundary{
		InMemoryEffectBoundary: boundary,
		pdpAdapter:             adapter,
	}
}
