// Package agent implements the Draft Writer activity (§4.5): the one
// workflow activity permitted to call the external accounting API's
// create-salesorder endpoint, gated by a signed DecisionRecord and
// AuthorizedExecutionIntent and made idempotent by the order fingerprint.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/connector"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/executor"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/fingerprint"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/store"
)

// CaseApprovalSource adapts a store.CaseStore to kernel.ApprovalDecisionSource
// so the effect boundary can resolve a case's recorded approval decision.
type CaseApprovalSource struct {
	cases store.CaseStore
}

// NewCaseApprovalSource builds a CaseApprovalSource over cases.
func NewCaseApprovalSource(cases store.CaseStore) *CaseApprovalSource {
	return &CaseApprovalSource{cases: cases}
}

// ApprovalFor implements kernel.ApprovalDecisionSource.
func (s *CaseApprovalSource) ApprovalFor(ctx context.Context, caseID string) (approved bool, recorded bool, err error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return false, false, fmt.Errorf("case approval source: %w", err)
	}
	if c.Approval == nil {
		return false, false, nil
	}
	return c.Approval.Approved, true, nil
}

// toolNameCreateSalesOrder is the tool name the executor's gating logic
// resolves from the Effect params (see pkg/executor.Execute).
const toolNameCreateSalesOrder = "create-salesorder"

// Writer runs the CreateDraft activity body: compute the fingerprint, check
// the fingerprint index for an existing draft, and — only on a miss — run
// the gated executor call against the accounting API.
type Writer struct {
	fingerprints store.FingerprintStore
	executor     executor.Executor
	boundary     *kernel.WiredEffectBoundary
}

// NewWriter builds a Writer over the fingerprint index and a SafeExecutor
// wired with a salesOrderDriver (see NewSalesOrderDriver). boundary may be
// nil, in which case CreateDraft relies solely on the executor's own
// decision/intent gating; when supplied, every call additionally passes
// through the kernel's effect interception boundary, PDP-evaluated against
// the case's recorded approval decision — a second, independently-sourced
// check ahead of the accounting API call.
func NewWriter(fingerprints store.FingerprintStore, exec executor.Executor, boundary *kernel.WiredEffectBoundary) *Writer {
	return &Writer{fingerprints: fingerprints, executor: exec, boundary: boundary}
}

// CreateDraftInput is everything the activity needs to attempt a draft
// creation.
type CreateDraftInput struct {
	CaseID         string
	CustomerID     string
	FileSHA256     string
	ReceivedAt     time.Time
	LineItems      []contracts.LineItem
	ResolvedLines  map[int]string // line index -> resolved catalog item id
	Decision       *contracts.DecisionRecord
	Intent         *contracts.AuthorizedExecutionIntent
}

// CreateDraftResult is the activity's outcome.
type CreateDraftResult struct {
	DraftReference string
	AlreadyExisted bool
	Receipt        *contracts.Receipt
}

// CreateDraft implements §4.5's draft writer: idempotent by fingerprint,
// gated by the decision/intent pair, and classified errors propagate
// unwrapped so the workflow engine can apply its retry table (§4.2).
func (w *Writer) CreateDraft(ctx context.Context, in CreateDraftInput) (CreateDraftResult, error) {
	fp := fingerprint.Compute(in.FileSHA256, in.CustomerID, in.LineItems, in.ReceivedAt)

	if existing, ok, err := w.fingerprints.Lookup(ctx, fp.Value); err != nil {
		return CreateDraftResult{}, fmt.Errorf("writer: fingerprint lookup: %w", err)
	} else if ok {
		return CreateDraftResult{DraftReference: existing, AlreadyExisted: true}, nil
	}

	lines := make([]connector.SalesOrderLine, 0, len(in.LineItems))
	for i, li := range in.LineItems {
		itemID, ok := in.ResolvedLines[i]
		if !ok {
			return CreateDraftResult{}, fmt.Errorf("writer: line %d has no resolved item id", i)
		}
		lines = append(lines, connector.SalesOrderLine{ItemID: itemID, Quantity: li.Quantity})
	}

	req := connector.SalesOrderRequest{
		CustomerID:     in.CustomerID,
		LineItems:      lines,
		Status:         "draft",
		IdempotencyKey: fp.Value,
	}

	effect := &contracts.Effect{
		EffectID:   in.Decision.ID + "-create-draft",
		EffectType: contracts.EffectTypeCallTool,
		Params: map[string]any{
			"tool_name": toolNameCreateSalesOrder,
			"request":   req,
		},
		IdempotencyKey: fp.Value,
	}

	boundaryEffectID, err := w.submitToBoundary(ctx, in.CaseID, fp.Value)
	if err != nil {
		return CreateDraftResult{}, err
	}

	receipt, output, err := w.executor.Execute(ctx, effect, in.Decision, in.Intent)
	if err != nil {
		if boundaryEffectID != "" {
			_ = w.boundary.Deny(ctx, boundaryEffectID, "", err.Error())
		}
		return CreateDraftResult{}, err
	}
	if boundaryEffectID != "" {
		_ = w.boundary.Execute(ctx, boundaryEffectID)
		_ = w.boundary.Complete(ctx, boundaryEffectID, receipt.ReceiptID)
	}

	draftRef, _ := output["draft_reference"].(string)
	if draftRef == "" {
		return CreateDraftResult{}, fmt.Errorf("writer: accounting API returned no draft reference")
	}

	stored, _, err := w.fingerprints.Insert(ctx, fp.Value, draftRef, in.CaseID)
	if err != nil {
		return CreateDraftResult{}, fmt.Errorf("writer: fingerprint insert: %w", err)
	}

	return CreateDraftResult{DraftReference: stored, Receipt: receipt}, nil
}

// submitToBoundary runs the effect through the kernel's effect interception
// boundary, PDP-evaluated against the case's recorded approval. Returns the
// boundary's effect ID (empty if no boundary is configured) and a non-nil
// error if the boundary denies or has not yet seen an approval for the case.
func (w *Writer) submitToBoundary(ctx context.Context, caseID, idempotencyKey string) (string, error) {
	if w.boundary == nil {
		return "", nil
	}

	req := &kernel.EffectRequest{
		EffectType: kernel.EffectTypeExternalAPICall,
		Subject:    kernel.EffectSubject{SubjectID: "draft-writer", SubjectType: "module"},
		Idempotency: &kernel.IdempotencyConfig{
			Key:           idempotencyKey,
			KeyDerivation: "effect_id",
		},
		Context: &kernel.EffectContext{LoopID: caseID},
	}
	lifecycle, err := w.boundary.Submit(ctx, req)
	if err != nil {
		return "", fmt.Errorf("writer: effect boundary: %w", err)
	}
	if lifecycle.State != "approved" {
		return "", fmt.Errorf("writer: effect boundary blocked create-draft: case %s is %s", caseID, lifecycle.State)
	}
	return req.EffectID, nil
}
