// Package executor runs the workflow engine's side-effecting activities —
// today, exclusively the Draft Writer's CreateDraft call — behind a single
// gate that requires a signed DecisionRecord and a signed
// AuthorizedExecutionIntent before any call reaches the external API.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/crypto"
)

// Executor runs an effect if and only if it has a valid, signed decision and
// a matching, signed execution intent.
type Executor interface {
	Execute(ctx context.Context, effect *contracts.Effect, decision *contracts.DecisionRecord, intent *contracts.AuthorizedExecutionIntent) (*contracts.Receipt, map[string]any, error)
}

// SafeExecutor enforces gating and idempotent, authorized execution of the
// writer activity. Receipt persistence is fail-closed: an unsigned receipt
// is never emitted.
type SafeExecutor struct {
	verifier     crypto.Verifier
	signer       crypto.Signer
	driver       ToolDriver
	receiptStore ReceiptStore
	outboxStore  OutboxStore
	auditLog     crypto.AuditLog
}

// NewSafeExecutor creates a new SafeExecutor.
func NewSafeExecutor(verifier crypto.Verifier, signer crypto.Signer, driver ToolDriver, receiptStore ReceiptStore, outbox OutboxStore, auditLog crypto.AuditLog) *SafeExecutor {
	return &SafeExecutor{
		verifier:     verifier,
		signer:       signer,
		driver:       driver,
		receiptStore: receiptStore,
		outboxStore:  outbox,
		auditLog:     auditLog,
	}
}

// Execute returns the Receipt (proof) and the tool's raw output, or an error.
// A second call carrying the same decision ID is idempotent: it returns the
// previously stored receipt without invoking the driver again (I4).
func (e *SafeExecutor) Execute(ctx context.Context, effect *contracts.Effect, decision *contracts.DecisionRecord, intent *contracts.AuthorizedExecutionIntent) (*contracts.Receipt, map[string]any, error) {
	if decision == nil {
		return nil, nil, errors.New("execution blocked: missing decision")
	}

	if receipt, ok := e.checkIdempotency(ctx, decision.ID); ok {
		return receipt, map[string]any{"already_executed": true, "receipt_id": receipt.ReceiptID}, nil
	}

	if err := e.validateGating(decision, intent); err != nil {
		return nil, nil, err
	}

	toolName, ok := effect.Params["tool_name"].(string)
	if !ok {
		if intent.AllowedTool == "" {
			return nil, nil, errors.New("tool_name missing in params")
		}
		toolName = intent.AllowedTool
	}
	if intent.AllowedTool != "" && intent.AllowedTool != toolName {
		return nil, nil, fmt.Errorf("intent violation: allowed_tool %q does not match requested %q", intent.AllowedTool, toolName)
	}

	if e.outboxStore != nil {
		if err := e.outboxStore.Schedule(ctx, effect, decision); err != nil {
			return nil, nil, fmt.Errorf("failed to schedule effect in outbox: %w", err)
		}
	}

	result, err := e.driver.Execute(ctx, toolName, effect.Params)
	if err != nil {
		return nil, nil, err
	}
	output, _ := result.(map[string]any)

	outputHash, err := canonicalHashOf(result)
	if err != nil {
		return nil, nil, fmt.Errorf("output hashing failed: %w", err)
	}

	receipt, err := e.createReceipt(ctx, decision, effect, outputHash)
	if err != nil {
		return nil, nil, fmt.Errorf("receipt creation failed: %w", err)
	}
	e.finalizeExecution(ctx, decision, toolName)

	return receipt, output, nil
}

func (e *SafeExecutor) checkIdempotency(ctx context.Context, decisionID string) (*contracts.Receipt, bool) {
	if e.receiptStore == nil {
		return nil, false
	}
	receipt, err := e.receiptStore.Get(ctx, decisionID)
	if err != nil || receipt == nil {
		return nil, false
	}
	return receipt, true
}

func (e *SafeExecutor) validateGating(decision *contracts.DecisionRecord, intent *contracts.AuthorizedExecutionIntent) error {
	if decision == nil {
		return errors.New("execution blocked: missing decision")
	}
	if intent == nil {
		return errors.New("execution blocked: missing execution intent")
	}
	if intent.DecisionID != decision.ID {
		return fmt.Errorf("intent mismatch: intent.decision_id %s != decision.id %s", intent.DecisionID, decision.ID)
	}
	if e.verifier != nil {
		if valid, err := e.verifier.VerifyDecision(decision); err != nil || !valid {
			return fmt.Errorf("execution blocked: invalid decision signature: %w", err)
		}
		if valid, err := e.verifier.VerifyIntent(intent); err != nil || !valid {
			return fmt.Errorf("execution blocked: invalid intent signature: %w", err)
		}
	}
	if decision.Verdict != contracts.VerdictPass && decision.Verdict != contracts.VerdictAutoAccept {
		return fmt.Errorf("execution blocked: decision verdict is %s (reason: %s)", decision.Verdict, decision.Reason)
	}
	if time.Now().After(intent.ExpiresAt) {
		return fmt.Errorf("execution blocked: intent expired at %s", intent.ExpiresAt)
	}
	return nil
}

func (e *SafeExecutor) createReceipt(ctx context.Context, decision *contracts.DecisionRecord, effect *contracts.Effect, outputHash string) (*contracts.Receipt, error) {
	prevHash := "GENESIS"
	lamportClock := uint64(1)

	if e.receiptStore != nil {
		if caseID, ok := decision.Input["case_id"].(string); ok && caseID != "" {
			if prev, err := e.receiptStore.GetLastForSession(ctx, caseID); err == nil && prev != nil {
				prevHash = prev.Signature
				lamportClock = prev.LamportClock + 1
			}
		}
	}

	receipt := &contracts.Receipt{
		ReceiptID:    "rcpt-" + decision.ID,
		DecisionID:   decision.ID,
		EffectID:     effect.EffectID,
		Status:       "SUCCESS",
		OutputHash:   outputHash,
		ArgsHash:     effect.ArgsHash,
		Timestamp:    time.Now(),
		PrevHash:     prevHash,
		LamportClock: lamportClock,
	}
	if e.signer == nil {
		return nil, errors.New("fail-closed: no receipt signer configured")
	}
	if err := e.signer.SignReceipt(receipt); err != nil {
		return nil, fmt.Errorf("fail-closed: receipt signing failed: %w", err)
	}
	if e.receiptStore != nil {
		if err := e.receiptStore.Store(ctx, receipt); err != nil {
			return nil, fmt.Errorf("receipt persistence failed: %w", err)
		}
	}
	return receipt, nil
}

func (e *SafeExecutor) finalizeExecution(ctx context.Context, decision *contracts.DecisionRecord, toolName string) {
	if e.outboxStore != nil {
		_ = e.outboxStore.MarkDone(ctx, decision.ID)
	}
	if e.auditLog != nil {
		_ = e.auditLog.Append("executor", "execute_effect", map[string]any{
			"decision_id": decision.ID,
			"tool":        toolName,
			"status":      "SUCCESS",
		})
	}
}
