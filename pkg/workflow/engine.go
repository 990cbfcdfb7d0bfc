// Package workflow implements the Case state machine (§4.2): a single
// dispatcher loop, driven by a deterministic scheduler, that advances every
// in-flight case one activity at a time and suspends at each external-event
// wait by doing nothing more than leaving the case's durable state where a
// later signal will find it.
package workflow

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/agent"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/api"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/approval"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/crypto"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/fingerprint"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel/retry"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernelruntime"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/parser"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/resolver"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/store"
)

// Step names double as retryTable keys and kernel.SchedulerEvent.EventType
// values — each is one activity in §4.2's lifecycle.
const (
	stepParseExcel  = "ParseExcel"
	stepResolve     = "ResolveCustomerItems"
	stepCreateDraft = "CreateDraft"
)

// retryTable holds the activity retry policy for one named activity
// (§4.2's retry table). Every activity the engine runs looks itself up
// here by name; an activity with no entry runs once, uncounted.
var retryTable = map[string]retry.BackoffPolicy{
	"StoreFile":            {PolicyID: "StoreFile", BaseMs: 500, MaxMs: 10_000, MaxJitterMs: 250, MaxAttempts: 5},
	stepParseExcel:         {PolicyID: stepParseExcel, BaseMs: 1_000, MaxMs: 30_000, MaxJitterMs: 500, MaxAttempts: 3},
	"RunCommittee":         {PolicyID: "RunCommittee", BaseMs: 2_000, MaxMs: 60_000, MaxJitterMs: 1_000, MaxAttempts: 4},
	stepResolve:            {PolicyID: stepResolve, BaseMs: 500, MaxMs: 10_000, MaxJitterMs: 250, MaxAttempts: 3},
	stepCreateDraft:        {PolicyID: stepCreateDraft, BaseMs: 1_000, MaxMs: 20_000, MaxJitterMs: 500, MaxAttempts: 5},
	"NotifyUser":           {PolicyID: "NotifyUser", BaseMs: 500, MaxMs: 5_000, MaxJitterMs: 250, MaxAttempts: 3},
}

// nonRetryable activity errors carry this sentinel classification; the
// engine stops retrying and moves the case to Failed on the first one.
type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable wraps err so attempt classifies it COMPENSATION_REQUIRED
// instead of retrying — used for errors the workflow knows a retry can
// never fix (a malformed workbook, a rejected approval).
func NonRetryable(err error) error { return &nonRetryableError{err: err} }

func asNonRetryable(err error, target **nonRetryableError) bool {
	nr, ok := err.(*nonRetryableError)
	if ok {
		*target = nr
	}
	return ok
}

// Notifier delivers a user-facing notification for the NotifyUser
// activity (§4.2). The default engine logs to stderr; production wiring
// supplies something that actually reaches the submitter.
type Notifier interface {
	Notify(ctx context.Context, caseID, event, message string) error
}

// LogNotifier is the Notifier used when none is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, caseID, event, message string) error {
	fmt.Fprintf(os.Stderr, "case %s: %s: %s\n", caseID, event, message)
	return nil
}

// Engine runs every Case's lifecycle (§4.2) from a single dispatch loop
// (Drive) fed by a kernel.DeterministicScheduler. It implements
// api.WorkflowSignaler so the Ingress API can start cases and deliver
// signals without knowing the engine's internals; signal delivery mutates
// the case's durable state and enqueues the next step rather than waking an
// in-process goroutine, so a signal is honored correctly even if it arrives
// after the dispatcher has restarted.
type Engine struct {
	cases    store.CaseStore
	parser   *parser.Parser
	resolver *resolver.Resolver
	writer   *agent.Writer
	signer   crypto.Signer
	notifier Notifier

	scheduler kernel.DeterministicScheduler
	eventLog  kernel.EventLog
	runtime   kernelruntime.KernelRuntime
	clock     func() time.Time

	approvalMaxAge time.Duration
}

// Deps bundles the Engine's collaborators (§4.2's activity table: each
// activity below is one of these).
type Deps struct {
	Cases    store.CaseStore
	Parser   *parser.Parser
	Resolver *resolver.Resolver
	Writer   *agent.Writer
	Signer   crypto.Signer
	Notifier Notifier

	// Scheduler orders every step the dispatch loop runs; it defaults to an
	// in-process kernel.NewInMemoryScheduler. A durable deployment wires one
	// backed by the same store the cases and event log use.
	Scheduler kernel.DeterministicScheduler
	// EventLog records every transition as a hash-chained EventEnvelope,
	// giving pkg/replay a history to check a replayed case against. Defaults
	// to an in-process kernel.NewInMemoryEventLog; production wiring is
	// store.NewPostgresEventLog so the history survives a restart.
	EventLog kernel.EventLog
	// Runtime is the sovereignty gateway SubmitIntent runs through ahead of
	// CreateDraft (§4.5, I5). Nil disables the gate — tests and early
	// development only.
	Runtime kernelruntime.KernelRuntime
	// Clock overrides wall-clock reads; nil defaults to time.Now. Tests and
	// pkg/replay inject a fixed or replayed clock so re-running a case's
	// history never reads the live clock.
	Clock func() time.Time

	ApprovalMaxAge time.Duration // default 30 days if zero
}

func NewEngine(d Deps) *Engine {
	if d.Notifier == nil {
		d.Notifier = LogNotifier{}
	}
	if d.Scheduler == nil {
		d.Scheduler = kernel.NewInMemoryScheduler()
	}
	if d.EventLog == nil {
		d.EventLog = kernel.NewInMemoryEventLog()
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now() }
	}
	if d.ApprovalMaxAge == 0 {
		d.ApprovalMaxAge = 30 * 24 * time.Hour
	}
	return &Engine{
		cases:          d.Cases,
		parser:         d.Parser,
		resolver:       d.Resolver,
		writer:         d.Writer,
		signer:         d.Signer,
		notifier:       d.Notifier,
		scheduler:      d.Scheduler,
		eventLog:       d.EventLog,
		runtime:        d.Runtime,
		clock:          d.Clock,
		approvalMaxAge: d.ApprovalMaxAge,
	}
}

// Drive runs the dispatch loop until ctx is cancelled or the scheduler is
// closed. It is meant to be started once, at process boot, as the single
// goroutine that ever advances any case — no step handler below spawns
// another. When the popped event's ScheduledAt is in the future (a retry
// backoff), Drive waits for it here, in the one place a wait is allowed; the
// scheduler's heap still lets an earlier-due event from a different case
// jump the queue; see kernel.InMemoryScheduler.Next.
func (e *Engine) Drive(ctx context.Context) {
	for {
		ev, err := e.scheduler.Next(ctx)
		if err != nil {
			return
		}
		if wait := ev.ScheduledAt.Sub(e.clock()); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}
		e.dispatch(ctx, ev)
	}
}

func (e *Engine) dispatch(ctx context.Context, ev *kernel.SchedulerEvent) {
	switch ev.EventType {
	case stepParseExcel:
		e.runParseExcel(ctx, ev)
	case stepResolve:
		e.runResolve(ctx, ev)
	case stepCreateDraft:
		e.runCreateDraft(ctx, ev)
	default:
		fmt.Fprintf(os.Stderr, "workflow: unknown step %q\n", ev.EventType)
	}
}

// Recover re-enqueues every non-terminal case's next pending step after a
// restart (§4.2 I5: a crashed dispatcher must not strand a case). Cases
// parked waiting on a human signal need no action — they already sit in
// CaseStore in the state their Signal method checks, and resume from there.
func (e *Engine) Recover(ctx context.Context) error {
	active, err := e.cases.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("workflow: recover: list active cases: %w", err)
	}
	for _, c := range active {
		var step string
		switch c.State {
		case contracts.CaseStatePending, contracts.CaseStateParsing:
			step = stepParseExcel
		case contracts.CaseStateResolvingCustomer:
			step = stepResolve
		case contracts.CaseStateDrafting:
			step = stepCreateDraft
		default:
			continue
		}
		if err := e.enqueue(ctx, c.CaseID, step, 0); err != nil {
			return fmt.Errorf("workflow: recover case %s: %w", c.CaseID, err)
		}
	}
	return nil
}

// ExpireApproval cancels caseID if it is still AwaitingApproval past its
// ApprovalExpiresAt horizon. It is called by cmd/worker's periodic sweep,
// never by Drive — the dispatch loop itself never waits on wall-clock time
// to decide an approval has expired.
func (e *Engine) ExpireApproval(ctx context.Context, caseID string, now time.Time) error {
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		return fmt.Errorf("workflow: expire approval: %w", err)
	}
	if c.State != contracts.CaseStateAwaitingApproval {
		return nil
	}
	req := contracts.ApprovalRequest{Status: contracts.ApprovalPending, ExpiresAt: c.ApprovalExpiresAt}
	if !approval.Expired(req, now.Unix()) {
		return nil
	}
	if err := e.transition(ctx, c, "ApprovalExpired", contracts.CaseStateCancelled); err != nil {
		return err
	}
	return e.notifier.Notify(ctx, c.CaseID, "ApprovalExpired", "no approval received within the configured window")
}

// StartCase persists the Case and enqueues its first step, returning a
// workflow instance id derived deterministically from the case id (§4.2:
// "continue-as-new" resumes keep the same instance id across restarts
// because it is a pure function of CaseID, never random).
func (e *Engine) StartCase(ctx context.Context, c *contracts.Case) (string, error) {
	c.WorkflowInstanceID = "wf-" + c.CaseID
	if err := e.cases.Create(ctx, c); err != nil {
		return "", fmt.Errorf("workflow: start case: %w", err)
	}
	if err := e.enqueue(ctx, c.CaseID, stepParseExcel, 0); err != nil {
		return "", fmt.Errorf("workflow: start case: %w", err)
	}
	return c.WorkflowInstanceID, nil
}

func (e *Engine) SignalReupload(ctx context.Context, caseID, newBlobRef, correlationID string) error {
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if c.State != contracts.CaseStateBlocked {
		return fmt.Errorf("workflow: case %s is not awaiting a reupload", caseID)
	}
	c.SourceBlobRef = newBlobRef
	c.CorrelationID = correlationID
	if err := e.transition(ctx, c, "ReuploadReceived", contracts.CaseStatePending); err != nil {
		return err
	}
	return e.enqueue(ctx, caseID, stepParseExcel, 0)
}

func (e *Engine) SignalCorrections(ctx context.Context, caseID string, corrections map[string]string) error {
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if c.State != contracts.CaseStateBlocked && c.State != contracts.CaseStateValidating {
		return fmt.Errorf("workflow: case %s is not awaiting corrections", caseID)
	}
	if c.CanonicalOrder == nil {
		return fmt.Errorf("workflow: case %s has no parsed order to correct", caseID)
	}
	applyCorrections(c.CanonicalOrder, corrections)
	if err := e.transition(ctx, c, "ResolutionStarted", contracts.CaseStateResolvingCustomer); err != nil {
		return err
	}
	return e.enqueue(ctx, caseID, stepResolve, 0)
}

func (e *Engine) SignalSelections(ctx context.Context, caseID string, selections api.CaseSelections) error {
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if c.State != contracts.CaseStateResolvingCustomer && c.State != contracts.CaseStateResolvingItems {
		return fmt.Errorf("workflow: case %s is not awaiting resolution selections", caseID)
	}
	if c.Resolution == nil {
		return fmt.Errorf("workflow: case %s has no resolution to select against", caseID)
	}
	applySelections(c.Resolution, selections, e.clock().UTC())
	return e.enterAwaitingApproval(ctx, c)
}

func (e *Engine) SignalApproval(ctx context.Context, caseID string, receipt contracts.ApprovalReceipt) error {
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if c.State != contracts.CaseStateAwaitingApproval {
		return fmt.Errorf("workflow: case %s is not awaiting approval", caseID)
	}
	receipt.Timestamp = e.clock().UTC()
	c.Approval = &receipt

	if !receipt.Approved {
		if err := e.transition(ctx, c, "ApprovalRejected", contracts.CaseStateCancelled); err != nil {
			return err
		}
		return e.notifier.Notify(ctx, c.CaseID, "CaseCancelled", "approval was rejected by "+receipt.Actor)
	}

	if err := e.transition(ctx, c, "DraftingStarted", contracts.CaseStateDrafting); err != nil {
		return err
	}
	return e.enqueue(ctx, caseID, stepCreateDraft, 0)
}

// enqueue schedules step to run for caseID at the current time — the normal
// case, for a step with no backoff to honor. Retries schedule their own
// follow-up event directly from attempt, at a future ScheduledAt.
func (e *Engine) enqueue(ctx context.Context, caseID, step string, attemptNum int) error {
	return e.scheduler.Schedule(ctx, &kernel.SchedulerEvent{
		EventID:     step + "-" + caseID,
		EventType:   step,
		ScheduledAt: e.clock(),
		LoopID:      caseID,
		Payload:     map[string]interface{}{"case_id": caseID, "attempt": attemptNum},
	})
}

func caseAndAttempt(ev *kernel.SchedulerEvent) (string, int) {
	caseID, _ := ev.Payload["case_id"].(string)
	attempt := 0
	switch a := ev.Payload["attempt"].(type) {
	case int:
		attempt = a
	case float64: // round-tripped through JSON by a durable scheduler
		attempt = int(a)
	}
	return caseID, attempt
}

// stepOutcome distinguishes how a step handler should proceed after one
// activity attempt.
type stepOutcome int

const (
	outcomeDone stepOutcome = iota
	outcomeRetryScheduled
	outcomeFailed
)

// attempt runs fn once as attempt number attemptNum of the named activity.
// A success returns outcomeDone. A retryable failure under the policy's
// MaxAttempts schedules the next attempt on the scheduler, at a future
// ScheduledAt computed from the deterministic backoff table, and returns
// outcomeRetryScheduled — the caller does nothing further; Drive picks the
// rescheduled event back up as an ordinary step once its time comes. A
// non-retryable or exhausted failure returns outcomeFailed with err set.
func (e *Engine) attempt(ctx context.Context, caseID, name string, attemptNum int, fn func() error) (stepOutcome, error) {
	err := fn()
	if err == nil {
		return outcomeDone, nil
	}

	var nr *nonRetryableError
	if asNonRetryable(err, &nr) {
		return outcomeFailed, nr.err
	}

	policy, ok := retryTable[name]
	maxAttempts := 1
	if ok {
		maxAttempts = policy.MaxAttempts
	}
	if attemptNum >= maxAttempts-1 {
		return outcomeFailed, err
	}

	delay := retry.ComputeBackoff(retry.BackoffParams{
		PolicyID:     name,
		AdapterID:    "workflow-engine",
		EffectID:     caseID,
		AttemptIndex: attemptNum,
	}, policy)

	schedErr := e.scheduler.Schedule(ctx, &kernel.SchedulerEvent{
		EventID:     fmt.Sprintf("%s-%s-%d", name, caseID, attemptNum+1),
		EventType:   name,
		ScheduledAt: e.clock().Add(delay),
		LoopID:      caseID,
		Payload:     map[string]interface{}{"case_id": caseID, "attempt": attemptNum + 1},
	})
	if schedErr != nil {
		return outcomeFailed, schedErr
	}
	return outcomeRetryScheduled, nil
}

// transition appends an audit event, appends the same event to the kernel
// event log for replay, and persists the case's new state.
func (e *Engine) transition(ctx context.Context, c *contracts.Case, event string, to contracts.CaseState) error {
	from := c.State
	c.State = to
	c.UpdatedAt = e.clock().UTC()
	c.AuditTrail = append(c.AuditTrail, contracts.CaseAuditEvt{
		SequenceNumber: len(c.AuditTrail) + 1,
		EventType:      event,
		Actor:          "workflow-engine",
		FromState:      from,
		ToState:        to,
		OccurredAt:     c.UpdatedAt,
	})

	if e.eventLog != nil {
		_, logErr := e.eventLog.Append(ctx, &kernel.EventEnvelope{
			EventID:    c.CaseID + "-" + event,
			EventType:  event,
			ObservedAt: c.UpdatedAt,
			ReceivedAt: c.UpdatedAt,
			Payload: map[string]interface{}{
				"case_id":    c.CaseID,
				"from_state": string(from),
				"to_state":   string(to),
			},
			Causation: &kernel.CausationContext{CorrelationID: c.CorrelationID},
		})
		if logErr != nil {
			fmt.Fprintf(os.Stderr, "workflow: event log append failed for case %s: %v\n", c.CaseID, logErr)
		}
	}

	return e.cases.Update(ctx, c)
}

func (e *Engine) fail(ctx context.Context, c *contracts.Case, activity string, err error) {
	c.Errors = append(c.Errors, contracts.CaseError{
		Activity:       activity,
		Code:           "ACTIVITY_FAILED",
		Message:        err.Error(),
		Classification: "COMPENSATION_REQUIRED",
		OccurredAt:     e.clock().UTC(),
	})
	_ = e.transition(ctx, c, activity+"Failed", contracts.CaseStateFailed)
	_ = e.notifier.Notify(ctx, c.CaseID, "CaseFailed", err.Error())
}

func (e *Engine) enterAwaitingApproval(ctx context.Context, c *contracts.Case) error {
	c.ApprovalExpiresAt = e.clock().Add(e.approvalMaxAge).UTC()
	if err := e.transition(ctx, c, "AwaitingApproval", contracts.CaseStateAwaitingApproval); err != nil {
		return err
	}
	return e.notifier.Notify(ctx, c.CaseID, "AwaitingApproval", "case is ready for human approval")
}

func (e *Engine) runParseExcel(ctx context.Context, ev *kernel.SchedulerEvent) {
	caseID, attemptNum := caseAndAttempt(ev)
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "workflow: load case %s: %v\n", caseID, err)
		return
	}
	if c.State != contracts.CaseStatePending && c.State != contracts.CaseStateParsing {
		return // stale event from a superseded attempt or a since-resumed case
	}
	if c.State == contracts.CaseStatePending {
		if err := e.transition(ctx, c, "ParsingStarted", contracts.CaseStateParsing); err != nil {
			return
		}
	}

	var order *contracts.CanonicalOrder
	outcome, aerr := e.attempt(ctx, caseID, stepParseExcel, attemptNum, func() error {
		o, perr := e.parser.Parse(ctx, c.CaseID, c.SourceBlobRef, c.FileSHA256)
		if perr != nil {
			return perr
		}
		order = o
		return nil
	})
	switch outcome {
	case outcomeRetryScheduled:
		return
	case outcomeFailed:
		e.fail(ctx, c, stepParseExcel, aerr)
		return
	}
	c.CanonicalOrder = order

	if order.HasBlocker() {
		if err := e.transition(ctx, c, "AwaitingReupload", contracts.CaseStateBlocked); err != nil {
			return
		}
		_ = e.notifier.Notify(ctx, c.CaseID, "NeedsReupload", "the uploaded file has blocking issues")
		return // durable: SignalReupload/SignalCorrections resumes this case
	}

	if err := e.transition(ctx, c, "ResolutionStarted", contracts.CaseStateResolvingCustomer); err != nil {
		return
	}
	_ = e.enqueue(ctx, caseID, stepResolve, 0)
}

func (e *Engine) runResolve(ctx context.Context, ev *kernel.SchedulerEvent) {
	caseID, attemptNum := caseAndAttempt(ev)
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "workflow: load case %s: %v\n", caseID, err)
		return
	}
	if c.State != contracts.CaseStateResolvingCustomer {
		return
	}

	var resolution contracts.CaseResolution
	outcome, aerr := e.attempt(ctx, caseID, stepResolve, attemptNum, func() error {
		res, rerr := e.resolveAll(ctx, c.CanonicalOrder)
		if rerr != nil {
			return rerr
		}
		resolution = res
		return nil
	})
	switch outcome {
	case outcomeRetryScheduled:
		return
	case outcomeFailed:
		e.fail(ctx, c, stepResolve, aerr)
		return
	}
	c.Resolution = &resolution

	if needsHumanResolution(resolution) {
		if err := e.transition(ctx, c, "AwaitingSelections", contracts.CaseStateResolvingItems); err != nil {
			return
		}
		_ = e.notifier.Notify(ctx, c.CaseID, "NeedsSelections", "customer or item match requires a human decision")
		return // durable: SignalSelections resumes this case
	}

	_ = e.enterAwaitingApproval(ctx, c)
}

func (e *Engine) runCreateDraft(ctx context.Context, ev *kernel.SchedulerEvent) {
	caseID, attemptNum := caseAndAttempt(ev)
	c, err := e.cases.Get(ctx, caseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "workflow: load case %s: %v\n", caseID, err)
		return
	}
	if c.State != contracts.CaseStateDrafting {
		return
	}

	var draft agent.CreateDraftResult
	outcome, aerr := e.attempt(ctx, caseID, stepCreateDraft, attemptNum, func() error {
		decision, intent, derr := e.issueDraftGrant(ctx, c, c.CanonicalOrder)
		if derr != nil {
			return NonRetryable(derr)
		}
		resolvedLines := make(map[int]string, len(c.Resolution.Items))
		for _, item := range c.Resolution.Items {
			if item.MatchedID != "" {
				resolvedLines[item.LineIndex] = item.MatchedID
			}
		}
		res, werr := e.writer.CreateDraft(ctx, agent.CreateDraftInput{
			CaseID:        c.CaseID,
			CustomerID:    c.Resolution.Customer.MatchedID,
			FileSHA256:    c.FileSHA256,
			ReceivedAt:    c.CanonicalOrder.Meta.ReceivedAt,
			LineItems:     c.CanonicalOrder.LineItems,
			ResolvedLines: resolvedLines,
			Decision:      decision,
			Intent:        intent,
		})
		if werr != nil {
			return werr
		}
		draft = res
		return nil
	})
	switch outcome {
	case outcomeRetryScheduled:
		return
	case outcomeFailed:
		e.fail(ctx, c, stepCreateDraft, aerr)
		return
	}
	c.DraftReference = draft.DraftReference

	_ = e.transition(ctx, c, "CaseCompleted", contracts.CaseStateCompleted)
	_ = e.notifier.Notify(ctx, c.CaseID, "CaseCompleted", "draft created: "+draft.DraftReference)
}

func (e *Engine) resolveAll(ctx context.Context, order *contracts.CanonicalOrder) (contracts.CaseResolution, error) {
	// The parser does not currently surface a separate tax-id column, so
	// customer resolution runs on the raw name alone; an exact or fuzzy
	// name match is still enough to auto-resolve most customers.
	custResult, err := e.resolver.ResolveCustomer(ctx, order.Customer.RawName, "")
	if err != nil {
		return contracts.CaseResolution{}, fmt.Errorf("workflow: resolve customer: %w", err)
	}

	items := make([]contracts.ResolutionResult, 0, len(order.LineItems))
	for i, li := range order.LineItems {
		r, err := e.resolver.ResolveItem(ctx, i, li)
		if err != nil {
			return contracts.CaseResolution{}, fmt.Errorf("workflow: resolve line %d: %w", i, err)
		}
		items = append(items, r)
	}

	return contracts.CaseResolution{Customer: custResult, Items: items}, nil
}

func needsHumanResolution(res contracts.CaseResolution) bool {
	if res.Customer.Status != contracts.ResolutionResolved {
		return true
	}
	for _, it := range res.Items {
		if it.Status != contracts.ResolutionResolved {
			return true
		}
	}
	return false
}

func applySelections(res *contracts.CaseResolution, sel api.CaseSelections, now time.Time) {
	if sel.Customer != nil {
		res.Customer.MatchedID = *sel.Customer
		res.Customer.Status = contracts.ResolutionResolved
		res.Customer.SelectedBy = "human"
		res.Customer.SelectedAt = now
	}
	for i := range res.Items {
		if id, ok := sel.Items[res.Items[i].LineIndex]; ok {
			res.Items[i].MatchedID = id
			res.Items[i].Status = contracts.ResolutionResolved
			res.Items[i].SelectedBy = "human"
			res.Items[i].SelectedAt = now
		}
	}
}

// applyCorrections re-points ambiguous column assignments at the columns
// the human operator named; the engine re-derives nothing else — the
// corrected canonical order is accepted as-is on the next pass.
func applyCorrections(order *contracts.CanonicalOrder, corrections map[string]string) {
	if order.Meta.Corrections == nil {
		order.Meta.Corrections = make(map[string]string, len(corrections))
	}
	for field, columnID := range corrections {
		order.Meta.Corrections[field] = columnID
	}
}

// issueDraftGrant builds and signs the DecisionRecord/AuthorizedExecutionIntent
// pair the gated Draft Writer requires (§4.5), binding the intent's
// idempotency key to the order fingerprint so a retried CreateDraft call is
// provably the same authorization. It first clears the write through the
// kernel runtime's sovereignty gate (I5): a CreateDraft call is never issued
// without that intent having been accepted and audit-logged first.
func (e *Engine) issueDraftGrant(ctx context.Context, c *contracts.Case, order *contracts.CanonicalOrder) (*contracts.DecisionRecord, *contracts.AuthorizedExecutionIntent, error) {
	if e.runtime != nil {
		if err := e.submitSovereigntyIntent(ctx, c); err != nil {
			return nil, nil, fmt.Errorf("workflow: sovereignty gate: %w", err)
		}
	}

	fp := fingerprint.Compute(c.FileSHA256, c.Resolution.Customer.MatchedID, order.LineItems, order.Meta.ReceivedAt)

	decision := &contracts.DecisionRecord{
		ID:        "dec-" + c.CaseID,
		CaseID:    c.CaseID,
		SubjectID: c.Approval.Actor,
		Action:    "create-draft",
		Resource:  c.CaseID,
		Verdict:   "PASS",
		Reason:    "human approval received",
	}
	if err := e.signer.SignDecision(decision); err != nil {
		return nil, nil, fmt.Errorf("workflow: sign decision: %w", err)
	}

	now := e.clock().UTC()
	intent := &contracts.AuthorizedExecutionIntent{
		ID:             "intent-" + c.CaseID,
		DecisionID:     decision.ID,
		IdempotencyKey: fp.Value,
		IssuedAt:       now,
		ExpiresAt:      now.Add(24 * time.Hour),
		AllowedTool:    "create-draft",
	}
	if err := e.signer.SignIntent(intent); err != nil {
		return nil, nil, fmt.Errorf("workflow: sign intent: %w", err)
	}

	return decision, intent, nil
}

// submitSovereigntyIntent proposes the create-draft effect to the kernel
// runtime ahead of signing the execution intent, binding the call to this
// case's tenant so a cross-tenant write is rejected at the sovereignty
// barrier rather than discovered downstream (§4.5, I5).
func (e *Engine) submitSovereigntyIntent(ctx context.Context, c *contracts.Case) error {
	payload, err := json.Marshal(map[string]string{"case_id": c.CaseID, "action": "create-draft"})
	if err != nil {
		return fmt.Errorf("marshal intent payload: %w", err)
	}
	sigHex, err := e.signer.Sign(payload)
	if err != nil {
		return fmt.Errorf("sign intent payload: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("decode intent signature: %w", err)
	}

	actorID := "workflow-engine"
	if ed, ok := e.signer.(*crypto.Ed25519Signer); ok {
		actorID = ed.KeyID
	}

	intent := &kernelruntime.SignedIntent{
		TenantID: c.TenantID,
		ActorID:  actorID,
		Context: &kernelruntime.ActorContext{
			TenantID: c.TenantID,
			Identity: kernelruntime.Identity{Subject: c.Approval.Actor},
		},
		Payload:   payload,
		Signature: sig,
	}

	_, err = e.runtime.SubmitIntent(ctx, intent)
	return err
}

// RetryPolicy exposes the configured backoff policy for an activity name,
// used by observability to report retry budgets without duplicating the
// table.
func RetryPolicy(activity string) (retry.BackoffPolicy, bool) {
	p, ok := retryTable[activity]
	return p, ok
}
