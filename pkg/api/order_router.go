// Package api implements the Ingress API (§4.1): the only component
// allowed to accept external triggers and start or signal a case workflow.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/store"
)

// CaseSelections carries a human operator's customer/item resolution
// choices from signal-selections (§4.1, §4.5).
type CaseSelections struct {
	Customer *string        `json:"customer,omitempty"`
	Items    map[int]string `json:"items,omitempty"`
}

// WorkflowSignaler is the workflow engine's external-event intake. Ingress
// calls it to start a new case or deliver a signal to a running one. The
// signal handlers check the case's current state before calling it, and
// answer any error a signal method returns with 409 invalid-state.
type WorkflowSignaler interface {
	StartCase(ctx context.Context, c *contracts.Case) (workflowInstanceID string, err error)
	SignalReupload(ctx context.Context, caseID, newBlobRef, correlationID string) error
	SignalCorrections(ctx context.Context, caseID string, corrections map[string]string) error
	SignalSelections(ctx context.Context, caseID string, selections CaseSelections) error
	SignalApproval(ctx context.Context, caseID string, receipt contracts.ApprovalReceipt) error
}

// DependencyChecker pings one external dependency for get-health.
type DependencyChecker func(ctx context.Context) bool

// OrderService implements the six Ingress API operations over a CaseStore
// and a WorkflowSignaler.
type OrderService struct {
	cases       store.CaseStore
	engine      WorkflowSignaler
	deps        map[string]DependencyChecker
	idempotency IdempotencyStorer
}

// NewOrderService builds an OrderService. deps names the dependencies
// get-health reports on (e.g. "database", "accounting-api"). idempotency may
// be nil, in which case the four signal routes accept retries uncached — a
// test-only configuration; production wiring always supplies one so a
// retried signal (the client never learned whether its first POST landed)
// is answered from cache instead of re-applied.
func NewOrderService(cases store.CaseStore, engine WorkflowSignaler, deps map[string]DependencyChecker, idempotency IdempotencyStorer) *OrderService {
	return &OrderService{cases: cases, engine: engine, deps: deps, idempotency: idempotency}
}

// Router builds the chi router for the Ingress API's six operations. The
// four state-mutating signal routes run behind IdempotencyMiddleware keyed
// on the caller-supplied Idempotency-Key header, so a retried delivery of
// the same event (§5's event-dedupe requirement) replays the cached
// response instead of signaling the case twice.
func (s *OrderService) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/orders", s.HandleSubmitOrder)

	r.Group(func(r chi.Router) {
		if s.idempotency != nil {
			r.Use(IdempotencyMiddleware(s.idempotency))
		}
		r.Post("/cases/{case_id}/reupload", s.HandleSignalReupload)
		r.Post("/cases/{case_id}/corrections", s.HandleSignalCorrections)
		r.Post("/cases/{case_id}/selections", s.HandleSignalSelections)
		r.Post("/cases/{case_id}/approval", s.HandleSignalApproval)
	})

	r.Get("/health", s.HandleGetHealth)

	return r
}

// SubmitOrderRequest is submit-order's input (§4.1).
type SubmitOrderRequest struct {
	BlobURL       string `json:"blob_url"`
	FileName      string `json:"file_name"`
	FileSHA256    string `json:"file_sha256"`
	SubmitterID   string `json:"submitter_id"`
	TenantID      string `json:"tenant_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// HandleSubmitOrder implements submit-order: creates the Case, starts its
// workflow instance, and returns before parsing begins.
func (s *OrderService) HandleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "invalid-input", err.Error())
		return
	}
	if req.BlobURL == "" || req.FileSHA256 == "" || req.SubmitterID == "" || req.TenantID == "" {
		WriteErrorR(w, r, http.StatusBadRequest, "invalid-input", "blob_url, file_sha256, submitter_id and tenant_id are required")
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.New().String()
	}

	now := time.Now().UTC()
	c := &contracts.Case{
		CaseID:        uuid.New().String(),
		TenantID:      req.TenantID,
		SubmitterID:   req.SubmitterID,
		CorrelationID: req.CorrelationID,
		SourceBlobRef: req.BlobURL,
		FileSHA256:    req.FileSHA256,
		CreatedAt:     now,
		UpdatedAt:     now,
		State:         contracts.CaseStatePending,
		AuditTrail: []contracts.CaseAuditEvt{{
			SequenceNumber: 1,
			EventType:      "CaseCreated",
			Actor:          req.SubmitterID,
			ToState:        contracts.CaseStatePending,
			OccurredAt:     now,
		}},
	}

	// StartCase persists the case itself before enqueueing its first step,
	// so there is no window where the workflow dispatcher can run against a
	// case id the store doesn't know about yet.
	if _, err := s.engine.StartCase(r.Context(), c); err != nil {
		WriteErrorR(w, r, http.StatusConflict, "duplicate-fingerprint-recently-active", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"case_id":              c.CaseID,
		"workflow_instance_id": c.WorkflowInstanceID,
	})
}

// lookupCase fetches a case by path param, writing case-not-found on a miss.
func (s *OrderService) lookupCase(w http.ResponseWriter, r *http.Request) (*contracts.Case, bool) {
	caseID := chi.URLParam(r, "case_id")
	c, err := s.cases.Get(r.Context(), caseID)
	if err == store.ErrCaseNotFound {
		WriteErrorR(w, r, http.StatusNotFound, "case-not-found", "no case with id "+caseID)
		return nil, false
	}
	if err != nil {
		WriteInternal(w, err)
		return nil, false
	}
	return c, true
}

type reuploadRequest struct {
	NewBlobURL    string `json:"new_blob_url"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// HandleSignalReupload implements signal-reupload.
func (s *OrderService) HandleSignalReupload(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupCase(w, r)
	if !ok {
		return
	}
	if c.State != contracts.CaseStateBlocked {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", "case is not awaiting a reupload")
		return
	}

	var req reuploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "invalid-input", err.Error())
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = c.CorrelationID
	}

	if err := s.engine.SignalReupload(r.Context(), c.CaseID, req.NewBlobURL, req.CorrelationID); err != nil {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", err.Error())
		return
	}
	writeAck(w)
}

type correctionsRequest struct {
	Corrections map[string]string `json:"corrections"`
}

// HandleSignalCorrections implements signal-corrections.
func (s *OrderService) HandleSignalCorrections(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupCase(w, r)
	if !ok {
		return
	}
	if c.State != contracts.CaseStateBlocked && c.State != contracts.CaseStateValidating {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", "case is not accepting corrections")
		return
	}

	var req correctionsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "invalid-input", err.Error())
		return
	}

	if err := s.engine.SignalCorrections(r.Context(), c.CaseID, req.Corrections); err != nil {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", err.Error())
		return
	}
	writeAck(w)
}

// HandleSignalSelections implements signal-selections.
func (s *OrderService) HandleSignalSelections(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupCase(w, r)
	if !ok {
		return
	}
	if c.State != contracts.CaseStateResolvingCustomer && c.State != contracts.CaseStateResolvingItems {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", "case is not awaiting resolution selections")
		return
	}

	var req CaseSelections
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "invalid-input", err.Error())
		return
	}

	if err := s.engine.SignalSelections(r.Context(), c.CaseID, req); err != nil {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", err.Error())
		return
	}
	writeAck(w)
}

type approvalRequest struct {
	Approved bool   `json:"approved"`
	Actor    string `json:"actor"`
	Comments string `json:"comments,omitempty"`
}

// HandleSignalApproval implements signal-approval.
func (s *OrderService) HandleSignalApproval(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupCase(w, r)
	if !ok {
		return
	}
	if c.State != contracts.CaseStateAwaitingApproval {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", "case is not awaiting approval")
		return
	}

	var req approvalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "invalid-input", err.Error())
		return
	}
	if req.Actor == "" {
		WriteErrorR(w, r, http.StatusBadRequest, "invalid-input", "actor is required")
		return
	}

	receipt := contracts.ApprovalReceipt{
		CaseID:    c.CaseID,
		Approved:  req.Approved,
		Actor:     req.Actor,
		Comments:  req.Comments,
		Timestamp: time.Now().UTC(),
	}
	if req.Approved {
		receipt.Status = contracts.ApprovalApproved
	} else {
		receipt.Status = contracts.ApprovalRejected
	}

	if err := s.engine.SignalApproval(r.Context(), c.CaseID, receipt); err != nil {
		WriteErrorR(w, r, http.StatusConflict, "invalid-state", err.Error())
		return
	}
	writeAck(w)
}

// HandleGetHealth implements get-health: pings every configured dependency
// and reports whether all of them answered.
func (s *OrderService) HandleGetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	depsOK := true
	statuses := make(map[string]bool, len(s.deps))
	for name, check := range s.deps {
		ok := check(ctx)
		statuses[name] = ok
		if !ok {
			depsOK = false
		}
	}

	state := "healthy"
	if !depsOK {
		state = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"state":   state,
		"deps_ok": depsOK,
		"deps":    statuses,
	})
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ack"})
}
