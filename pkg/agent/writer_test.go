package agent

import (
	"context"
	"testing"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
	"github.com/stretchr/testify/require"
)

type stubApprovalSource struct {
	approved bool
	recorded bool
}

func (s *stubApprovalSource) ApprovalFor(ctx context.Context, caseID string) (bool, bool, error) {
	return s.approved, s.recorded, nil
}

type memFingerprintStore struct {
	m map[string]string
}

func newMemFingerprintStore() *memFingerprintStore {
	return &memFingerprintStore{m: map[string]string{}}
}

func (s *memFingerprintStore) Lookup(ctx context.Context, fp string) (string, bool, error) {
	ref, ok := s.m[fp]
	return ref, ok, nil
}

func (s *memFingerprintStore) Insert(ctx context.Context, fp, ref, caseID string) (string, bool, error) {
	if existing, ok := s.m[fp]; ok {
		return existing, false, nil
	}
	s.m[fp] = ref
	return ref, true, nil
}

type stubExecutor struct {
	calls int
}

func (e *stubExecutor) Execute(ctx context.Context, effect *contracts.Effect, decision *contracts.DecisionRecord, intent *contracts.AuthorizedExecutionIntent) (*contracts.Receipt, map[string]any, error) {
	e.calls++
	return &contracts.Receipt{ReceiptID: "r1", DecisionID: decision.ID}, map[string]any{"draft_reference": "SO-0001"}, nil
}

func TestWriter_CreateDraft_IdempotentOnFingerprint(t *testing.T) {
	fpStore := newMemFingerprintStore()
	exec := &stubExecutor{}
	w := NewWriter(fpStore, exec, nil)

	in := CreateDraftInput{
		CaseID:        "case-1",
		CustomerID:    "cust-1",
		FileSHA256:    "filehash",
		ReceivedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		LineItems:     []contracts.LineItem{{SKU: "ABC-1", Quantity: "10"}},
		ResolvedLines: map[int]string{0: "item-1"},
		Decision:      &contracts.DecisionRecord{ID: "dec-1"},
		Intent:        &contracts.AuthorizedExecutionIntent{DecisionID: "dec-1"},
	}

	result, err := w.CreateDraft(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "SO-0001", result.DraftReference)
	require.False(t, result.AlreadyExisted)
	require.Equal(t, 1, exec.calls)

	result2, err := w.CreateDraft(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "SO-0001", result2.DraftReference)
	require.True(t, result2.AlreadyExisted)
	require.Equal(t, 1, exec.calls, "executor must not be invoked again once the fingerprint resolves")
}

func TestWriter_CreateDraft_BlockedWithoutApproval(t *testing.T) {
	fpStore := newMemFingerprintStore()
	exec := &stubExecutor{}
	boundary := kernel.NewWiredEffectBoundary(&stubApprovalSource{recorded: false}, nil)
	w := NewWriter(fpStore, exec, boundary)

	in := CreateDraftInput{
		CaseID:        "case-2",
		CustomerID:    "cust-1",
		FileSHA256:    "filehash2",
		ReceivedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		LineItems:     []contracts.LineItem{{SKU: "ABC-1", Quantity: "10"}},
		ResolvedLines: map[int]string{0: "item-1"},
		Decision:      &contracts.DecisionRecord{ID: "dec-2"},
		Intent:        &contracts.AuthorizedExecutionIntent{DecisionID: "dec-2"},
	}

	_, err := w.CreateDraft(context.Background(), in)
	require.Error(t, err)
	require.Equal(t, 0, exec.calls, "executor must not run ahead of a recorded case approval")
}

func TestWriter_CreateDraft_AllowedWithApproval(t *testing.T) {
	fpStore := newMemFingerprintStore()
	exec := &stubExecutor{}
	boundary := kernel.NewWiredEffectBoundary(&stubApprovalSource{approved: true, recorded: true}, nil)
	w := NewWriter(fpStore, exec, boundary)

	in := CreateDraftInput{
		CaseID:        "case-3",
		CustomerID:    "cust-1",
		FileSHA256:    "filehash3",
		ReceivedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		LineItems:     []contracts.LineItem{{SKU: "ABC-1", Quantity: "10"}},
		ResolvedLines: map[int]string{0: "item-1"},
		Decision:      &contracts.DecisionRecord{ID: "dec-3"},
		Intent:        &contracts.AuthorizedExecutionIntent{DecisionID: "dec-3"},
	}

	result, err := w.CreateDraft(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "SO-0001", result.DraftReference)
	require.Equal(t, 1, exec.calls)
}
