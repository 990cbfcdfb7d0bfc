package executor

import (
	"context"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
)

// OutboxRecord represents an intent to execute a side-effecting activity
// (today, only CreateDraft) that has not yet been confirmed complete.
type OutboxRecord struct {
	ID        string                    `json:"id"`
	Effect    *contracts.Effect         `json:"effect"`
	Decision  *contracts.DecisionRecord `json:"decision"`
	Scheduled time.Time                 `json:"scheduled"`
	Status    string                    `json:"status"` // PENDING, DONE, FAILED
}

// OutboxStore is the transactional persistence layer for pending effects,
// read by the writer-recovery sweep for cases parked in QueuedForWriter.
type OutboxStore interface {
	Schedule(ctx context.Context, effect *contracts.Effect, decision *contracts.DecisionRecord) error
	GetPending(ctx context.Context) ([]*OutboxRecord, error)
	MarkDone(ctx context.Context, id string) error
}

// ReceiptStore persists execution receipts and supports idempotent replay:
// a second Execute call for the same decision ID returns the stored receipt
// instead of re-invoking the external API.
type ReceiptStore interface {
	Get(ctx context.Context, decisionID string) (*contracts.Receipt, error)
	Store(ctx context.Context, receipt *contracts.Receipt) error
	GetLastForSession(ctx context.Context, sessionID string) (*contracts.Receipt, error)
}
