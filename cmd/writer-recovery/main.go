// Command writer-recovery sweeps the effect outbox for CreateDraft
// activities that were scheduled but never confirmed complete — a case
// parked in QueuedForWriter after a crash between intent issuance and
// receipt persistence — and replays them through the same idempotent
// executor path CreateDraft normally uses.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/agent"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/config"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/connector"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/credentials"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/crypto"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/executor"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/store"
)

const sweepInterval = 5 * time.Minute

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	signer, err := crypto.NewEd25519Signer("writer-recovery-kernel")
	if err != nil {
		slog.Error("build signer", "error", err)
		os.Exit(1)
	}
	verifier, err := crypto.NewEd25519Verifier(signer.PublicKeyBytes())
	if err != nil {
		slog.Error("build verifier", "error", err)
		os.Exit(1)
	}

	oauth := credentials.NewAccountingOAuth("", "", "")
	oauth.Seed(context.Background(), os.Getenv("ACCOUNTING_REFRESH_TOKEN"))
	accounting := connector.NewAccountingClient(cfg.AccountingAPIURL, oauth, connector.NewZeroTrustGate())

	outbox := store.NewPostgresEffectOutboxStore(db)
	receipts := store.NewPostgresReceiptStore(db)
	auditLog := crypto.NewMemoryAuditLog()

	safeExecutor := executor.NewSafeExecutor(
		verifier, signer,
		agent.NewSalesOrderDriver(accounting),
		receipts, outbox, auditLog,
	)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	sweep(context.Background(), outbox, safeExecutor, signer)
	for range ticker.C {
		sweep(context.Background(), outbox, safeExecutor, signer)
	}
}

// sweep replays every pending outbox entry through the executor. The outbox
// persists the original Effect and DecisionRecord but not the short-lived
// AuthorizedExecutionIntent that gated the first attempt, so recovery mints
// a fresh one bound to the same decision before calling Execute; Execute's
// idempotency check against the receipt store means a replayed effect that
// already succeeded returns the stored receipt rather than re-invoking the
// driver.
func sweep(ctx context.Context, outbox *store.PostgresEffectOutboxStore, exec *executor.SafeExecutor, signer crypto.Signer) {
	pending, err := outbox.GetPending(ctx)
	if err != nil {
		slog.Error("list pending effects", "error", err)
		return
	}

	for _, rec := range pending {
		intent := &contracts.AuthorizedExecutionIntent{
			ID:          "recovery-intent-" + rec.Decision.ID,
			DecisionID:  rec.Decision.ID,
			IssuedAt:    time.Now().UTC(),
			ExpiresAt:   time.Now().UTC().Add(time.Hour),
			AllowedTool: "create-salesorder",
		}
		if err := signer.SignIntent(intent); err != nil {
			slog.Error("sign recovery intent", "outbox_id", rec.ID, "error", err)
			continue
		}

		receipt, _, err := exec.Execute(ctx, rec.Effect, rec.Decision, intent)
		if err != nil {
			slog.Warn("writer recovery replay failed", "outbox_id", rec.ID, "error", err)
			continue
		}
		if err := outbox.MarkDone(ctx, rec.ID); err != nil {
			slog.Error("mark outbox entry done", "outbox_id", rec.ID, "error", err)
			continue
		}
		slog.Info("writer recovery replayed effect", "outbox_id", rec.ID, "receipt_id", receipt.ReceiptID)
	}
}
