// Command worker sweeps every case still AwaitingApproval past its
// approval-max-age horizon and cancels it (§4.2 I5). The workflow engine's
// dispatch loop never reads wall-clock time to make this decision itself —
// this is the one place in the system that does, on its own schedule,
// external to the deterministic dispatcher.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/config"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/crypto"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernelruntime"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/store"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/workflow"
)

const sweepInterval = 10 * time.Minute

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	signer, err := crypto.NewEd25519Signer("worker-kernel")
	if err != nil {
		slog.Error("build signer", "error", err)
		os.Exit(1)
	}

	caseStore := store.NewPostgresCaseStore(db)

	keyring := crypto.NewKeyRing()
	keyring.AddKey(signer)
	eventRepo := store.NewPostgresEventRepository(db)
	runtime := kernelruntime.NewRuntime(eventRepo, &kernelruntime.NoopProjections{}, keyring)

	// The sweeper only ever calls ExpireApproval, which touches Cases,
	// Signer, the event log and the sovereignty runtime; Parser, Resolver
	// and Writer are left nil since this process never drives the
	// scheduler and so never reaches the step handlers that need them.
	engine := workflow.NewEngine(workflow.Deps{
		Cases:     caseStore,
		Signer:    signer,
		Scheduler: kernel.NewInMemoryScheduler(),
		EventLog:  store.NewPostgresEventLog(db),
		Runtime:   runtime,
	})

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	sweep(context.Background(), caseStore, engine)
	for range ticker.C {
		sweep(context.Background(), caseStore, engine)
	}
}

// sweep expires every AwaitingApproval case whose ApprovalExpiresAt horizon
// has passed. ExpireApproval re-checks the case's current state and horizon
// itself, so a case that was approved or already expired between ListActive
// and this call is simply skipped rather than double-cancelled.
func sweep(ctx context.Context, cases *store.PostgresCaseStore, engine *workflow.Engine) {
	active, err := cases.ListActive(ctx)
	if err != nil {
		slog.Error("list active cases", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, c := range active {
		if c.State != contracts.CaseStateAwaitingApproval {
			continue
		}
		if err := engine.ExpireApproval(ctx, c.CaseID, now); err != nil {
			slog.Error("expire approval", "case_id", c.CaseID, "error", err)
			continue
		}
	}
}
