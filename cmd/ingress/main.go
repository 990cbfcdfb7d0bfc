// Command ingress runs the Ingress API (§4.1): the HTTP front door that
// accepts submit-order and the four signal operations, and starts or
// drives the corresponding case workflow.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/agent"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/api"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/committee"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/config"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/connector"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/credentials"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/crypto"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/executor"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernelruntime"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/llm"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/parser"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/resolver"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/store"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/workflow"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	signer, err := crypto.NewEd25519Signer("ingress-kernel")
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

	caseStore := store.NewPostgresCaseStore(db)
	fingerprintStore := store.NewPostgresFingerprintStore(db)
	receiptStore := store.NewPostgresReceiptStore(db)
	outboxStore := store.NewPostgresEffectOutboxStore(db)
	auditLog := crypto.NewMemoryAuditLog()

	safeExecutor := executor.NewSafeExecutor(
		verifier, signer,
		agent.NewSalesOrderDriver(accounting),
		receiptStore, outboxStore, auditLog,
	)
	kernelEventLog := store.NewPostgresEventLog(db)
	effectBoundary := kernel.NewWiredEffectBoundary(agent.NewCaseApprovalSource(caseStore), kernelEventLog)
	writer := agent.NewWriter(fingerprintStore, safeExecutor, effectBoundary)

	committeePool := buildCommitteePool()
	comm := committee.New(committeePool, committee.DefaultConfig())
	blobs := kernel.NewInMemoryBlobStore()
	docParser := parser.New(comm, blobs)

	res := resolver.New(accounting)

	keyring := crypto.NewKeyRing()
	keyring.AddKey(signer)
	eventRepo := store.NewPostgresEventRepository(db)
	runtime := kernelruntime.NewRuntime(eventRepo, &kernelruntime.NoopProjections{}, keyring)

	engine := workflow.NewEngine(workflow.Deps{
		Cases:     caseStore,
		Parser:    docParser,
		Resolver:  res,
		Writer:    writer,
		Signer:    signer,
		Scheduler: kernel.NewInMemoryScheduler(),
		EventLog:  kernelEventLog,
		Runtime:   runtime,
	})

	approveHandler := api.NewApproveHandler()
	deps := map[string]api.DependencyChecker{
		"database": func(ctx context.Context) bool { return db.PingContext(ctx) == nil },
	}
	idempotencyStore := api.NewPostgresIdempotencyStore(db, 24*time.Hour)
	orderService := api.NewOrderService(caseStore, engine, deps, idempotencyStore)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.Recover(bootCtx); err != nil {
		slog.Error("recover in-flight cases", "error", err)
		os.Exit(1)
	}
	bootCancel()

	driveCtx, stopDrive := context.WithCancel(context.Background())
	go engine.Drive(driveCtx)

	mux := http.NewServeMux()
	mux.Handle("/", orderService.Router())
	mux.HandleFunc("/api/v1/kernel/approve", approveHandler.HandleApprove)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("ingress listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopDrive()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// buildCommitteePool assembles the committee's provider pool from whichever
// provider API keys are configured in the environment; a provider with no
// key set is left out rather than started half-configured.
func buildCommitteePool() []committee.Provider {
	var pool []committee.Provider

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		pool = append(pool, committee.Provider{
			ID: "openai-primary", Family: "openai", Weight: 1.0,
			Client: llm.NewOpenAIClient(key, "gpt-4o-mini"),
		})
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		pool = append(pool, committee.Provider{
			ID: "anthropic-primary", Family: "anthropic", Weight: 1.0,
			Client: llm.NewAnthropicClient(key, "claude-3-5-haiku-latest"),
		})
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		pool = append(pool, committee.Provider{
			ID: "google-primary", Family: "google", Weight: 1.0,
			Client: llm.NewGoogleClient(key, "gemini-1.5-flash"),
		})
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		pool = append(pool, committee.Provider{
			ID: "deepseek-secondary", Family: "deepseek", Weight: 0.8,
			Client: llm.NewDeepSeekClient(key, "deepseek-chat"),
		})
	}
	if key := os.Getenv("XAI_API_KEY"); key != "" {
		pool = append(pool, committee.Provider{
			ID: "xai-secondary", Family: "xai", Weight: 0.8,
			Client: llm.NewXAIClient(key, "grok-2-latest"),
		})
	}

	return pool
}
