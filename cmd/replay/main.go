// Command replay verifies a committee run's VCR tape against the replay
// engine: it loads the tape recorded under --tapes-dir/<run-id>/, re-derives
// each entry's hash from its stored bytes, and reports whether the run's
// evidence trail is still internally consistent (§4.2 I5, §5).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/replay"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/tape"
)

func main() {
	tapesDir := flag.String("tapes-dir", "", "directory containing one subdirectory per recorded run")
	runID := flag.String("run-id", "", "run id to replay (the committee case id)")
	flag.Parse()

	if *tapesDir == "" || *runID == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --tapes-dir DIR --run-id ID")
		os.Exit(2)
	}

	runDir := *tapesDir + "/" + *runID

	entries, err := replay.LoadTapeEntries(runDir)
	if err != nil {
		slog.Error("load tape entries", "run_id", *runID, "error", err)
		os.Exit(1)
	}
	manifest, err := tape.ReadManifest(runDir)
	if err != nil {
		slog.Error("read tape manifest", "run_id", *runID, "error", err)
		os.Exit(1)
	}
	if issues := tape.VerifyManifestIntegrity(entries, manifest); len(issues) > 0 {
		for _, issue := range issues {
			slog.Error("tape integrity issue", "run_id", *runID, "issue", issue)
		}
		os.Exit(1)
	}

	source := replay.NewTapeEventSource(*tapesDir)
	executor := replay.NewTapeExecutor(tape.NewReplayer(entries))
	engine := replay.NewEngine(source, executor)

	session, err := engine.StartReplay(context.Background(), *runID)
	if err != nil {
		slog.Error("start replay", "run_id", *runID, "error", err)
		os.Exit(1)
	}

	slog.Info("replay complete",
		"run_id", session.RunID,
		"status", session.Status,
		"total_steps", session.TotalSteps,
		"replayed_steps", session.ReplayedSteps,
	)
	if session.Status != replay.SessionStatusComplete {
		slog.Error("replay diverged", "divergence_point", session.DivergencePoint, "info", session.DivergenceInfo)
		os.Exit(1)
	}
}
