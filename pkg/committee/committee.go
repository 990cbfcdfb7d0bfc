// Package committee runs the bounded-evidence multi-provider validation
// described in §4.4: N diverse LLM providers vote in parallel on ambiguous
// schema-mapping decisions, and their outputs are aggregated into a
// weighted consensus.
package committee

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/approval"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/canonicalize"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/llm"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/tape"
)

// Provider is one configured committee member.
type Provider struct {
	ID     string
	Family string // openai, anthropic, deepseek, google, xai
	Weight float64
	Client llm.Client
}

// Config tunes the committee's selection and acceptance thresholds,
// sourced from the committee.* configuration keys (§6).
type Config struct {
	PoolSize            int
	MinSuccessful       int
	PerCallTimeout      time.Duration
	ActivityTimeout     time.Duration
	AutoAcceptUnanimous float64
	AutoAcceptMajority  float64
	CriticalFields      map[string]bool

	// Gate overrides the Approval Gate used to decide each field's
	// auto-accept verdict. Nil falls back to a gate that New compiles from
	// the thresholds above with approval.NewGate.
	Gate *approval.Gate

	// TapesDir, if set, records every provider network response to a VCR
	// tape under TapesDir/{case_id}/ (§5.1). Empty disables recording —
	// the default, since a tape is only worth the write cost when cmd/replay
	// will actually read it back.
	TapesDir string
}

// DefaultConfig matches the values listed in §6's configuration table.
func DefaultConfig() Config {
	return Config{
		PoolSize:            3,
		MinSuccessful:       2,
		PerCallTimeout:      30 * time.Second,
		ActivityTimeout:     45 * time.Second,
		AutoAcceptUnanimous: 0.75,
		AutoAcceptMajority:  0.85,
		CriticalFields:      map[string]bool{"customer": true, "sku": true, "gtin": true},
	}
}

// Committee runs one validation pass over a configured pool of providers.
type Committee struct {
	pool   []Provider
	config Config
	gate   *approval.Gate
}

// New builds a Committee over the given provider pool. If config.Gate is
// nil, New compiles a default Approval Gate from config's thresholds; a
// compile failure (malformed override policy) leaves the committee without
// a gate and aggregate falls back to the built-in threshold check.
func New(pool []Provider, config Config) *Committee {
	gate := config.Gate
	if gate == nil {
		g, err := approval.NewGate(approval.Config{
			UnanimousThreshold: config.AutoAcceptUnanimous,
			MajorityThreshold:  config.AutoAcceptMajority,
			CriticalFields:     config.CriticalFields,
		})
		if err == nil {
			gate = g
		}
	}
	return &Committee{pool: pool, config: config, gate: gate}
}

// MapColumns implements parser.ColumnMapper: it selects N diverse
// providers, fans the evidence pack out to them in parallel, validates each
// response against the pack's own candidate set, and aggregates a weighted
// vote per field.
func (c *Committee) MapColumns(ctx context.Context, pack contracts.EvidencePack) (contracts.CommitteeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ActivityTimeout)
	defer cancel()

	selected, downgraded := selectDiverseProviders(c.pool, c.config.PoolSize, pack.CaseID)
	if len(selected) == 0 {
		return contracts.CommitteeResult{}, fmt.Errorf("committee: empty provider pool")
	}

	var recorder *tape.Recorder
	if c.config.TapesDir != "" {
		recorder = tape.NewRecorder(pack.CaseID)
	}

	outputs, trace := c.fanOut(ctx, pack.CaseID, selected, pack, recorder)
	trace.Finalize()

	if recorder != nil {
		if err := persistTape(c.config.TapesDir, recorder); err != nil {
			return contracts.CommitteeResult{}, fmt.Errorf("committee: persist tape: %w", err)
		}
	}

	successful := 0
	for _, o := range outputs {
		if !o.Failed {
			successful++
		}
	}
	if successful < c.config.MinSuccessful {
		return contracts.CommitteeResult{}, fmt.Errorf("COMMITTEE_FAILED: only %d of %d providers succeeded", successful, len(selected))
	}

	weights := make(map[string]float64, len(selected))
	for _, p := range selected {
		weights[p.ID] = p.Weight
	}

	aggregated := aggregate(outputs, weights, len(selected), c.config, c.gate)

	var ids []string
	for _, p := range selected {
		ids = append(ids, p.ID)
	}

	requiresHuman := approval.RequiresHumanReview(aggregated)
	var finalMappings []contracts.ColumnMapping
	for _, fv := range aggregated.FieldVotes {
		finalMappings = append(finalMappings, contracts.ColumnMapping{
			CanonicalField: fv.Field,
			ColumnID:       fv.Winner,
			Confidence:     aggregated.OverallConfidence,
			Method:         "committee",
		})
	}

	return contracts.CommitteeResult{
		TaskID:              uuid.New().String(),
		CaseID:              pack.CaseID,
		SelectedProviderIDs: ids,
		DiversityDowngraded: downgraded,
		ProviderOutputs:     outputs,
		Aggregated:          aggregated,
		FinalMappings:       finalMappings,
		RequiresHumanReview: requiresHuman,
		CreatedAt:           time.Now().UTC(),
		ConcurrencyTraceHash: trace.Hash,
	}, nil
}

// fanOut issues every provider call in parallel with an individual per-call
// deadline; a schema-invalid or erroring response is recorded as a failed
// ProviderOutput rather than retried inside the committee (§4.4 Execution).
// Each call's input and output are also recorded as an entry in a
// kernel.ExecutionTrace, giving pkg/replay something to check a replayed
// committee run's provider order against, independent of the goroutine
// scheduling order any one run happened to complete in.
func (c *Committee) fanOut(ctx context.Context, caseID string, providers []Provider, pack contracts.EvidencePack, recorder *tape.Recorder) ([]contracts.ProviderOutput, *kernel.ExecutionTrace) {
	outputs := make([]contracts.ProviderOutput, len(providers))
	trace := kernel.NewExecutionTrace("committee-"+caseID, "committee-fanout")
	var traceMu sync.Mutex

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, c.config.PerCallTimeout)
			defer cancel()
			out := c.callProvider(callCtx, p, pack)
			outputs[i] = out

			inputHash, _ := canonicalize.CanonicalHash(pack)
			outputHash, _ := canonicalize.CanonicalHash(out)
			traceMu.Lock()
			trace.AddEntry(p.ID, "ProviderCall", inputHash, outputHash)
			traceMu.Unlock()

			if recorder != nil {
				raw, _ := json.Marshal(out)
				recorder.RecordNetwork(p.ID, "committee-provider://"+p.Family, raw)
			}
		}(i, p)
	}
	wg.Wait()

	// Entries are appended in completion order, which varies run to run;
	// sort by provider id so the trace hash is a function of who answered
	// and what they said, not of goroutine scheduling.
	sortTraceEntries(trace)
	return outputs, trace
}

// persistTape writes the recorder's entries and manifest under
// tapesDir/{run_id}/, ready for replay.NewTapeEventSource to read back.
func persistTape(tapesDir string, recorder *tape.Recorder) error {
	dir := filepath.Join(tapesDir, recorder.BuildManifest().RunID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create tape dir: %w", err)
	}
	if err := tape.WriteEntries(dir, recorder.Entries()); err != nil {
		return err
	}
	return tape.WriteManifest(dir, recorder.BuildManifest())
}

func sortTraceEntries(trace *kernel.ExecutionTrace) {
	entries := trace.Entries
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].EventID > entries[j].EventID; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	for i := range entries {
		entries[i].StepNum = i + 1
	}
}

func (c *Committee) callProvider(ctx context.Context, p Provider, pack contracts.EvidencePack) contracts.ProviderOutput {
	start := time.Now()
	prompt := buildPrompt(pack)
	resp, err := p.Client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, &llm.SamplingOptions{Temperature: 0})
	if err != nil {
		return contracts.ProviderOutput{ProviderID: p.ID, Failed: true, FailureReason: err.Error()}
	}

	var out contracts.ProviderOutput
	if err := json.Unmarshal([]byte(resp.Content), &out); err != nil {
		return contracts.ProviderOutput{ProviderID: p.ID, Failed: true, FailureReason: "schema violation: " + err.Error()}
	}
	out.ProviderID = p.ID
	out.ProcessingTimeMs = time.Since(start).Milliseconds()

	if !validateAgainstPack(out, pack) {
		return contracts.ProviderOutput{ProviderID: p.ID, Failed: true, FailureReason: "selectedColumnId not present in evidence pack (I3)"}
	}

	return out
}

// validateAgainstPack enforces I3: every selectedColumnId a provider
// returns must name a column the pack actually offered.
func validateAgainstPack(out contracts.ProviderOutput, pack contracts.EvidencePack) bool {
	candidates := make(map[string]bool, len(pack.CandidateHeaders))
	for _, h := range pack.CandidateHeaders {
		candidates[h] = true
	}
	for _, m := range out.Mappings {
		if m.SelectedColumnID != "" && !candidates[m.SelectedColumnID] {
			return false
		}
	}
	return true
}

func buildPrompt(pack contracts.EvidencePack) string {
	body, _ := json.Marshal(pack)
	return "You are mapping spreadsheet columns to canonical purchase-order fields. " +
		"Respond with strict JSON matching the ProviderOutput schema: " +
		`{"mappings":[{"field":"...","selectedColumnId":"col-N"|null,"confidence":0.0,"reasoning":"..."}],"issues":[],"overallConfidence":0.0,"processingTimeMs":0}. ` +
		"Evidence pack: " + string(body)
}

// selectDiverseProviders picks poolSize providers, enforcing no two from
// the same family when the pool can satisfy it, seeding its pick
// deterministically from caseID so replay reproduces the same selection
// (§4.4 Provider selection, §4.2 determinism).
func selectDiverseProviders(pool []Provider, poolSize int, caseID string) ([]Provider, bool) {
	if len(pool) <= poolSize {
		return pool, false
	}

	seed := kernel.SeedFromLoopID([]byte("committee-provider-selection"), caseID)
	prng, err := kernel.NewDeterministicPRNG(kernel.PRNGConfig{
		Algorithm:  kernel.PRNGAlgorithmHMACSHA256,
		SeedLength: len(seed),
		Derivation: kernel.SeedDerivationLoopID,
	}, seed, caseID, nil)
	if err != nil {
		return pool[:poolSize], true
	}

	byFamily := map[string][]Provider{}
	for _, p := range pool {
		byFamily[p.Family] = append(byFamily[p.Family], p)
	}

	var families []string
	for f := range byFamily {
		families = append(families, f)
	}
	// Deterministic order before shuffling so replay is stable regardless
	// of map iteration order.
	sortStrings(families)
	shuffle(families, prng)

	var selected []Provider
	for _, f := range families {
		if len(selected) >= poolSize {
			break
		}
		candidates := byFamily[f]
		idx := prng.Intn(len(candidates))
		selected = append(selected, candidates[idx])
	}

	downgraded := false
	for len(selected) < poolSize {
		downgraded = true
		// Fall back to non-diverse: fill remaining slots from the full pool.
		idx := prng.Intn(len(pool))
		selected = append(selected, pool[idx])
	}

	return selected, downgraded
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func shuffle(s []string, prng *kernel.DeterministicPRNG) {
	for i := len(s) - 1; i > 0; i-- {
		j := prng.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
