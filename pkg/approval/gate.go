// Package approval implements the Approval Gate: the CEL-driven auto-accept
// policy that decides whether a committee field mapping can proceed
// unattended or must push the case into AwaitingApproval (§4.4 Auto-accept
// policy). Expressing the thresholds as a CEL expression rather than Go
// code lets an operator retune them, or swap the rule entirely, without a
// redeploy — the committee only ever sees a bool back.
package approval

import (
	"fmt"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel/celdp"
)

// DefaultFieldPolicy mirrors §4.4's default thresholds: a critical field
// never auto-accepts short of unanimous consensus; any other field
// auto-accepts on unanimous consensus at or above the unanimous threshold,
// or majority consensus at or above the (stricter) majority threshold.
const DefaultFieldPolicy = `
(input.critical && input.consensus != "unanimous") ? false :
(input.consensus == "unanimous" && input.confidence >= input.unanimous_threshold) ||
(input.consensus == "majority" && input.confidence >= input.majority_threshold)
`

// Config names the policy expression plus the threshold and critical-field
// inputs it is evaluated against. The expression is data, not code.
type Config struct {
	FieldPolicy        string
	UnanimousThreshold float64
	MajorityThreshold  float64
	CriticalFields     map[string]bool
}

// DefaultConfig matches the values in §6's configuration table.
func DefaultConfig() Config {
	return Config{
		FieldPolicy:        DefaultFieldPolicy,
		UnanimousThreshold: 0.75,
		MajorityThreshold:  0.85,
		CriticalFields:     map[string]bool{"customer": true, "sku": true, "gtin": true},
	}
}

// Gate evaluates the auto-accept policy for one committee field vote at a
// time and rolls per-field verdicts up into a case-level decision.
type Gate struct {
	evaluator *celdp.CELDPEvaluator
	cfg       Config
}

// NewGate compiles the CEL environment once; Decide/AutoAccept reuse it for
// every call.
func NewGate(cfg Config) (*Gate, error) {
	if cfg.FieldPolicy == "" {
		cfg.FieldPolicy = DefaultFieldPolicy
	}
	ev, err := celdp.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("approval: build CEL environment: %w", err)
	}
	return &Gate{evaluator: ev, cfg: cfg}, nil
}

// FieldConfidence is the input one field's vote contributes to the policy:
// its consensus classification and the mean confidence providers reported
// for their mapping of it.
type FieldConfidence struct {
	Field      string
	Consensus  contracts.ConsensusLevel
	Confidence float64
}

// AutoAccept evaluates the configured policy for one field. A policy
// evaluation failure fails closed — the field requires human review rather
// than silently passing.
func (g *Gate) AutoAccept(fc FieldConfidence) (bool, error) {
	activation := map[string]any{
		"input": map[string]any{
			"field":               fc.Field,
			"consensus":           string(fc.Consensus),
			"confidence":          fc.Confidence,
			"critical":            g.cfg.CriticalFields[fc.Field],
			"unanimous_threshold": g.cfg.UnanimousThreshold,
			"majority_threshold":  g.cfg.MajorityThreshold,
		},
	}

	result, err := g.evaluator.Evaluate(g.cfg.FieldPolicy, activation)
	if err != nil {
		return false, fmt.Errorf("approval: evaluate field policy for %q: %w", fc.Field, err)
	}
	if result.Error != nil {
		return false, fmt.Errorf("approval: field policy for %q: %s", fc.Field, result.Error.Message)
	}

	accepted, ok := result.Value.(bool)
	if !ok {
		return false, fmt.Errorf("approval: field policy for %q did not evaluate to a bool", fc.Field)
	}
	return accepted, nil
}

// RequiresHumanReview rolls a committee's aggregated result up into the
// case-level verdict: the case may only skip AwaitingApproval if every
// field in the result already auto-accepted.
func RequiresHumanReview(agg contracts.AggregatedResult) bool {
	if len(agg.FieldVotes) == 0 {
		return true
	}
	for _, fv := range agg.FieldVotes {
		if !fv.AutoAccepted {
			return true
		}
	}
	return false
}

// Expired reports whether a pending approval request has crossed its
// max-age sweeper horizon (§4.2's 30-day AwaitingApproval sweeper).
func Expired(req contracts.ApprovalRequest, now int64) bool {
	return req.Status == contracts.ApprovalPending && now >= req.ExpiresAt.Unix()
}
