package committee

import (
	"math"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/approval"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
)

// aggregate runs the weighted vote and consensus classification across all
// fields any successful provider mapped (§4.4 Weighted voting, Consensus
// classification, Auto-accept policy). gate may be nil, in which case the
// built-in threshold check in evaluateAutoAccept is used instead.
func aggregate(outputs []contracts.ProviderOutput, weights map[string]float64, n int, cfg Config, gate *approval.Gate) contracts.AggregatedResult {
	fields := map[string]bool{}
	for _, o := range outputs {
		if o.Failed {
			continue
		}
		for _, m := range o.Mappings {
			fields[m.Field] = true
		}
	}

	var votes []contracts.FieldVote
	var disagreements []contracts.Disagreement
	overallSum := 0.0
	worst := contracts.ConsensusUnanimous

	for field := range fields {
		tally := map[string]float64{}
		choicesByProvider := map[string]string{}
		var providerConfs []float64

		for _, o := range outputs {
			if o.Failed {
				continue
			}
			for _, m := range o.Mappings {
				if m.Field != field {
					continue
				}
				w := weights[o.ProviderID] * m.Confidence
				tally[m.SelectedColumnID] += w
				choicesByProvider[o.ProviderID] = m.SelectedColumnID
				providerConfs = append(providerConfs, m.Confidence)
			}
		}

		winner, winnerScore, runnerUpScore := topTwo(tally)
		margin := winnerScore - runnerUpScore

		agreeing := 0
		for _, c := range choicesByProvider {
			if c == winner {
				agreeing++
			}
		}

		consensus := classifyConsensus(agreeing, n, margin)
		if rank(consensus) > rank(worst) {
			worst = consensus
		}

		fieldConf := meanOf(providerConfs)
		var autoAccept bool
		if gate != nil {
			accepted, err := gate.AutoAccept(approval.FieldConfidence{Field: field, Consensus: consensus, Confidence: fieldConf})
			autoAccept = err == nil && accepted
		} else {
			autoAccept = evaluateAutoAccept(field, consensus, fieldConf, cfg)
		}

		votes = append(votes, contracts.FieldVote{
			Field:        field,
			Winner:       winner,
			Tally:        tally,
			Margin:       margin,
			Consensus:    consensus,
			AutoAccepted: autoAccept,
		})
		overallSum += fieldConf

		if consensus == contracts.ConsensusSplit || consensus == contracts.ConsensusNoConsensus {
			var provs, choices []string
			for p, c := range choicesByProvider {
				provs = append(provs, p)
				choices = append(choices, c)
			}
			disagreements = append(disagreements, contracts.Disagreement{Field: field, Providers: provs, Choices: choices})
		}
	}

	overall := 0.0
	if len(votes) > 0 {
		overall = overallSum / float64(len(votes))
	}

	return contracts.AggregatedResult{
		Consensus:         worst,
		FieldVotes:        votes,
		OverallConfidence: overall,
		Disagreements:     disagreements,
	}
}

// classifyConsensus implements §4.4's per-field consensus rule. n is the
// number of selected providers (not just those that mapped this field).
func classifyConsensus(agreeing, n int, margin float64) contracts.ConsensusLevel {
	if agreeing == n {
		return contracts.ConsensusUnanimous
	}
	threshold := int(math.Ceil(2 * float64(n) / 3))
	if agreeing >= threshold {
		if margin >= 0.25 {
			return contracts.ConsensusMajority
		}
		return contracts.ConsensusSplit
	}
	return contracts.ConsensusNoConsensus
}

// evaluateAutoAccept implements the auto-accept policy: unanimous with
// confidence >= the unanimous threshold, or majority with confidence >= the
// majority threshold — except critical fields, which require human review
// on any non-unanimous outcome regardless of confidence (§4.4 Auto-accept
// policy).
func evaluateAutoAccept(field string, consensus contracts.ConsensusLevel, confidence float64, cfg Config) bool {
	if cfg.CriticalFields[field] && consensus != contracts.ConsensusUnanimous {
		return false
	}
	switch consensus {
	case contracts.ConsensusUnanimous:
		return confidence >= cfg.AutoAcceptUnanimous
	case contracts.ConsensusMajority:
		return confidence >= cfg.AutoAcceptMajority
	default:
		return false
	}
}

// rank orders consensus levels from weakest to strongest agreement so the
// committee result's top-level Consensus can report the worst field.
func rank(c contracts.ConsensusLevel) int {
	switch c {
	case contracts.ConsensusNoConsensus:
		return 0
	case contracts.ConsensusSplit:
		return 1
	case contracts.ConsensusMajority:
		return 2
	case contracts.ConsensusUnanimous:
		return 3
	default:
		return 0
	}
}

func topTwo(tally map[string]float64) (winner string, winnerScore, runnerUpScore float64) {
	for choice, score := range tally {
		if score > winnerScore {
			runnerUpScore = winnerScore
			winnerScore = score
			winner = choice
		} else if score > runnerUpScore {
			runnerUpScore = score
		}
	}
	return winner, winnerScore, runnerUpScore
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
