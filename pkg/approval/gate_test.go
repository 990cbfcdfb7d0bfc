package approval

import (
	"testing"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/stretchr/testify/require"
)

func TestGate_AutoAccept_CriticalFieldRequiresUnanimous(t *testing.T) {
	g, err := NewGate(DefaultConfig())
	require.NoError(t, err)

	accepted, err := g.AutoAccept(FieldConfidence{Field: "customer", Consensus: contracts.ConsensusMajority, Confidence: 0.99})
	require.NoError(t, err)
	require.False(t, accepted)

	accepted, err = g.AutoAccept(FieldConfidence{Field: "customer", Consensus: contracts.ConsensusUnanimous, Confidence: 0.80})
	require.NoError(t, err)
	require.True(t, accepted)
}

func TestGate_AutoAccept_NonCriticalThresholds(t *testing.T) {
	g, err := NewGate(DefaultConfig())
	require.NoError(t, err)

	cases := []struct {
		consensus contracts.ConsensusLevel
		conf      float64
		want      bool
	}{
		{contracts.ConsensusUnanimous, 0.75, true},
		{contracts.ConsensusUnanimous, 0.74, false},
		{contracts.ConsensusMajority, 0.85, true},
		{contracts.ConsensusSplit, 0.99, false},
	}
	for _, c := range cases {
		accepted, err := g.AutoAccept(FieldConfidence{Field: "qty", Consensus: c.consensus, Confidence: c.conf})
		require.NoError(t, err)
		require.Equal(t, c.want, accepted, "consensus=%s conf=%v", c.consensus, c.conf)
	}
}

func TestRequiresHumanReview(t *testing.T) {
	require.True(t, RequiresHumanReview(contracts.AggregatedResult{}))

	allAccepted := contracts.AggregatedResult{FieldVotes: []contracts.FieldVote{
		{Field: "qty", AutoAccepted: true},
		{Field: "sku", AutoAccepted: true},
	}}
	require.False(t, RequiresHumanReview(allAccepted))

	oneRejected := contracts.AggregatedResult{FieldVotes: []contracts.FieldVote{
		{Field: "qty", AutoAccepted: true},
		{Field: "customer", AutoAccepted: false},
	}}
	require.True(t, RequiresHumanReview(oneRejected))
}
