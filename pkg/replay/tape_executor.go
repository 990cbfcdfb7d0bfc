package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/tape"
)

// TapeExecutor replays a run by re-hashing the tape's own stored bytes for
// each event rather than re-invoking whatever originally produced them —
// it verifies that what was committed to tape still matches what the event
// log says was produced, catching tape corruption or tampering that a
// PayloadHash comparison alone wouldn't notice (the hash and the bytes it
// was computed from could have been swapped together).
type TapeExecutor struct {
	replayer *tape.Replayer
}

// NewTapeExecutor builds a TapeExecutor over a tape.Replayer loaded from a
// prior committee run's recorded entries.
func NewTapeExecutor(replayer *tape.Replayer) *TapeExecutor {
	return &TapeExecutor{replayer: replayer}
}

// ReplayEvent implements Executor.
func (x *TapeExecutor) ReplayEvent(_ context.Context, event RunEvent) (string, error) {
	value, err := x.replayer.Lookup(event.SequenceNumber)
	if err != nil {
		return "", fmt.Errorf("tape executor: %w", err)
	}
	h := sha256.Sum256(value)
	return hex.EncodeToString(h[:]), nil
}
