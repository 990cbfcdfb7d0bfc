package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/canonicalize"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
)

// PostgresEventLog is a durable kernel.EventLog backed by a single
// append-only table, giving the workflow engine's history the persistence
// pkg/replay needs to verify a case survives a restart unchanged (§4.2 I5).
// Unlike kernel.InMemoryEventLog it does not hold the hash chain in process
// memory — the previous event's cumulative hash is read back from the table
// inside the same transaction that appends the next one.
type PostgresEventLog struct {
	db *sql.DB
}

func NewPostgresEventLog(db *sql.DB) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

// Append implements kernel.EventLog.
func (l *PostgresEventLog) Append(ctx context.Context, event *kernel.EventEnvelope) (uint64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("event log: begin tx: %w", err)
	}
	defer tx.Rollback()

	var prevHash string
	err = tx.QueryRowContext(ctx, `SELECT cumulative_hash FROM kernel_events ORDER BY sequence_number DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("event log: read last hash: %w", err)
	}

	payloadHash, err := canonicalize.CanonicalHash(event.Payload)
	if err != nil {
		return 0, fmt.Errorf("event log: hash payload: %w", err)
	}
	event.PayloadHash = payloadHash

	eventHash, err := canonicalize.CanonicalHash(map[string]interface{}{
		"event_id":      event.EventID,
		"payload_hash":  event.PayloadHash,
		"previous_hash": prevHash,
	})
	if err != nil {
		return 0, fmt.Errorf("event log: hash event: %w", err)
	}

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return 0, fmt.Errorf("event log: marshal payload: %w", err)
	}
	causationJSON, err := json.Marshal(event.Causation)
	if err != nil {
		return 0, fmt.Errorf("event log: marshal causation: %w", err)
	}
	entropyJSON, err := json.Marshal(event.Entropy)
	if err != nil {
		return 0, fmt.Errorf("event log: marshal entropy: %w", err)
	}

	var seq uint64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO kernel_events
			(event_id, event_type, observed_at, received_at, committed_at, payload_hash, payload, causation, entropy, cumulative_hash)
		 VALUES ($1, $2, $3, $4, now(), $5, $6, $7, $8, $9)
		 RETURNING sequence_number, committed_at`,
		event.EventID, event.EventType, event.ObservedAt, event.ReceivedAt,
		event.PayloadHash, payloadJSON, causationJSON, entropyJSON, eventHash,
	).Scan(&seq, &event.CommittedAt)
	if err != nil {
		return 0, fmt.Errorf("event log: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("event log: commit: %w", err)
	}

	event.SequenceNumber = seq
	return seq, nil
}

// Get implements kernel.EventLog.
func (l *PostgresEventLog) Get(ctx context.Context, seq uint64) (*kernel.EventEnvelope, error) {
	events, err := l.scan(ctx, `WHERE sequence_number = $1`, int64(seq))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event log: sequence %d not found", seq)
	}
	return events[0], nil
}

// Range implements kernel.EventLog.
func (l *PostgresEventLog) Range(ctx context.Context, start, end uint64) ([]*kernel.EventEnvelope, error) {
	if start == 0 || start > end {
		return nil, fmt.Errorf("event log: invalid range [%d, %d]", start, end)
	}
	return l.scan(ctx, `WHERE sequence_number BETWEEN $1 AND $2 ORDER BY sequence_number ASC`, int64(start), int64(end))
}

// LastSequence implements kernel.EventLog.
func (l *PostgresEventLog) LastSequence() uint64 {
	var seq sql.NullInt64
	_ = l.db.QueryRow(`SELECT MAX(sequence_number) FROM kernel_events`).Scan(&seq)
	if !seq.Valid {
		return 0
	}
	return uint64(seq.Int64)
}

// Hash implements kernel.EventLog.
func (l *PostgresEventLog) Hash() string {
	var hash string
	_ = l.db.QueryRow(`SELECT cumulative_hash FROM kernel_events ORDER BY sequence_number DESC LIMIT 1`).Scan(&hash)
	return hash
}

func (l *PostgresEventLog) scan(ctx context.Context, where string, args ...any) ([]*kernel.EventEnvelope, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT sequence_number, event_id, event_type, observed_at, received_at, committed_at, payload_hash, payload, causation, entropy
		 FROM kernel_events `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("event log: query: %w", err)
	}
	defer rows.Close()

	var out []*kernel.EventEnvelope
	for rows.Next() {
		var ev kernel.EventEnvelope
		var payloadJSON, causationJSON, entropyJSON []byte
		if err := rows.Scan(&ev.SequenceNumber, &ev.EventID, &ev.EventType, &ev.ObservedAt, &ev.ReceivedAt, &ev.CommittedAt,
			&ev.PayloadHash, &payloadJSON, &causationJSON, &entropyJSON); err != nil {
			return nil, fmt.Errorf("event log: scan: %w", err)
		}
		if len(payloadJSON) > 0 {
			_ = json.Unmarshal(payloadJSON, &ev.Payload)
		}
		if len(causationJSON) > 0 && string(causationJSON) != "null" {
			ev.Causation = &kernel.CausationContext{}
			_ = json.Unmarshal(causationJSON, ev.Causation)
		}
		if len(entropyJSON) > 0 && string(entropyJSON) != "null" {
			ev.Entropy = &kernel.EntropyContext{}
			_ = json.Unmarshal(entropyJSON, ev.Entropy)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}
