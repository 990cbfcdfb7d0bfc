package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/interfaces"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/kernel"
)

// PostgresEventRepository adapts PostgresEventLog to interfaces.EventRepository,
// the narrower append/read contract pkg/kernelruntime.Runtime depends on. It
// is not a second event store — both interfaces read and write the same
// kernel_events table, so an intent submitted through the Runtime and a case
// transition appended by the workflow engine land in one causally ordered
// history.
type PostgresEventRepository struct {
	log *PostgresEventLog
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{log: NewPostgresEventLog(db)}
}

// Append implements interfaces.EventRepository.
func (r *PostgresEventRepository) Append(ctx context.Context, eventType, actorID string, payload interface{}) (*interfaces.Event, error) {
	prevHash := r.log.Hash()

	env := &kernel.EventEnvelope{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		ObservedAt: time.Now().UTC(),
		ReceivedAt: time.Now().UTC(),
		Payload: map[string]interface{}{
			"actor_id": actorID,
			"data":     payload,
		},
	}

	seq, err := r.log.Append(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("event repository: append: %w", err)
	}

	return &interfaces.Event{
		SequenceID:  int64(seq),
		EventType:   eventType,
		Timestamp:   env.CommittedAt,
		ActorID:     actorID,
		Payload:     payload,
		PayloadHash: env.PayloadHash,
		PrevHash:    prevHash,
	}, nil
}

// ReadFrom implements interfaces.EventRepository.
func (r *PostgresEventRepository) ReadFrom(ctx context.Context, startSequenceID int64, limit int) ([]interfaces.Event, error) {
	if startSequenceID < 1 {
		startSequenceID = 1
	}
	end := startSequenceID + int64(limit) - 1
	envelopes, err := r.log.Range(ctx, uint64(startSequenceID), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("event repository: read from %d: %w", startSequenceID, err)
	}

	events := make([]interfaces.Event, 0, len(envelopes))
	for _, env := range envelopes {
		actorID, _ := env.Payload["actor_id"].(string)
		events = append(events, interfaces.Event{
			SequenceID:  int64(env.SequenceNumber),
			EventType:   env.EventType,
			Timestamp:   env.CommittedAt,
			ActorID:     actorID,
			Payload:     env.Payload["data"],
			PayloadHash: env.PayloadHash,
		})
	}
	return events, nil
}
