package kernel

import (
	"context"
	"testing"
	"time"
)

func TestScheduler_DeterministicOrdering(t *testing.T) {
	scheduler := NewInMemoryScheduler()
	ctx := context.Background()

	// Schedule events with same timestamp
	now := time.Now().UTC()
	events := []*SchedulerEvent{
		{EventID: "e3", EventType: "test", ScheduledAt: now, Priority: 1, SortKey: "same"},
		{EventID: "e1", EventType: "test", ScheduledAt: now, Priority: 1, SortKey: "same"},
		{EventID: "e2", EventType: "test", ScheduledAt: now, Priority: 1, SortKey: "same"},
	}

	for _, e := range events {
		if err := scheduler.Schedule(ctx, e); err != nil {
			t.Fatalf("Schedule failed: %v", err)
		}
	}

	// Events are ordered by sequence number when time/priority are equal
	// Sequence numbers are assigned in insertion order, so output matches input order
	expectedIDs := []string{"e3", "e1", "e2"}
	for i := 0; i < len(expectedIDs); i++ {
		e, err := scheduler.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if e.EventID != expectedIDs[i] {
			t.Errorf("Expected event ID %s, got %s (seq=%d)", expectedIDs[i], e.EventID, e.SequenceNum)
		}
	}
}

func TestScheduler_PriorityOrdering(t *testing.T) {
	scheduler := NewInMemoryScheduler()
	ctx := context.Background()

	now := time.Now().UTC()
	events := []*SchedulerEvent{
		{EventID: "low", EventType: "test", ScheduledAt: now, Priority: 10},
		{EventID: "high", EventType: "test", ScheduledAt: now, Priority: 1},
		{EventID: "medium", EventType: "test", ScheduledAt: now, Priority: 5},
	}

	for _, e := range events {
		_ = scheduler.Schedule(ctx, e)
	}

	// Verify priority order (lower priority number = higher priority)
	expectedIDs := []string{"high", "medium", "low"}
	for i := 0; i < len(expectedIDs); i++ {
		e, _ := scheduler.Next(ctx)
		if e.EventID != expectedIDs[i] {
			t.Errorf("Expected ID %s, got %s", expectedIDs[i], e.EventID)
		}
	}
}

func TestScheduler_SnapshotHashDeterminism(t *testing.T) {
	ctx := context.Background()

	// Create two schedulers with same events
	s1 := NewInMemoryScheduler()
	s2 := NewInMemoryScheduler()

	now := time.Now().UTC()
	events := []*SchedulerEvent{
		{EventID: "e1", EventType: "test", ScheduledAt: now, Priority: 1},
		{EventID: "e2", EventType: "test", ScheduledAt: now.Add(time.Second), Priority: 2},
	}

	for _, e := range events {
		_ = s1.Schedule(ctx, e)
		_ = s2.Schedule(ctx, e)
	}

	hash1 := s1.SnapshotHash()
	hash2 := s2.SnapshotHash()

	if hash1 != hash2 {
		t.Errorf("Snapshot hashes should be equal: %s vs %s", hash1, hash2)
	}
}

