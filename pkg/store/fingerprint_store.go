package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FingerprintStore owns the auxiliary fingerprint -> draft_reference
// mapping that guarantees at-most-once draft creation (§3, §5). Insert
// must be atomic compare-and-set: the writer activity reads the mapping
// and, only if absent, inserts the pair sequenced after the remote create
// call succeeds.
type FingerprintStore interface {
	// Lookup returns the draft reference already recorded for fingerprint,
	// or ("", false, nil) if none exists yet.
	Lookup(ctx context.Context, fingerprint string) (string, bool, error)
	// Insert records fingerprint -> draftReference iff absent. It returns
	// the reference actually stored (which may be a different, earlier
	// value if a concurrent writer won the race) and whether this call won.
	Insert(ctx context.Context, fingerprint, draftReference, caseID string) (stored string, won bool, err error)
}

// PostgresFingerprintStore is a durable, transactional implementation
// backed by a unique constraint on fingerprint.
type PostgresFingerprintStore struct {
	db *sql.DB
}

func NewPostgresFingerprintStore(db *sql.DB) *PostgresFingerprintStore {
	return &PostgresFingerprintStore{db: db}
}

func (s *PostgresFingerprintStore) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	var ref string
	err := s.db.QueryRowContext(ctx,
		`SELECT draft_reference FROM fingerprint_index WHERE fingerprint = $1`, fingerprint,
	).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fingerprint lookup: %w", err)
	}
	return ref, true, nil
}

func (s *PostgresFingerprintStore) Insert(ctx context.Context, fingerprint, draftReference, caseID string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("fingerprint insert: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fingerprint_index (fingerprint, draft_reference, case_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint, draftReference, caseID,
	)
	if err != nil {
		return "", false, fmt.Errorf("fingerprint insert: %w", err)
	}

	var stored string
	if err := tx.QueryRowContext(ctx,
		`SELECT draft_reference FROM fingerprint_index WHERE fingerprint = $1`, fingerprint,
	).Scan(&stored); err != nil {
		return "", false, fmt.Errorf("fingerprint insert: re-read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("fingerprint insert: commit: %w", err)
	}

	return stored, stored == draftReference, nil
}
