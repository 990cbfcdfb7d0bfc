package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
)

// ErrCaseNotFound is returned by CaseStore.Get when no case exists for the
// given ID, mapping directly to the Ingress API's case-not-found error.
var ErrCaseNotFound = errors.New("case not found")

// CaseStore owns the Case entity's durable record (§3): created once by
// Ingress on file receipt, thereafter mutated only through named state
// transitions recorded in its audit trail.
type CaseStore interface {
	Create(ctx context.Context, c *contracts.Case) error
	Get(ctx context.Context, caseID string) (*contracts.Case, error)
	// Update persists the full case record. Callers append to AuditTrail
	// themselves before calling Update so the audit log and the state it
	// describes are written atomically.
	Update(ctx context.Context, c *contracts.Case) error
	// ListActive returns every case not yet in a terminal state, for the
	// workflow engine's boot-time recovery sweep (§4.2 I5).
	ListActive(ctx context.Context) ([]*contracts.Case, error)
}

// terminalStates are the CaseState values ListActive excludes.
var terminalStates = []contracts.CaseState{
	contracts.CaseStateCompleted,
	contracts.CaseStateCancelled,
	contracts.CaseStateFailed,
}

// PostgresCaseStore is a durable CaseStore backed by a single JSONB column
// for the case body plus indexed columns for the fields the Ingress API
// and sweeper query by.
type PostgresCaseStore struct {
	db *sql.DB
}

func NewPostgresCaseStore(db *sql.DB) *PostgresCaseStore {
	return &PostgresCaseStore{db: db}
}

func (s *PostgresCaseStore) Create(ctx context.Context, c *contracts.Case) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("case store: marshal case: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cases (case_id, tenant_id, state, file_sha256, body)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.CaseID, c.TenantID, string(c.State), c.FileSHA256, body,
	)
	if err != nil {
		return fmt.Errorf("case store: insert: %w", err)
	}
	return nil
}

func (s *PostgresCaseStore) Get(ctx context.Context, caseID string) (*contracts.Case, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM cases WHERE case_id = $1`, caseID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("case store: select: %w", err)
	}

	var c contracts.Case
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("case store: unmarshal: %w", err)
	}
	return &c, nil
}

// ListActive returns every case whose state is not one of terminalStates,
// ordered oldest-first so recovery replays the queue in the order cases
// originally entered it.
func (s *PostgresCaseStore) ListActive(ctx context.Context) ([]*contracts.Case, error) {
	placeholders := make([]string, len(terminalStates))
	args := make([]any, len(terminalStates))
	for i, st := range terminalStates {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(st)
	}
	query := fmt.Sprintf(
		`SELECT body FROM cases WHERE state NOT IN (%s) ORDER BY created_at ASC`,
		strings.Join(placeholders, ", "),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("case store: list active: %w", err)
	}
	defer rows.Close()

	var cases []*contracts.Case
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("case store: scan active case: %w", err)
		}
		var c contracts.Case
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("case store: unmarshal active case: %w", err)
		}
		cases = append(cases, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("case store: list active: %w", err)
	}
	return cases, nil
}

func (s *PostgresCaseStore) Update(ctx context.Context, c *contracts.Case) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("case store: marshal case: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET state = $2, body = $3, updated_at = now() WHERE case_id = $1`,
		c.CaseID, string(c.State), body,
	)
	if err != nil {
		return fmt.Errorf("case store: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("case store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrCaseNotFound
	}
	return nil
}
