package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table when missing. Called once at process
// start.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id             BIGSERIAL PRIMARY KEY,
			timestamp      TIMESTAMPTZ NOT NULL,
			transaction_id TEXT NOT NULL,
			assessment_id  TEXT,
			entity_key     TEXT,
			action         TEXT NOT NULL,
			detail         TEXT
		);
		CREATE INDEX IF NOT EXISTS audit_events_transaction_idx
			ON audit_events (transaction_id, id)`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Append inserts one event.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (timestamp, transaction_id, assessment_id, entity_key, action, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp,
		event.TransactionID,
		event.AssessmentID,
		event.EntityKey,
		string(event.Action),
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByTransaction returns the transaction's trail in append order.
func (s *PostgresStore) ListByTransaction(ctx context.Context, transactionID string) ([]Event, error) {
	query := `
		SELECT timestamp, transaction_id, assessment_id, entity_key, action, detail
		FROM audit_events
		WHERE transaction_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var action string
		if err := rows.Scan(&e.Timestamp, &e.TransactionID, &e.AssessmentID, &e.EntityKey, &action, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
