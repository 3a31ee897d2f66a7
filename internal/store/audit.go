package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conciliar-dev/conciliar/internal/model"
)

func (s *Store) appendAudit(ctx context.Context, q querier, e model.AuditEntry) error {
	prior, err := json.Marshal(e.Prior)
	if err != nil {
		return fmt.Errorf("encoding prior state: %w", err)
	}
	next, err := json.Marshal(e.Next)
	if err != nil {
		return fmt.Errorf("encoding next state: %w", err)
	}
	_, err = s.exec(ctx, q, `
		INSERT INTO audit_entry (transaction_id, prior, next, actor, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.TransactionID, string(prior), string(next), e.Actor, e.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending audit entry for transaction %d: %w", e.TransactionID, err)
	}
	return nil
}

// History returns the audit trail of a transaction in append order.
func (s *Store) History(ctx context.Context, transactionID int64) ([]model.AuditEntry, error) {
	if _, err := s.Transaction(ctx, transactionID); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, s.db, `
		SELECT id, transaction_id, prior, next, actor, recorded_at
		FROM audit_entry WHERE transaction_id = ? ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			e                 model.AuditEntry
			prior, next, when string
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &prior, &next, &e.Actor, &when); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(prior), &e.Prior); err != nil {
			return nil, fmt.Errorf("audit entry %d: decoding prior state: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(next), &e.Next); err != nil {
			return nil, fmt.Errorf("audit entry %d: decoding next state: %w", e.ID, err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, when); err != nil {
			return nil, fmt.Errorf("audit entry %d: bad timestamp: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
