package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

const transactionColumns = `id, batch_id, bank, company, account, posted_on, description, reference,
	amount, balance, doc_hash, row_index, source_line, direction, client, process, category,
	reconciled_by, reconciled_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (model.Transaction, error) {
	var (
		t                          model.Transaction
		postedOn                   string
		direction                  string
		client, process, category  sql.NullString
		reconciledBy, reconciledAt sql.NullString
	)
	err := r.Scan(&t.ID, &t.BatchID, &t.Bank, &t.Company, &t.Account, &postedOn, &t.Description, &t.Reference,
		&t.Amount, &t.Balance, &t.DocumentHash, &t.Row, &t.SourceLine, &direction, &client, &process, &category,
		&reconciledBy, &reconciledAt, &t.Version)
	if err != nil {
		return model.Transaction{}, err
	}
	if t.Date, err = time.Parse(model.DateLayout, postedOn); err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %d: bad date %q: %w", t.ID, postedOn, err)
	}
	t.Direction = model.Direction(direction)
	t.Client = client.String
	t.Process = process.String
	t.Category = category.String
	t.By = reconciledBy.String
	if reconciledAt.Valid {
		if t.At, err = time.Parse(time.RFC3339Nano, reconciledAt.String); err != nil {
			return model.Transaction{}, fmt.Errorf("transaction %d: bad reconciliation time: %w", t.ID, err)
		}
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.StringFixed(2), Valid: true}
}

// Transaction returns a committed transaction by id.
func (s *Store) Transaction(ctx context.Context, id int64) (model.Transaction, error) {
	return s.transaction(ctx, s.db, id)
}

func (s *Store) transaction(ctx context.Context, q querier, id int64) (model.Transaction, error) {
	row := s.queryRow(ctx, q, `SELECT `+transactionColumns+` FROM bank_transaction WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, &model.NotFoundError{Kind: "transaction", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("loading transaction %d: %w", id, err)
	}
	return t, nil
}

// FindDuplicate returns the id of a stored transaction matching the dedup key,
// using the direction the bank reported.
func (s *Store) FindDuplicate(ctx context.Context, key model.DedupKey) (int64, bool, error) {
	var id int64
	err := s.queryRow(ctx, s.db, `
		SELECT id FROM bank_transaction
		WHERE bank = ? AND company = ? AND account = ? AND posted_on = ? AND amount = ?
		  AND bank_direction = ? AND description = ? AND COALESCE(balance, '') = ?
		ORDER BY id LIMIT 1`,
		key.Bank, key.Company, key.Account, key.Date, key.Amount, string(key.Direction), key.Description, key.Balance,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up duplicate: %w", err)
	}
	return id, true, nil
}

// ApplyReconciliation sets the reconciliation fields of a transaction if its
// version still equals expectedVersion, and appends the audit entry in the same
// database transaction.
func (s *Store) ApplyReconciliation(ctx context.Context, id int64, expectedVersion int, prior model.ReconciliationState, next model.Reconciliation) (model.Transaction, error) {
	var updated model.Transaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `
			UPDATE bank_transaction
			SET client = ?, process = ?, category = ?, direction = ?,
			    reconciled_by = ?, reconciled_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			nullString(next.Client), nullString(next.Process), nullString(next.Category), string(next.Direction),
			next.By, next.At.UTC().Format(time.RFC3339Nano), id, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("updating transaction %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating transaction %d: %w", id, err)
		}
		if n == 0 {
			if _, err := s.transaction(ctx, tx, id); err != nil {
				return err
			}
			return &model.ReconciliationConflictError{TransactionID: id, ExpectedVersion: expectedVersion}
		}

		entry := model.AuditEntry{
			TransactionID: id,
			Prior:         prior,
			Next: model.ReconciliationState{
				Client:    next.Client,
				Process:   next.Process,
				Category:  next.Category,
				Direction: next.Direction,
			},
			Actor: next.By,
			At:    next.At,
		}
		if err := s.appendAudit(ctx, tx, entry); err != nil {
			return err
		}

		updated, err = s.transaction(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Transaction{}, err
	}
	return updated, nil
}

// ReconciledFilter selects reconciled transactions for reporting.
type ReconciledFilter struct {
	Client  string
	Company string    // empty means all companies
	From    time.Time // inclusive; zero means unbounded
	To      time.Time // exclusive
}

// ListReconciled returns the client's reconciled transactions ordered by date and id.
func (s *Store) ListReconciled(ctx context.Context, f ReconciledFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transaction
		WHERE client = ? AND category IS NOT NULL AND category <> '' AND posted_on < ?`
	args := []any{f.Client, f.To.Format(model.DateLayout)}
	if !f.From.IsZero() {
		query += ` AND posted_on >= ?`
		args = append(args, f.From.Format(model.DateLayout))
	}
	if f.Company != "" {
		query += ` AND company = ?`
		args = append(args, f.Company)
	}
	query += ` ORDER BY posted_on, id`

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reconciled transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TransactionFilter selects committed transactions for browsing. Empty fields
// do not filter.
type TransactionFilter struct {
	Company          string
	Account          string
	Bank             string
	From             time.Time // inclusive
	To               time.Time // exclusive
	UnreconciledOnly bool
	Client           string
	Process          string
	Limit            int // zero means no limit
}

// ListTransactions returns matching transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transaction WHERE 1 = 1`
	var args []any
	for _, c := range []struct {
		cond  string
		value string
	}{
		{` AND company = ?`, f.Company},
		{` AND account = ?`, f.Account},
		{` AND bank = ?`, f.Bank},
		{` AND client = ?`, f.Client},
		{` AND process = ?`, f.Process},
	} {
		if c.value != "" {
			query += c.cond
			args = append(args, c.value)
		}
	}
	if !f.From.IsZero() {
		query += ` AND posted_on >= ?`
		args = append(args, f.From.Format(model.DateLayout))
	}
	if !f.To.IsZero() {
		query += ` AND posted_on < ?`
		args = append(args, f.To.Format(model.DateLayout))
	}
	if f.UnreconciledOnly {
		query += ` AND (client IS NULL OR client = '' OR category IS NULL OR category = '')`
	}
	query += ` ORDER BY posted_on DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
