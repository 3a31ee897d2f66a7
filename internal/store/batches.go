package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// DocumentExists reports whether a document with this hash was already committed.
func (s *Store) DocumentExists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.queryRow(ctx, s.db,
		`SELECT 1 FROM import_batch WHERE doc_hash = ? AND status = ? LIMIT 1`,
		hash, string(model.BatchCommitted),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up document %s: %w", hash, err)
	}
	return true, nil
}

// CommittedBatch returns the transaction ids of an already committed batch.
func (s *Store) CommittedBatch(ctx context.Context, batchID string) ([]int64, bool, error) {
	var status string
	err := s.queryRow(ctx, s.db, `SELECT status FROM import_batch WHERE id = ?`, batchID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up batch %s: %w", batchID, err)
	}

	rows, err := s.query(ctx, s.db,
		`SELECT id FROM bank_transaction WHERE batch_id = ? ORDER BY row_index`, batchID)
	if err != nil {
		return nil, false, fmt.Errorf("listing batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, false, fmt.Errorf("scanning batch %s: %w", batchID, err)
		}
		ids = append(ids, id)
	}
	return ids, true, rows.Err()
}

// CommitRequest is a batch ready to be written.
type CommitRequest struct {
	Batch      *model.ImportBatch
	Candidates []model.Candidate // rows to persist, in document order
	Override   bool
	Actor      string
	At         time.Time
}

// CommitResult lists what a commit wrote.
type CommitResult struct {
	TransactionIDs []int64
	Skipped        []int // rows already stored under the same (hash, row)
}

// CommitBatch writes the batch record and its transactions atomically. A
// (hash, row) collision fails the whole commit with DuplicateWholeDocumentError
// unless Override is set, in which case colliding rows are skipped.
func (s *Store) CommitBatch(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	b := req.Batch
	res := &CommitResult{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx, `
			INSERT INTO import_batch
				(id, source_name, doc_hash, bank, company, account, format, status, override, committed_by, committed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.SourceName, b.DocumentHash, b.Bank, b.Company, b.Account, b.Format,
			string(model.BatchCommitted), boolInt(req.Override), req.Actor, req.At.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &model.DuplicateWholeDocumentError{Hash: b.DocumentHash}
			}
			return fmt.Errorf("recording batch %s: %w", b.ID, err)
		}

		for _, l := range b.Lines {
			_, err := s.exec(ctx, tx,
				`INSERT INTO import_line (batch_id, line_no, page, text) VALUES (?, ?, ?, ?)`,
				b.ID, l.Line, l.Page, l.Text)
			if err != nil {
				return fmt.Errorf("storing line %d: %w", l.Line, err)
			}
		}

		for _, c := range req.Candidates {
			if req.Override {
				exists, err := s.rowExists(ctx, tx, b.DocumentHash, c.Row)
				if err != nil {
					return err
				}
				if exists {
					res.Skipped = append(res.Skipped, c.Row)
					continue
				}
			}
			id, err := s.insertTransaction(ctx, tx, b, c)
			if err != nil {
				if isUniqueViolation(err) {
					return &model.DuplicateWholeDocumentError{Hash: b.DocumentHash}
				}
				return fmt.Errorf("storing row %d: %w", c.Row, err)
			}
			res.TransactionIDs = append(res.TransactionIDs, id)
		}

		_, err = s.exec(ctx, tx, `UPDATE import_batch SET row_count = ?, line_count = ? WHERE id = ?`,
			len(res.TransactionIDs), len(b.Lines), b.ID)
		if err != nil {
			return fmt.Errorf("updating batch %s: %w", b.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BatchLines returns the text lines stored with a committed batch, in document order.
func (s *Store) BatchLines(ctx context.Context, batchID string) ([]model.SourceLine, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT line_no, page, text FROM import_line WHERE batch_id = ? ORDER BY line_no`, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing lines of batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var lines []model.SourceLine
	for rows.Next() {
		var l model.SourceLine
		if err := rows.Scan(&l.Line, &l.Page, &l.Text); err != nil {
			return nil, fmt.Errorf("scanning line of batch %s: %w", batchID, err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) rowExists(ctx context.Context, q querier, hash string, row int) (bool, error) {
	var one int
	err := s.queryRow(ctx, q,
		`SELECT 1 FROM bank_transaction WHERE doc_hash = ? AND row_index = ?`, hash, row).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking row %d: %w", row, err)
	}
	return true, nil
}

func (s *Store) insertTransaction(ctx context.Context, q querier, b *model.ImportBatch, c model.Candidate) (int64, error) {
	var id int64
	err := s.queryRow(ctx, q, `
		INSERT INTO bank_transaction
			(batch_id, bank, company, account, posted_on, description, reference, amount,
			 bank_direction, balance, doc_hash, row_index, source_line, direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		b.ID, b.Bank, b.Company, b.Account, c.Date.Format(model.DateLayout), c.Description, c.Reference,
		c.Amount.StringFixed(2), string(c.Direction), nullDecimal(c.Balance), b.DocumentHash, c.Row,
		c.Line, string(c.Direction),
	).Scan(&id)
	return id, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
