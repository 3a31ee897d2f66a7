// Package auditlog exports reconciliation audit trails as CSV.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// Header is the CSV header written before the entries.
const Header = "id,transaction_id,recorded_at,actor,prior_client,prior_process,prior_category,prior_direction,next_client,next_process,next_category,next_direction"

const (
	numFields         = 12
	colID             = 0
	colTransactionID  = 1
	colRecordedAt     = 2
	colActor          = 3
	colPriorClient    = 4
	colPriorProcess   = 5
	colPriorCategory  = 6
	colPriorDirection = 7
	colNextClient     = 8
	colNextProcess    = 9
	colNextCategory   = 10
	colNextDirection  = 11
)

// MarshalEntry converts an AuditEntry to a CSV row.
func MarshalEntry(e model.AuditEntry) []string {
	row := make([]string, numFields)
	row[colID] = strconv.FormatInt(e.ID, 10)
	row[colTransactionID] = strconv.FormatInt(e.TransactionID, 10)
	row[colRecordedAt] = e.At.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colPriorClient] = e.Prior.Client
	row[colPriorProcess] = e.Prior.Process
	row[colPriorCategory] = e.Prior.Category
	row[colPriorDirection] = string(e.Prior.Direction)
	row[colNextClient] = e.Next.Client
	row[colNextProcess] = e.Next.Process
	row[colNextCategory] = e.Next.Category
	row[colNextDirection] = string(e.Next.Direction)
	return row
}

// UnmarshalEntry converts a CSV row to an AuditEntry.
func UnmarshalEntry(record []string) (model.AuditEntry, error) {
	if len(record) != numFields {
		return model.AuditEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := strconv.ParseInt(record[colID], 10, 64)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("parsing id %q: %w", record[colID], err)
	}
	txID, err := strconv.ParseInt(record[colTransactionID], 10, 64)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("parsing transaction id %q: %w", record[colTransactionID], err)
	}
	at, err := time.Parse(time.RFC3339, record[colRecordedAt])
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("parsing timestamp %q: %w", record[colRecordedAt], err)
	}

	return model.AuditEntry{
		ID:            id,
		TransactionID: txID,
		At:            at,
		Actor:         record[colActor],
		Prior: model.ReconciliationState{
			Client:    record[colPriorClient],
			Process:   record[colPriorProcess],
			Category:  record[colPriorCategory],
			Direction: model.Direction(record[colPriorDirection]),
		},
		Next: model.ReconciliationState{
			Client:    record[colNextClient],
			Process:   record[colNextProcess],
			Category:  record[colNextCategory],
			Direction: model.Direction(record[colNextDirection]),
		},
	}, nil
}

// WriteEntries writes the header followed by one row per entry.
func WriteEntries(w io.Writer, entries []model.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadEntries parses a CSV produced by WriteEntries.
func ReadEntries(r io.Reader) ([]model.AuditEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []model.AuditEntry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
