package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnsupportedBankError means no parser variant handles the bank (or the bank's document format).
type UnsupportedBankError struct {
	Bank   string
	Format string
}

func (e *UnsupportedBankError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("unsupported bank %q for %s documents", e.Bank, e.Format)
	}
	return fmt.Sprintf("unsupported bank %q", e.Bank)
}

// ParseFieldError is a malformed field in a statement row.
type ParseFieldError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ParseFieldError) Error() string {
	return fmt.Sprintf("row %d: field %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *ParseFieldError) Unwrap() error { return e.Err }

// BalanceContinuityError means a reported running balance does not follow from
// the previous balance and the row amount.
type BalanceContinuityError struct {
	Row      int
	Expected decimal.Decimal
	Reported decimal.Decimal
}

func (e *BalanceContinuityError) Error() string {
	return fmt.Sprintf("row %d: running balance %s, expected %s",
		e.Row, e.Reported.StringFixed(2), e.Expected.StringFixed(2))
}

// DuplicateWholeDocumentError refuses a commit of an already imported document.
type DuplicateWholeDocumentError struct {
	Hash string
}

func (e *DuplicateWholeDocumentError) Error() string {
	return fmt.Sprintf("document %s was already imported", e.Hash)
}

// ImportRejectedError aborts a whole batch; Err is the first fatal error.
type ImportRejectedError struct {
	Source string
	Err    error
}

func (e *ImportRejectedError) Error() string {
	return fmt.Sprintf("import of %s rejected: %v", e.Source, e.Err)
}

func (e *ImportRejectedError) Unwrap() error { return e.Err }

// NotFoundError is an unknown identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ValidationError is a request that violates a business rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ReconciliationConflictError means another writer changed the transaction first.
type ReconciliationConflictError struct {
	TransactionID   int64
	ExpectedVersion int
}

func (e *ReconciliationConflictError) Error() string {
	return fmt.Sprintf("transaction %d changed concurrently (expected version %d)", e.TransactionID, e.ExpectedVersion)
}
