package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus is the lifecycle state of an ImportBatch.
type BatchStatus string

const (
	BatchStaged         BatchStatus = "STAGED"
	BatchDuplicateWhole BatchStatus = "DUPLICATE_WHOLE"
	BatchCommitted      BatchStatus = "COMMITTED"
	BatchRejected       BatchStatus = "REJECTED"
)

// Candidate is a normalized statement row waiting for commit.
type Candidate struct {
	Row         int                 `json:"row"`
	Date        time.Time           `json:"date"`
	Description string              `json:"description"`
	Reference   string              `json:"reference,omitempty"`
	Amount      decimal.Decimal     `json:"amount"` // always positive
	Direction   Direction           `json:"direction"`
	Balance     decimal.NullDecimal `json:"balance"`
	Extra       map[string]string   `json:"extra,omitempty"`
	Source      string              `json:"source,omitempty"` // statement line text
	Line        int                 `json:"line,omitempty"`   // 1-based index into ImportBatch.Lines, 0 when unknown

	Duplicate   bool  `json:"duplicate"`
	DuplicateOf int64 `json:"duplicate_of,omitempty"`
}

// Signed returns the amount with the sign of the direction.
func (c Candidate) Signed() decimal.Decimal {
	return c.Amount.Mul(c.Direction.Sign())
}

// DedupKey is the tuple two rows must share to be considered the same movement.
// Rows are only compared within one company and account.
type DedupKey struct {
	Bank        string
	Company     string
	Account     string
	Date        string
	Amount      string
	Direction   Direction
	Balance     string // empty when the bank reported none
	Description string
}

// Key returns the dedup tuple for the candidate.
func (c Candidate) Key(bank, company, account string) DedupKey {
	k := DedupKey{
		Bank:        bank,
		Company:     company,
		Account:     account,
		Date:        c.Date.Format(DateLayout),
		Amount:      c.Amount.StringFixed(2),
		Direction:   c.Direction,
		Description: c.Description,
	}
	if c.Balance.Valid {
		k.Balance = c.Balance.Decimal.StringFixed(2)
	}
	return k
}

// DateLayout is the storage and wire layout of statement dates.
const DateLayout = "2006-01-02"

// RowError describes a row-level problem surfaced in the preview.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// SourceLine is one line of text extracted from an uploaded document, in
// document order. Page is 1-based for PDFs and 0 for other formats.
type SourceLine struct {
	Line int    `json:"line"`
	Page int    `json:"page,omitempty"`
	Text string `json:"text"`
}

// ImportBatch is the staged result of parsing one uploaded document.
type ImportBatch struct {
	ID             string              `json:"id"`
	SourceName     string              `json:"source_name"`
	DocumentHash   string              `json:"document_hash"`
	Bank           string              `json:"bank"`
	Company        string              `json:"company"`
	Account        string              `json:"account,omitempty"`
	Format         string              `json:"format"`
	OpeningBalance decimal.NullDecimal `json:"opening_balance"`
	Candidates     []Candidate         `json:"candidates"`
	Lines          []SourceLine        `json:"lines,omitempty"`
	Status         BatchStatus         `json:"status"`
	Errors         []RowError          `json:"errors,omitempty"`
	StagedAt       time.Time           `json:"staged_at"`
	Seal           string              `json:"seal,omitempty"` // HMAC over the staged content
}

// Duplicates returns the rows flagged as duplicates.
func (b *ImportBatch) Duplicates() []int {
	var rows []int
	for _, c := range b.Candidates {
		if c.Duplicate {
			rows = append(rows, c.Row)
		}
	}
	return rows
}
