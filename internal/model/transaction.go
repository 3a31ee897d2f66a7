package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction says whether money entered or left the account.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// ParseDirection accepts the markers banks and users commonly write for a direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN", "C", "CREDIT", "CREDITO", "CRÉDITO", "ENTRADA", "RECEITA":
		return DirectionIn, nil
	case "OUT", "D", "DEBIT", "DEBITO", "DÉBITO", "SAIDA", "SAÍDA", "DESPESA":
		return DirectionOut, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Valid reports whether d is IN or OUT.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Sign returns +1 for IN and -1 for OUT.
func (d Direction) Sign() decimal.Decimal {
	if d == DirectionOut {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Reconciliation is the mutable association of a transaction with business context.
// The zero value is the UNRECONCILED state.
type Reconciliation struct {
	Client    string    `json:"client,omitempty"`
	Process   string    `json:"process,omitempty"`
	Category  string    `json:"category,omitempty"`
	Direction Direction `json:"direction"`
	By        string    `json:"by,omitempty"`
	At        time.Time `json:"at,omitempty"`
}

// Reconciled reports whether client and category are both set.
func (r Reconciliation) Reconciled() bool {
	return r.Client != "" && r.Category != ""
}

// Transaction is a committed bank movement.
type Transaction struct {
	ID           int64               `json:"id"`
	BatchID      string              `json:"batch_id"`
	Bank         string              `json:"bank"`
	Company      string              `json:"company"`
	Account      string              `json:"account,omitempty"`
	Date         time.Time           `json:"date"`
	Description  string              `json:"description"`
	Reference    string              `json:"reference,omitempty"`
	Amount       decimal.Decimal     `json:"amount"` // always positive
	Balance      decimal.NullDecimal `json:"balance"`
	DocumentHash string              `json:"document_hash"`
	Row          int                 `json:"row"`
	SourceLine   int                 `json:"source_line,omitempty"` // import_line this row was read from
	Version      int                 `json:"version"`

	Reconciliation
}

// Signed returns the amount with the sign of the direction.
func (t Transaction) Signed() decimal.Decimal {
	return t.Amount.Mul(t.Direction.Sign())
}

// State returns the reconciliation snapshot recorded in the audit trail.
func (t Transaction) State() ReconciliationState {
	return ReconciliationState{
		Client:    t.Client,
		Process:   t.Process,
		Category:  t.Category,
		Direction: t.Direction,
	}
}
