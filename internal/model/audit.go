package model

import "time"

// ReconciliationState is the part of a transaction the audit trail snapshots.
type ReconciliationState struct {
	Client    string    `json:"client,omitempty"`
	Process   string    `json:"process,omitempty"`
	Category  string    `json:"category,omitempty"`
	Direction Direction `json:"direction"`
}

// AuditEntry records one reconciliation mutation. Entries are never updated or deleted.
type AuditEntry struct {
	ID            int64               `json:"id"`
	TransactionID int64               `json:"transaction_id"`
	Prior         ReconciliationState `json:"prior"`
	Next          ReconciliationState `json:"next"`
	Actor         string              `json:"actor"`
	At            time.Time           `json:"at"`
}
