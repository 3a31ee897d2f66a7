// Package reconcile associates committed transactions with a client, process
// and category, recording every change in the audit trail.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/conciliar-dev/conciliar/internal/catalog"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/store"
)

// Store is the persistence the engine needs.
type Store interface {
	Transaction(ctx context.Context, id int64) (model.Transaction, error)
	ApplyReconciliation(ctx context.Context, id int64, expectedVersion int, prior model.ReconciliationState, next model.Reconciliation) (model.Transaction, error)
	History(ctx context.Context, id int64) ([]model.AuditEntry, error)
	ListTransactions(ctx context.Context, f store.TransactionFilter) ([]model.Transaction, error)
}

// Engine applies reconciliation requests.
type Engine struct {
	store      Store
	categories *catalog.Service
	log        *slog.Logger
	now        func() time.Time
}

// New creates an Engine.
func New(st Store, categories *catalog.Service, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: st, categories: categories, log: log, now: time.Now}
}

// Request is one reconciliation decision. A nil ExpectedVersion means the
// version read at the start of the call.
type Request struct {
	TransactionID   int64           `json:"-"`
	Client          string          `json:"client"`
	Process         string          `json:"process"`
	Category        string          `json:"category"`
	Direction       model.Direction `json:"direction"`
	Actor           string          `json:"actor"`
	ExpectedVersion *int            `json:"expected_version"`
}

// Reconcile validates the request and applies it with a compare-and-set on the
// transaction version. Each successful call appends exactly one audit entry,
// even when nothing changes.
func (e *Engine) Reconcile(ctx context.Context, req Request) (model.Transaction, error) {
	req.Client = strings.TrimSpace(req.Client)
	req.Process = strings.TrimSpace(req.Process)
	req.Actor = strings.TrimSpace(req.Actor)

	if req.Client == "" {
		return model.Transaction{}, &model.ValidationError{Field: "client", Reason: "required"}
	}
	if req.Actor == "" {
		return model.Transaction{}, &model.ValidationError{Field: "actor", Reason: "required"}
	}
	if strings.TrimSpace(req.Category) == "" {
		return model.Transaction{}, &model.ValidationError{Field: "category", Reason: "required"}
	}
	if !e.categories.Exists(req.Category) {
		return model.Transaction{}, &model.ValidationError{Field: "category", Reason: "unknown category " + req.Category}
	}
	cat, _ := e.categories.Get(req.Category)
	if req.Direction != "" && !req.Direction.Valid() {
		return model.Transaction{}, &model.ValidationError{Field: "direction", Reason: "must be IN or OUT"}
	}

	current, err := e.store.Transaction(ctx, req.TransactionID)
	if err != nil {
		return model.Transaction{}, err
	}
	expected := current.Version
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}
	dir := req.Direction
	if dir == "" {
		dir = current.Direction
	}

	next := model.Reconciliation{
		Client:    req.Client,
		Process:   req.Process,
		Category:  cat.Code,
		Direction: dir,
		By:        req.Actor,
		At:        e.now().UTC(),
	}
	updated, err := e.store.ApplyReconciliation(ctx, req.TransactionID, expected, current.State(), next)
	if err != nil {
		e.log.Warn("reconciliation failed", "transaction", req.TransactionID, "actor", req.Actor, "err", err)
		return model.Transaction{}, err
	}
	e.log.Info("reconciled transaction", "transaction", updated.ID, "version", updated.Version,
		"client", updated.Client, "category", updated.Category, "actor", req.Actor)
	return updated, nil
}

// Transaction returns a committed transaction.
func (e *Engine) Transaction(ctx context.Context, id int64) (model.Transaction, error) {
	return e.store.Transaction(ctx, id)
}

// History returns the audit trail of a transaction in append order.
func (e *Engine) History(ctx context.Context, id int64) ([]model.AuditEntry, error) {
	return e.store.History(ctx, id)
}

// List returns committed transactions matching f, newest first.
func (e *Engine) List(ctx context.Context, f store.TransactionFilter) ([]model.Transaction, error) {
	return e.store.ListTransactions(ctx, f)
}
