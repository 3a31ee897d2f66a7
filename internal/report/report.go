// Package report aggregates reconciled transactions into monthly client reports.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/store"
)

// Source lists reconciled transactions.
type Source interface {
	ListReconciled(ctx context.Context, f store.ReconciledFilter) ([]model.Transaction, error)
}

// Aggregator builds monthly reports.
type Aggregator struct {
	src Source
	log *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(src Source, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{src: src, log: log}
}

// Aggregate builds the report of a client's reconciled movements in month
// ("YYYY-MM"). The opening balance is the signed sum of everything reconciled
// to the client before the month, so it always equals the previous month's
// closing. An empty company covers all companies.
func (a *Aggregator) Aggregate(ctx context.Context, client, company, month string) (*model.Report, error) {
	client = strings.TrimSpace(client)
	if client == "" {
		return nil, &model.ValidationError{Field: "client", Reason: "required"}
	}
	m, err := model.ParseMonth(strings.TrimSpace(month))
	if err != nil {
		return nil, &model.ValidationError{Field: "month", Reason: "expected YYYY-MM"}
	}

	before, err := a.src.ListReconciled(ctx, store.ReconciledFilter{Client: client, Company: company, To: m.Start()})
	if err != nil {
		return nil, fmt.Errorf("loading opening balance: %w", err)
	}
	opening := decimal.Zero
	for _, t := range before {
		opening = opening.Add(t.Signed())
	}

	txs, err := a.src.ListReconciled(ctx, store.ReconciledFilter{Client: client, Company: company, From: m.Start(), To: m.End()})
	if err != nil {
		return nil, fmt.Errorf("loading %s movements: %w", m, err)
	}

	r := &model.Report{
		Client:   client,
		Company:  company,
		Month:    m.String(),
		Opening:  opening,
		TotalIn:  decimal.Zero,
		TotalOut: decimal.Zero,
		Rows:     make([]model.ReportRow, 0, len(txs)),
	}
	running := opening
	for _, t := range txs {
		row := model.ReportRow{
			TransactionID: t.ID,
			Date:          t.Date,
			Bank:          t.Bank,
			Company:       t.Company,
			Description:   t.Description,
			Category:      t.Category,
			Process:       t.Process,
			Direction:     t.Direction,
			In:            decimal.Zero,
			Out:           decimal.Zero,
			BankBalance:   t.Balance,
		}
		if t.Direction == model.DirectionOut {
			row.Out = t.Amount
			r.TotalOut = r.TotalOut.Add(t.Amount)
		} else {
			row.In = t.Amount
			r.TotalIn = r.TotalIn.Add(t.Amount)
		}
		running = running.Add(t.Signed())
		row.Balance = running
		r.Rows = append(r.Rows, row)
	}
	r.Closing = r.Opening.Add(r.TotalIn).Sub(r.TotalOut)

	a.log.Debug("aggregated report", "client", client, "company", company, "month", r.Month, "rows", len(r.Rows))
	return r, nil
}
