// Package pipeline stages uploaded statements for review and commits them
// once the user confirms.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/dedup"
	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/fingerprint"
	"github.com/conciliar-dev/conciliar/internal/importer"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/normalize"
	"github.com/conciliar-dev/conciliar/internal/store"
)

// Store is the persistence the pipeline needs.
type Store interface {
	dedup.Lookup
	CommittedBatch(ctx context.Context, batchID string) ([]int64, bool, error)
	CommitBatch(ctx context.Context, req store.CommitRequest) (*store.CommitResult, error)
}

// Pipeline runs uploads through fingerprinting, parsing, normalization and
// duplicate detection.
type Pipeline struct {
	registry  *importer.Registry
	store     Store
	resolver  *dedup.Resolver
	tolerance decimal.Decimal
	sealer    *sealer
	log       *slog.Logger
	now       func() time.Time
}

// Options configures a Pipeline.
type Options struct {
	Tolerance decimal.Decimal
	Logger    *slog.Logger
	// SealKey signs staged batches. Empty means a random key for this process.
	SealKey []byte
}

// New creates a Pipeline.
func New(registry *importer.Registry, st Store, opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		registry:  registry,
		store:     st,
		resolver:  dedup.NewResolver(st),
		tolerance: opts.Tolerance,
		sealer:    newSealer(opts.SealKey),
		log:       log,
		now:       time.Now,
	}
}

// Upload is a statement document submitted for import.
type Upload struct {
	Name    string
	Data    []byte
	Bank    string
	Company string
	Account string
}

// Stage parses and classifies an upload without writing anything. Parse and
// continuity failures return the REJECTED batch along with an ImportRejectedError.
func (p *Pipeline) Stage(ctx context.Context, up Upload) (*model.ImportBatch, error) {
	if len(up.Data) == 0 {
		return nil, &model.ValidationError{Field: "file", Reason: "empty document"}
	}
	if up.Company == "" {
		return nil, &model.ValidationError{Field: "company", Reason: "required"}
	}
	parser, err := p.registry.Resolve(up.Bank)
	if err != nil {
		return nil, err
	}

	doc := document.New(up.Name, up.Data)
	if !importer.Supports(parser, doc.Format) {
		return nil, &model.UnsupportedBankError{Bank: parser.Bank(), Format: string(doc.Format)}
	}

	b := &model.ImportBatch{
		ID:           uuid.NewString(),
		SourceName:   up.Name,
		DocumentHash: fingerprint.Sum(up.Data),
		Bank:         parser.Bank(),
		Company:      up.Company,
		Account:      up.Account,
		Format:       string(doc.Format),
		StagedAt:     p.now().UTC(),
	}
	log := p.log.With("batch", b.ID, "bank", b.Bank, "source", b.SourceName)

	records, err := parser.Parse(doc)
	if err != nil {
		return p.reject(log, b, err)
	}
	st, err := normalize.Normalize(records, p.tolerance)
	if err != nil {
		return p.reject(log, b, err)
	}
	b.OpeningBalance = st.Opening
	b.Candidates = st.Candidates

	src, err := doc.SourceLines()
	if err != nil {
		return p.reject(log, b, err)
	}
	b.Lines = make([]model.SourceLine, len(src))
	for i, l := range src {
		b.Lines[i] = model.SourceLine{Line: i + 1, Page: l.Page, Text: l.Text}
	}
	locate(b.Candidates, b.Lines)

	if err := p.resolver.Check(ctx, b); err != nil {
		return nil, fmt.Errorf("staging %s: %w", up.Name, err)
	}
	b.Seal = p.sealer.sign(b)
	log.Info("staged statement", "rows", len(b.Candidates), "duplicates", len(b.Duplicates()), "status", b.Status)
	return b, nil
}

// locate points each candidate at the first line, after the previous
// candidate's, that it was read from. Parsers that merge continuation lines
// report the merged text, which starts with the first physical line.
func locate(cands []model.Candidate, lines []model.SourceLine) {
	next := 0
	for i := range cands {
		src := cands[i].Source
		if src == "" {
			continue
		}
		for j := next; j < len(lines); j++ {
			if text := lines[j].Text; src == text || strings.HasPrefix(src, text+" ") {
				cands[i].Line = lines[j].Line
				next = j + 1
				break
			}
		}
	}
}

func (p *Pipeline) reject(log *slog.Logger, b *model.ImportBatch, err error) (*model.ImportBatch, error) {
	b.Status = model.BatchRejected
	b.Errors = []model.RowError{rowError(err)}
	log.Warn("rejected statement", "err", err)
	return b, &model.ImportRejectedError{Source: b.SourceName, Err: err}
}

func rowError(err error) model.RowError {
	var fe *model.ParseFieldError
	if errors.As(err, &fe) {
		return model.RowError{Row: fe.Row, Field: fe.Field, Message: err.Error()}
	}
	var ce *model.BalanceContinuityError
	if errors.As(err, &ce) {
		return model.RowError{Row: ce.Row, Field: "balance", Message: err.Error()}
	}
	return model.RowError{Message: err.Error()}
}

// CommitOptions carries the user's decisions about a staged batch.
type CommitOptions struct {
	Confirm          bool
	Override         bool  // commit a DUPLICATE_WHOLE batch, skipping rows already stored
	AcceptDuplicates []int // flagged rows to commit anyway
	Actor            string
}

// CommitResult reports what a commit stored.
type CommitResult struct {
	BatchID        string  `json:"batch_id"`
	TransactionIDs []int64 `json:"transaction_ids"`
	Skipped        []int   `json:"skipped,omitempty"`  // flagged duplicates left out
	Existing       []int   `json:"existing,omitempty"` // rows already stored from this document
	Replayed       bool    `json:"replayed,omitempty"` // batch had been committed before
}

// Commit persists a staged batch. The payload may have travelled through a
// client, so it must carry the seal Stage issued, and continuity and
// duplicates are checked again before writing. Committing the same batch
// again returns the original transaction ids.
func (p *Pipeline) Commit(ctx context.Context, b *model.ImportBatch, opts CommitOptions) (*CommitResult, error) {
	if err := validateCommit(b, opts); err != nil {
		return nil, err
	}
	if !p.sealer.verify(b) {
		return nil, &model.ValidationError{Field: "batch", Reason: "batch does not match what was staged; stage the document again"}
	}
	log := p.log.With("batch", b.ID, "bank", b.Bank, "actor", opts.Actor)

	if res, ok, err := p.replay(ctx, b.ID); err != nil || ok {
		return res, err
	}

	if err := normalize.VerifyContinuity(b.OpeningBalance, b.Candidates, p.tolerance); err != nil {
		return nil, err
	}
	if err := p.resolver.Check(ctx, b); err != nil {
		return nil, fmt.Errorf("committing batch %s: %w", b.ID, err)
	}
	if b.Status == model.BatchDuplicateWhole && !opts.Override {
		return nil, &model.DuplicateWholeDocumentError{Hash: b.DocumentHash}
	}

	accepted := make(map[int]bool, len(opts.AcceptDuplicates))
	for _, row := range opts.AcceptDuplicates {
		accepted[row] = true
	}
	res := &CommitResult{BatchID: b.ID}
	var selected []model.Candidate
	for _, c := range b.Candidates {
		if c.Duplicate && !accepted[c.Row] {
			res.Skipped = append(res.Skipped, c.Row)
			continue
		}
		selected = append(selected, c)
	}

	stored, err := p.store.CommitBatch(ctx, store.CommitRequest{
		Batch:      b,
		Candidates: selected,
		Override:   opts.Override,
		Actor:      opts.Actor,
		At:         p.now(),
	})
	if err != nil {
		var dup *model.DuplicateWholeDocumentError
		if errors.As(err, &dup) {
			// A concurrent commit of this same batch won the race.
			if res, ok, rerr := p.replay(ctx, b.ID); rerr == nil && ok {
				return res, nil
			}
		}
		return nil, err
	}

	b.Status = model.BatchCommitted
	res.TransactionIDs = stored.TransactionIDs
	res.Existing = stored.Skipped
	log.Info("committed statement", "stored", len(res.TransactionIDs), "skipped", len(res.Skipped), "existing", len(res.Existing))
	return res, nil
}

func (p *Pipeline) replay(ctx context.Context, batchID string) (*CommitResult, bool, error) {
	ids, ok, err := p.store.CommittedBatch(ctx, batchID)
	if err != nil || !ok {
		return nil, false, err
	}
	return &CommitResult{BatchID: batchID, TransactionIDs: ids, Replayed: true}, true, nil
}

func validateCommit(b *model.ImportBatch, opts CommitOptions) error {
	if !opts.Confirm {
		return &model.ValidationError{Field: "confirm", Reason: "commit requires explicit confirmation"}
	}
	if opts.Actor == "" {
		return &model.ValidationError{Field: "actor", Reason: "required"}
	}
	if b == nil || b.ID == "" || b.DocumentHash == "" {
		return &model.ValidationError{Field: "batch", Reason: "missing staged batch"}
	}
	if b.Status == model.BatchRejected {
		return &model.ValidationError{Field: "batch", Reason: "rejected batches cannot be committed"}
	}

	rows := make(map[int]bool, len(b.Candidates))
	for i, c := range b.Candidates {
		if i > 0 && c.Row <= b.Candidates[i-1].Row {
			return &model.ValidationError{Field: "candidates", Reason: "rows out of document order"}
		}
		if !c.Direction.Valid() || c.Amount.IsNegative() {
			return &model.ValidationError{Field: "candidates", Reason: fmt.Sprintf("row %d is malformed", c.Row)}
		}
		rows[c.Row] = true
	}
	accepted := append([]int(nil), opts.AcceptDuplicates...)
	sort.Ints(accepted)
	for _, row := range accepted {
		if !rows[row] {
			return &model.ValidationError{Field: "accept_duplicates", Reason: fmt.Sprintf("row %d is not in the batch", row)}
		}
	}
	return nil
}
