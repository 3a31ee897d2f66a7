package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "conciliar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2025, 10, d, 0, 0, 0, 0, time.UTC)
}

func testBatch(id, hash string) *model.ImportBatch {
	return &model.ImportBatch{
		ID:           id,
		SourceName:   "extrato.pdf",
		DocumentHash: hash,
		Bank:         "INTER",
		Company:      "ACME",
		Format:       "pdf",
		Status:       model.BatchStaged,
	}
}

func testCandidates() []model.Candidate {
	return []model.Candidate{
		{Row: 2, Date: day(27), Description: "PIX RECEBIDO", Amount: decimal.RequireFromString("200"), Direction: model.DirectionIn,
			Balance: decimal.NewNullDecimal(decimal.RequireFromString("1200"))},
		{Row: 3, Date: day(27), Description: "TARIFA", Amount: decimal.RequireFromString("50"), Direction: model.DirectionOut,
			Balance: decimal.NewNullDecimal(decimal.RequireFromString("1150"))},
	}
}

func commitTest(t *testing.T, s *Store, id, hash string) []int64 {
	t.Helper()
	res, err := s.CommitBatch(context.Background(), CommitRequest{
		Batch: testBatch(id, hash), Candidates: testCandidates(), Actor: "ana", At: time.Now(),
	})
	require.NoError(t, err)
	return res.TransactionIDs
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

func TestOpen_Twice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conciliar.db")
	s, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCommitBatch_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ids := commitTest(t, s, "b1", "hash1")
	require.Len(t, ids, 2)

	tx, err := s.Transaction(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "b1", tx.BatchID)
	assert.Equal(t, "INTER", tx.Bank)
	assert.Equal(t, day(27), tx.Date)
	assert.Equal(t, "200.00", tx.Amount.StringFixed(2))
	assert.Equal(t, model.DirectionIn, tx.Direction)
	assert.True(t, tx.Balance.Valid)
	assert.Equal(t, "1200.00", tx.Balance.Decimal.StringFixed(2))
	assert.Equal(t, 2, tx.Row)
	assert.Equal(t, 0, tx.Version)
	assert.False(t, tx.Reconciled())

	exists, err := s.DocumentExists(ctx, "hash1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.DocumentExists(ctx, "other")
	require.NoError(t, err)
	assert.False(t, exists)

	got, ok, err := s.CommittedBatch(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ids, got)

	_, ok, err = s.CommittedBatch(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitBatch_SameDocumentTwice(t *testing.T) {
	s := openTestStore(t)
	commitTest(t, s, "b1", "hash1")

	_, err := s.CommitBatch(context.Background(), CommitRequest{
		Batch: testBatch("b2", "hash1"), Candidates: testCandidates(), Actor: "ana", At: time.Now(),
	})
	var dup *model.DuplicateWholeDocumentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "hash1", dup.Hash)

	_, ok, err := s.CommittedBatch(context.Background(), "b2")
	require.NoError(t, err)
	assert.False(t, ok, "failed commit leaves nothing behind")
}

func TestCommitBatch_OverrideSkipsExistingRows(t *testing.T) {
	s := openTestStore(t)
	commitTest(t, s, "b1", "hash1")

	cands := append(testCandidates(), model.Candidate{
		Row: 4, Date: day(28), Description: "NOVO", Amount: decimal.RequireFromString("10"), Direction: model.DirectionIn,
	})
	res, err := s.CommitBatch(context.Background(), CommitRequest{
		Batch: testBatch("b2", "hash1"), Candidates: cands, Override: true, Actor: "ana", At: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, res.Skipped)
	assert.Len(t, res.TransactionIDs, 1)
}

func TestFindDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ids := commitTest(t, s, "b1", "hash1")

	c := testCandidates()[1]
	id, ok, err := s.FindDuplicate(ctx, c.Key("INTER", "ACME", ""))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ids[1], id)

	_, ok, err = s.FindDuplicate(ctx, c.Key("NUBANK", "ACME", ""))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.FindDuplicate(ctx, c.Key("INTER", "OTHER", ""))
	require.NoError(t, err)
	assert.False(t, ok, "another company's identical fee is not a duplicate")

	_, ok, err = s.FindDuplicate(ctx, c.Key("INTER", "ACME", "0001-9"))
	require.NoError(t, err)
	assert.False(t, ok, "account is part of the key")

	c.Balance = decimal.NullDecimal{}
	_, ok, err = s.FindDuplicate(ctx, c.Key("INTER", "ACME", ""))
	require.NoError(t, err)
	assert.False(t, ok, "balance is part of the key")
}

func TestApplyReconciliation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := commitTest(t, s, "b1", "hash1")[0]

	at := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	next := model.Reconciliation{Client: "ACME", Category: "SALES", Direction: model.DirectionIn, By: "ana", At: at}
	prior := model.ReconciliationState{Direction: model.DirectionIn}

	tx, err := s.ApplyReconciliation(ctx, id, 0, prior, next)
	require.NoError(t, err)
	assert.Equal(t, 1, tx.Version)
	assert.Equal(t, "ACME", tx.Client)
	assert.Equal(t, "ana", tx.By)
	assert.Equal(t, at, tx.At)
	assert.True(t, tx.Reconciled())

	_, err = s.ApplyReconciliation(ctx, id, 0, prior, next)
	var conflict *model.ReconciliationConflictError
	require.ErrorAs(t, err, &conflict)

	_, err = s.ApplyReconciliation(ctx, 999, 0, prior, next)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)

	entries, err := s.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1, "failed attempts leave no audit entry")
	assert.Equal(t, prior, entries[0].Prior)
	assert.Equal(t, "ACME", entries[0].Next.Client)
	assert.Equal(t, "ana", entries[0].Actor)
	assert.Equal(t, at, entries[0].At)
}

func TestAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := commitTest(t, s, "b1", "hash1")[0]
	_, err := s.ApplyReconciliation(ctx, id, 0, model.ReconciliationState{},
		model.Reconciliation{Client: "ACME", Category: "SALES", Direction: model.DirectionIn, By: "ana", At: time.Now()})
	require.NoError(t, err)

	for _, stmt := range []string{
		`DELETE FROM audit_entry`,
		`UPDATE audit_entry SET actor = 'mallory'`,
		`DELETE FROM bank_transaction`,
		`UPDATE bank_transaction SET amount = '1.00'`,
		`UPDATE bank_transaction SET source_line = 9`,
		`DELETE FROM import_line`,
		`UPDATE import_line SET text = 'edited'`,
	} {
		_, err := s.db.ExecContext(ctx, stmt)
		assert.Error(t, err, stmt)
	}
}

func TestCommitBatch_StoresLines(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := testBatch("b1", "hash1")
	b.Lines = []model.SourceLine{
		{Line: 1, Page: 1, Text: "EXTRATO"},
		{Line: 2, Page: 1, Text: "27/10/2025 PIX RECEBIDO 200,00 1.200,00"},
		{Line: 3, Page: 2, Text: "27/10/2025 TARIFA -50,00 1.150,00"},
	}
	cands := testCandidates()
	cands[0].Line = 2
	cands[1].Line = 3
	res, err := s.CommitBatch(ctx, CommitRequest{Batch: b, Candidates: cands, Actor: "ana", At: time.Now()})
	require.NoError(t, err)

	lines, err := s.BatchLines(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, b.Lines, lines)

	tx, err := s.Transaction(ctx, res.TransactionIDs[1])
	require.NoError(t, err)
	assert.Equal(t, 3, tx.SourceLine)
	assert.Equal(t, 2, lines[tx.SourceLine-1].Page)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT line_count FROM import_batch WHERE id = 'b1'`).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestCommitBatch_FailedCommitStoresNoLines(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	commitTest(t, s, "b1", "hash1")

	b := testBatch("b2", "hash1")
	b.Lines = []model.SourceLine{{Line: 1, Text: "EXTRATO"}}
	_, err := s.CommitBatch(ctx, CommitRequest{Batch: b, Candidates: testCandidates(), Actor: "ana", At: time.Now()})
	require.Error(t, err)

	lines, err := s.BatchLines(ctx, "b2")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestListTransactions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ids := commitTest(t, s, "b1", "hash1")

	other := testBatch("b2", "hash2")
	other.Company = "OTHER"
	other.Bank = "SICREDI"
	other.Account = "0001-9"
	cands := []model.Candidate{
		{Row: 1, Date: day(3), Description: "PIX", Amount: decimal.RequireFromString("10"), Direction: model.DirectionIn},
	}
	res, err := s.CommitBatch(ctx, CommitRequest{Batch: other, Candidates: cands, Actor: "ana", At: time.Now()})
	require.NoError(t, err)
	otherID := res.TransactionIDs[0]

	_, err = s.ApplyReconciliation(ctx, ids[0], 0, model.ReconciliationState{},
		model.Reconciliation{Client: "CLIENT", Process: "P-1", Category: "SALES", Direction: model.DirectionIn, By: "ana", At: time.Now()})
	require.NoError(t, err)

	idsOf := func(txs []model.Transaction) []int64 {
		out := make([]int64, len(txs))
		for i, tx := range txs {
			out[i] = tx.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []int64
	}{
		{"all, newest first", TransactionFilter{}, []int64{ids[1], ids[0], otherID}},
		{"company", TransactionFilter{Company: "ACME"}, []int64{ids[1], ids[0]}},
		{"account", TransactionFilter{Account: "0001-9"}, []int64{otherID}},
		{"bank", TransactionFilter{Bank: "SICREDI"}, []int64{otherID}},
		{"unreconciled", TransactionFilter{UnreconciledOnly: true}, []int64{ids[1], otherID}},
		{"client", TransactionFilter{Client: "CLIENT"}, []int64{ids[0]}},
		{"process", TransactionFilter{Process: "P-1"}, []int64{ids[0]}},
		{"from inclusive", TransactionFilter{From: day(27)}, []int64{ids[1], ids[0]}},
		{"to exclusive", TransactionFilter{To: day(27)}, []int64{otherID}},
		{"limit", TransactionFilter{Limit: 1}, []int64{ids[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, idsOf(got))
		})
	}
}

func TestHistory_UnknownTransaction(t *testing.T) {
	s := openTestStore(t)
	_, err := s.History(context.Background(), 42)
	var nf *model.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestListReconciled(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ids := commitTest(t, s, "b1", "hash1")
	_, err := s.ApplyReconciliation(ctx, ids[1], 0, model.ReconciliationState{},
		model.Reconciliation{Client: "ACME", Category: "FEES", Direction: model.DirectionOut, By: "ana", At: time.Now()})
	require.NoError(t, err)

	got, err := s.ListReconciled(ctx, ReconciledFilter{Client: "ACME", From: day(1), To: day(31)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ids[1], got[0].ID)

	got, err = s.ListReconciled(ctx, ReconciledFilter{Client: "ACME", Company: "OTHER", To: day(31)})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListReconciled(ctx, ReconciledFilter{Client: "ACME", To: day(27)})
	require.NoError(t, err)
	assert.Empty(t, got, "upper bound is exclusive")
}

func TestRebind(t *testing.T) {
	pg := dialects[DriverPostgres]
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = '?' AND c = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = '?' AND c = ?"))
	lite := dialects[DriverSQLite]
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestDSN(t *testing.T) {
	lite := dialects[DriverSQLite]
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", lite.dsn("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", lite.dsn("file:a.db?mode=rwc"))
	assert.Equal(t, "postgres://x", dialects[DriverPostgres].dsn("postgres://x"))
}
