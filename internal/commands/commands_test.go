package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/conciliar-dev/conciliar/internal/auditlog"
	"github.com/conciliar-dev/conciliar/internal/commands"
	"github.com/conciliar-dev/conciliar/internal/config"
	"github.com/conciliar-dev/conciliar/internal/model"
)

const october = "01/10/2025 SALDO ANTERIOR 1.000,00\n" +
	"02/10/2025 PIX RECEBIDO FULANO 200,00 1.200,00\n" +
	"03/10/2025 TARIFA PACOTE -50,00 1.150,00\n"

func runConciliar(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func initDir(t *testing.T) (dir, configPath string) {
	t.Helper()
	t.Setenv(config.EnvDatabaseURL, "")
	dir = t.TempDir()
	_, err := runConciliar(t, "init", dir, "--name", "Test Biz")
	require.NoError(t, err)
	return dir, filepath.Join(dir, config.FileName)
}

func writeStatement(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sicredi-outubro.txt")
	require.NoError(t, os.WriteFile(path, []byte(october), 0o644))
	return path
}

func TestInit_Config(t *testing.T) {
	dir, configPath := initDir(t)

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "Test Biz", cfg.Business.Name)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "categories.csv", cfg.Reconciliation.CategoriesFile)

	_, err = os.Stat(filepath.Join(dir, "categories.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "conciliar.db"))
	require.NoError(t, err, "schema should be created")
}

func TestInit_RequiresName(t *testing.T) {
	_, err := runConciliar(t, "init", t.TempDir())
	assert.Error(t, err)
}

func TestCategories(t *testing.T) {
	_, configPath := initDir(t)

	out, err := runConciliar(t, "categories", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "RECEITA_SERVICOS")
	assert.Contains(t, out, "TARIFAS")
}

func TestBanks(t *testing.T) {
	out, err := runConciliar(t, "banks")
	require.NoError(t, err)
	assert.Contains(t, out, "SICREDI")
	assert.Contains(t, out, "ITAU")
}

func TestImport_PreviewThenConfirm(t *testing.T) {
	dir, configPath := initDir(t)
	stmt := writeStatement(t, dir)

	out, err := runConciliar(t, "import", stmt, "--config", configPath, "--bank", "sicredi", "--company", "ACME")
	require.NoError(t, err)
	assert.Contains(t, out, "PIX RECEBIDO FULANO")
	assert.Contains(t, out, "Opening balance: 1000.00")
	assert.Contains(t, out, "Not committed")

	out, err = runConciliar(t, "import", stmt, "--config", configPath, "--bank", "sicredi", "--company", "ACME", "--confirm", "--actor", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "Committed 2 transactions")

	out, err = runConciliar(t, "import", stmt, "--config", configPath, "--bank", "sicredi", "--company", "ACME", "--confirm", "--actor", "ana")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already imported")
	assert.Contains(t, out, "already imported")
}

func TestImport_Rejected(t *testing.T) {
	dir, configPath := initDir(t)
	path := filepath.Join(dir, "broken.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(october, "1.150,00", "999,00", 1)), 0o644))

	out, err := runConciliar(t, "import", path, "--config", configPath, "--bank", "sicredi", "--company", "ACME")
	require.Error(t, err)
	assert.Contains(t, out, "row 3")
}

func TestReconcileHistoryAndReport(t *testing.T) {
	dir, configPath := initDir(t)
	stmt := writeStatement(t, dir)
	_, err := runConciliar(t, "import", stmt, "--config", configPath, "--bank", "sicredi", "--company", "ACME", "--confirm", "--actor", "ana")
	require.NoError(t, err)

	out, err := runConciliar(t, "reconcile", "1", "--config", configPath,
		"--client", "ACME", "--process", "PROC-1", "--category", "receita_servicos", "--actor", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "version 1")
	assert.Contains(t, out, "category: RECEITA_SERVICOS")

	_, err = runConciliar(t, "reconcile", "2", "--config", configPath,
		"--client", "ACME", "--category", "TARIFAS", "--direction", "D", "--actor", "ana")
	require.NoError(t, err)

	_, err = runConciliar(t, "reconcile", "1", "--config", configPath,
		"--client", "ACME", "--category", "TARIFAS", "--actor", "bia", "--expected-version", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed concurrently")

	out, err = runConciliar(t, "history", "1", "--config", configPath, "--csv")
	require.NoError(t, err)
	entries, err := auditlog.ReadEntries(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "PROC-1", entries[0].Next.Process)

	out, err = runConciliar(t, "report", "--config", configPath, "--client", "ACME", "--month", "2025-10")
	require.NoError(t, err)
	assert.Contains(t, out, "Closing balance:       150.00")

	xlsxPath := filepath.Join(dir, "acme.xlsx")
	_, err = runConciliar(t, "report", "--config", configPath, "--client", "ACME", "--month", "2025-10", "--xlsx", xlsxPath)
	require.NoError(t, err)
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"Saldo final", "150"}, rows[len(rows)-1])
}

func TestTransactions(t *testing.T) {
	dir, configPath := initDir(t)
	stmt := writeStatement(t, dir)
	_, err := runConciliar(t, "import", stmt, "--config", configPath, "--bank", "sicredi", "--company", "ACME", "--confirm", "--actor", "ana")
	require.NoError(t, err)
	_, err = runConciliar(t, "reconcile", "2", "--config", configPath,
		"--client", "ACME", "--category", "TARIFAS", "--actor", "ana")
	require.NoError(t, err)

	out, err := runConciliar(t, "transactions", "--config", configPath, "--company", "ACME")
	require.NoError(t, err)
	assert.Contains(t, out, "PIX RECEBIDO FULANO")
	assert.NotContains(t, out, "TARIFA PACOTE")

	out, err = runConciliar(t, "transactions", "--config", configPath, "--all", "--json")
	require.NoError(t, err)
	var txs []model.Transaction
	require.NoError(t, json.Unmarshal([]byte(out), &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, int64(2), txs[0].ID)
	assert.Equal(t, "ACME", txs[0].Client)

	out, err = runConciliar(t, "transactions", "--config", configPath, "--to", "2025-10-01")
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions found")

	_, err = runConciliar(t, "transactions", "--config", configPath, "--from", "01/10/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestHistory_UnknownTransaction(t *testing.T) {
	_, configPath := initDir(t)
	_, err := runConciliar(t, "history", "42", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
