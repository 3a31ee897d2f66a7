package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/catalog"
)

func TestRoundTrip(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	cfg := Default("Test Biz")
	cfg.BankAccounts = []BankAccount{
		{Name: "Inter PJ", Bank: "INTER", Company: "ACME", Account: "12345-6"},
	}

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company")

	assert.Equal(t, "My Company", cfg.Business.Name)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "conciliar.db", cfg.Database.DSN)
	assert.Equal(t, "0.01", cfg.Import.BalanceTolerance)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Reconciliation.Categories)
	require.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_DatabaseURLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("Biz")))

	t.Setenv(EnvDatabaseURL, "/tmp/other.db")
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", got.Database.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"tolerance", func(c *Config) { c.Import.BalanceTolerance = "abc" }},
		{"negative tolerance", func(c *Config) { c.Import.BalanceTolerance = "-1" }},
		{"no categories", func(c *Config) { c.Reconciliation.Categories = nil }},
		{"duplicate category", func(c *Config) {
			c.Reconciliation.Categories = []catalog.Category{{Code: "A", Active: true}, {Code: "a", Active: true}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("Biz")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTolerance(t *testing.T) {
	cfg := Default("Biz")
	tol, err := cfg.Tolerance()
	require.NoError(t, err)
	assert.Equal(t, "0.01", tol.String())

	cfg.Import.BalanceTolerance = ""
	tol, err = cfg.Tolerance()
	require.NoError(t, err)
	assert.Equal(t, "0.01", tol.String())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := Default("Biz")
	assert.Equal(t, filepath.Join("/srv/books", "conciliar.db"), cfg.DatabaseDSN("/srv/books"))

	cfg.Database.DSN = "/var/lib/conciliar.db"
	assert.Equal(t, "/var/lib/conciliar.db", cfg.DatabaseDSN("/srv/books"))

	cfg.Database = DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/conciliar"}
	assert.Equal(t, "postgres://localhost/conciliar", cfg.DatabaseDSN("/srv/books"))
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "categories.csv"),
		[]byte("code,name,active\nCUSTAS,Custas processuais,true\n"), 0o644))

	cfg := Default("Biz")
	cfg.Reconciliation.CategoriesFile = "categories.csv"
	svc, err := cfg.Catalog(dir)
	require.NoError(t, err)
	assert.True(t, svc.Exists("CUSTAS"))
	assert.True(t, svc.Exists("TARIFAS"))
}

func TestAccountFor(t *testing.T) {
	cfg := Default("Biz")
	cfg.BankAccounts = []BankAccount{{Bank: "INTER", Company: "ACME", Account: "123"}}

	acct, ok := cfg.AccountFor("inter", "acme")
	assert.True(t, ok)
	assert.Equal(t, "123", acct)

	_, ok = cfg.AccountFor("NUBANK", "ACME")
	assert.False(t, ok)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("Test Biz")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, `balance_tolerance: "0.01"`)
	assert.Contains(t, contents, "code: TARIFAS")
}

func TestSealKey(t *testing.T) {
	cfg := Default("Biz")
	assert.Nil(t, cfg.SealKey())

	cfg.Import.BatchSecret = "s3cret"
	assert.Equal(t, []byte("s3cret"), cfg.SealKey())
}
