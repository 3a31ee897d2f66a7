package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/conciliar-dev/conciliar/internal/catalog"
)

// FileName is the configuration file created by `conciliar init`.
const FileName = "conciliar.yaml"

// EnvDatabaseURL overrides database.dsn when set.
const EnvDatabaseURL = "DATABASE_URL"

// Config represents the top-level conciliar.yaml configuration.
type Config struct {
	Business       BusinessConfig       `yaml:"business"`
	Database       DatabaseConfig       `yaml:"database"`
	Import         ImportConfig         `yaml:"import"`
	BankAccounts   []BankAccount        `yaml:"bank_accounts,omitempty"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Server         ServerConfig         `yaml:"server"`
	Log            LogConfig            `yaml:"log"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// ImportConfig controls statement ingestion.
type ImportConfig struct {
	BalanceTolerance string `yaml:"balance_tolerance"`
	MaxUploadMB      int    `yaml:"max_upload_mb"`
	// BatchSecret signs staged batches. Set it when previews and commits may
	// be served by different processes.
	BatchSecret string `yaml:"batch_secret,omitempty"`
}

// BankAccount names the account a company holds at a bank, used when an
// upload does not say which account it belongs to.
type BankAccount struct {
	Name    string `yaml:"name"`
	Bank    string `yaml:"bank"`
	Company string `yaml:"company"`
	Account string `yaml:"account"`
}

// ReconciliationConfig lists the recognized categories, inline or from a CSV file.
type ReconciliationConfig struct {
	Categories     []catalog.Category `yaml:"categories,omitempty"`
	CategoriesFile string             `yaml:"categories_file,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load reads a conciliar.yaml file from disk. DATABASE_URL, when set,
// replaces the configured dsn.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if url := os.Getenv(EnvDatabaseURL); url != "" {
		cfg.Database.DSN = url
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new installation.
func Default(businessName string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name: businessName,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "conciliar.db",
		},
		Import: ImportConfig{
			BalanceTolerance: "0.01",
			MaxUploadMB:      32,
		},
		Reconciliation: ReconciliationConfig{
			Categories: catalog.DefaultCategories(),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if _, err := c.Tolerance(); err != nil {
		return err
	}
	if c.Import.MaxUploadMB < 0 {
		return fmt.Errorf("import.max_upload_mb must not be negative")
	}
	if len(c.Reconciliation.Categories) == 0 && c.Reconciliation.CategoriesFile == "" {
		return fmt.Errorf("reconciliation: no categories configured")
	}
	seen := make(map[string]bool)
	for _, cat := range c.Reconciliation.Categories {
		key := strings.ToUpper(cat.Code)
		if key == "" {
			return fmt.Errorf("reconciliation: category with empty code")
		}
		if seen[key] {
			return fmt.Errorf("reconciliation: duplicate category %s", cat.Code)
		}
		seen[key] = true
	}
	return nil
}

// Tolerance returns the balance continuity tolerance.
func (c *Config) Tolerance() (decimal.Decimal, error) {
	if c.Import.BalanceTolerance == "" {
		return decimal.New(1, -2), nil
	}
	d, err := decimal.NewFromString(c.Import.BalanceTolerance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("import.balance_tolerance %q: %w", c.Import.BalanceTolerance, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("import.balance_tolerance must not be negative")
	}
	return d, nil
}

// MaxUploadBytes returns the upload size limit.
func (c *Config) MaxUploadBytes() int {
	if c.Import.MaxUploadMB == 0 {
		return 32 << 20
	}
	return c.Import.MaxUploadMB << 20
}

// SealKey returns the key staged batches are signed with, nil when unset.
func (c *Config) SealKey() []byte {
	if c.Import.BatchSecret == "" {
		return nil
	}
	return []byte(c.Import.BatchSecret)
}

// DatabaseDSN returns the dsn with relative SQLite paths resolved against baseDir.
func (c *Config) DatabaseDSN(baseDir string) string {
	dsn := c.Database.DSN
	if strings.ToLower(c.Database.Driver) != "sqlite" || dsn == "" ||
		filepath.IsAbs(dsn) || strings.HasPrefix(dsn, "file:") || strings.HasPrefix(dsn, ":memory:") {
		return dsn
	}
	return filepath.Join(baseDir, dsn)
}

// Catalog returns the category catalog. Inline categories are merged after
// those read from categories_file, which is resolved against baseDir.
func (c *Config) Catalog(baseDir string) (*catalog.Service, error) {
	var cats []catalog.Category
	if f := c.Reconciliation.CategoriesFile; f != "" {
		if !filepath.IsAbs(f) {
			f = filepath.Join(baseDir, f)
		}
		svc, err := catalog.Load(f)
		if err != nil {
			return nil, err
		}
		cats = append(cats, svc.All()...)
	}
	cats = append(cats, c.Reconciliation.Categories...)
	return catalog.NewService(cats), nil
}

// AccountFor returns the configured account of company at bank, if any.
func (c *Config) AccountFor(bank, company string) (string, bool) {
	for _, a := range c.BankAccounts {
		if strings.EqualFold(a.Bank, bank) && strings.EqualFold(a.Company, company) {
			return a.Account, true
		}
	}
	return "", false
}
