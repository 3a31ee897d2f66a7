package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/catalog"
	"github.com/conciliar-dev/conciliar/internal/config"
	"github.com/conciliar-dev/conciliar/internal/store"
)

const categoriesFile = "categories.csv"

func newInitCommand() *cobra.Command {
	var name string
	var driver string
	var dsn string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new Conciliar installation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, name, driver, dsn)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&driver, "driver", store.DriverSQLite, "database driver (sqlite or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database dsn (defaults to conciliar.db for sqlite)")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir, name, driver, dsn string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	cfg := config.Default(name)
	cfg.Database.Driver = driver
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
	cfg.Reconciliation.CategoriesFile = categoriesFile
	cfg.Reconciliation.Categories = nil
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Write categories.csv.
	f, err := os.Create(filepath.Join(dir, categoriesFile))
	if err != nil {
		return fmt.Errorf("creating categories: %w", err)
	}
	if err := catalog.WriteCategories(f, catalog.DefaultCategories()); err != nil {
		f.Close()
		return fmt.Errorf("writing categories: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}

	// Write conciliar.yaml.
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Create the schema.
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(dir))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := st.Close(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Initialized Conciliar at %s (%s)\n", dir, cfg.Database.Driver)
	return nil
}
