package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/config"
)

func newCategoriesCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the reconciliation categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			absPath, err := filepath.Abs(root.configPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			cat, err := cfg.Catalog(filepath.Dir(absPath))
			if err != nil {
				return err
			}
			for _, c := range cat.All() {
				status := ""
				if !c.Active {
					status = " (inactive)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s%s\n", c.Code, c.Name, status)
			}
			return nil
		},
	}
}
